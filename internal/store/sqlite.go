package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Times are stored as unix milliseconds.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password      TEXT NOT NULL,
	display_name  TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	owner_id    TEXT NOT NULL REFERENCES users(id),
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS project_members (
	project_id  TEXT NOT NULL REFERENCES projects(id),
	user_id     TEXT NOT NULL REFERENCES users(id),
	role        TEXT NOT NULL,
	joined_at   INTEGER NOT NULL,
	PRIMARY KEY (project_id, user_id)
);
CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL REFERENCES projects(id),
	version     INTEGER NOT NULL,
	document    BLOB NOT NULL,
	created_at  INTEGER NOT NULL,
	UNIQUE (project_id, version)
);`

type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serialises writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) CreateUser(ctx context.Context, u User) (User, error) {
	u.CreatedAt = s.stamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password, display_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.DisplayName, u.CreatedAt.UnixMilli())
	if err != nil {
		return User{}, sqliteError("create user", err)
	}
	return u, nil
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `WHERE email = ?`, email)
}

func (s *SQLite) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

func (s *SQLite) getUser(ctx context.Context, where, arg string) (User, error) {
	var (
		u  User
		ms int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password, display_name, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &ms)
	if err != nil {
		return User{}, sqliteError("get user", err)
	}
	u.CreatedAt = time.UnixMilli(ms)
	return u, nil
}

func (s *SQLite) CreateProject(ctx context.Context, p Project) (Project, error) {
	now := s.stamp()
	p.CreatedAt, p.UpdatedAt = now, now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Project{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO projects (id, name, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.OwnerID, now.UnixMilli(), now.UnixMilli(),
	); err != nil {
		return Project{}, sqliteError("create project", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.OwnerID, string(RoleOwner), now.UnixMilli(),
	); err != nil {
		return Project{}, sqliteError("add owner", err)
	}
	if err := tx.Commit(); err != nil {
		return Project{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (s *SQLite) GetProject(ctx context.Context, id string) (Project, error) {
	var (
		p                Project
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at, updated_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.OwnerID, &created, &updated)
	if err != nil {
		return Project{}, sqliteError("get project", err)
	}
	p.CreatedAt, p.UpdatedAt = time.UnixMilli(created), time.UnixMilli(updated)
	return p, nil
}

func (s *SQLite) ListProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.owner_id, p.created_at, p.updated_at
		FROM projects p JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = ?
		ORDER BY p.updated_at DESC, p.id`, userID)
	if err != nil {
		return nil, sqliteError("list projects", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var (
			p                Project
			created, updated int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.CreatedAt, p.UpdatedAt = time.UnixMilli(created), time.UnixMilli(updated)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLite) RenameProject(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, updated_at = ? WHERE id = ?`, name, s.stamp().UnixMilli(), id)
	if err != nil {
		return sqliteError("rename project", err)
	}
	return expectRow(res)
}

func (s *SQLite) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM snapshots WHERE project_id = ?`,
		`DELETE FROM project_members WHERE project_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return sqliteError("delete project", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return sqliteError("delete project", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) AddMember(ctx context.Context, projectID, userID string, role Role) error {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		projectID, userID, string(role), s.stamp().UnixMilli())
	return sqliteError("add member", err)
}

const memberColumns = `
	SELECT u.id, u.email, u.display_name, m.role, m.joined_at
	FROM project_members m JOIN users u ON u.id = m.user_id`

func scanMember(row interface{ Scan(...any) error }) (Member, error) {
	var (
		m      Member
		role   string
		joined int64
	)
	if err := row.Scan(&m.UserID, &m.Email, &m.DisplayName, &role, &joined); err != nil {
		return Member{}, err
	}
	m.Role = Role(role)
	m.JoinedAt = time.UnixMilli(joined)
	return m, nil
}

func (s *SQLite) GetMember(ctx context.Context, projectID, userID string) (Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx,
		memberColumns+` WHERE m.project_id = ? AND m.user_id = ?`, projectID, userID))
	if err != nil {
		return Member{}, sqliteError("get member", err)
	}
	return m, nil
}

func (s *SQLite) ListMembers(ctx context.Context, projectID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx,
		memberColumns+` WHERE m.project_id = ? ORDER BY m.joined_at, u.id`, projectID)
	if err != nil {
		return nil, sqliteError("list members", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQLite) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return sqliteError("remove member", err)
	}
	return expectRow(res)
}

func (s *SQLite) SaveSnapshot(ctx context.Context, id, projectID string, doc []byte) (Snapshot, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return Snapshot{}, err
	}
	now := s.stamp()
	snap := Snapshot{ID: id, ProjectID: projectID, Document: doc, CreatedAt: now}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM snapshots WHERE project_id = ?`, projectID,
	).Scan(&snap.Version)
	if err != nil {
		return Snapshot{}, sqliteError("next version", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, project_id, version, document, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, projectID, snap.Version, doc, now.UnixMilli(),
	); err != nil {
		return Snapshot{}, sqliteError("save snapshot", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET updated_at = ? WHERE id = ?`, now.UnixMilli(), projectID,
	); err != nil {
		return Snapshot{}, sqliteError("touch project", err)
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("commit: %w", err)
	}
	return snap, nil
}

func (s *SQLite) LatestSnapshot(ctx context.Context, projectID string) (Snapshot, error) {
	var (
		snap    Snapshot
		doc     []byte
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, version, document, created_at FROM snapshots
		WHERE project_id = ? ORDER BY version DESC LIMIT 1`, projectID,
	).Scan(&snap.ID, &snap.ProjectID, &snap.Version, &doc, &created)
	if err != nil {
		return Snapshot{}, sqliteError("latest snapshot", err)
	}
	snap.Document = doc
	snap.CreatedAt = time.UnixMilli(created)
	return snap, nil
}

// stamp is the current time truncated to what the schema stores.
func (s *SQLite) stamp() time.Time {
	return time.UnixMilli(s.now().UnixMilli())
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func sqliteError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, sqlite3.CONSTRAINT_UNIQUE), errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY):
		return ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}
