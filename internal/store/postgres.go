package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password      TEXT NOT NULL,
	display_name  TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	owner_id    TEXT NOT NULL REFERENCES users(id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS project_members (
	project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	user_id     TEXT NOT NULL REFERENCES users(id),
	role        TEXT NOT NULL,
	joined_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (project_id, user_id)
);
CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	version     INTEGER NOT NULL,
	document    JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (project_id, version)
);`

type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and creates the schema if needed.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, u User) (User, error) {
	err := p.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, password, display_name) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		u.ID, u.Email, u.PasswordHash, u.DisplayName,
	).Scan(&u.CreatedAt)
	if err != nil {
		return User{}, pgError("create user", err)
	}
	return u, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return p.getUser(ctx, `WHERE email = $1`, email)
}

func (p *Postgres) GetUserByID(ctx context.Context, id string) (User, error) {
	return p.getUser(ctx, `WHERE id = $1`, id)
}

func (p *Postgres) getUser(ctx context.Context, where string, arg string) (User, error) {
	var u User
	err := p.pool.QueryRow(ctx,
		`SELECT id, email, password, display_name, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return User{}, pgError("get user", err)
	}
	return u, nil
}

func (p *Postgres) CreateProject(ctx context.Context, pr Project) (Project, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Project{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO projects (id, name, owner_id) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		pr.ID, pr.Name, pr.OwnerID,
	).Scan(&pr.CreatedAt, &pr.UpdatedAt)
	if err != nil {
		return Project{}, pgError("create project", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO project_members (project_id, user_id, role) VALUES ($1, $2, $3)`,
		pr.ID, pr.OwnerID, RoleOwner,
	); err != nil {
		return Project{}, pgError("add owner", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Project{}, fmt.Errorf("commit: %w", err)
	}
	return pr, nil
}

func (p *Postgres) GetProject(ctx context.Context, id string) (Project, error) {
	var pr Project
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at, updated_at FROM projects WHERE id = $1`, id,
	).Scan(&pr.ID, &pr.Name, &pr.OwnerID, &pr.CreatedAt, &pr.UpdatedAt)
	if err != nil {
		return Project{}, pgError("get project", err)
	}
	return pr, nil
}

func (p *Postgres) ListProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT p.id, p.name, p.owner_id, p.created_at, p.updated_at
		FROM projects p JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = $1
		ORDER BY p.updated_at DESC`, userID)
	if err != nil {
		return nil, pgError("list projects", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var pr Project
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.OwnerID, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, pr)
	}
	return projects, rows.Err()
}

func (p *Postgres) RenameProject(ctx context.Context, id, name string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE projects SET name = $2, updated_at = now() WHERE id = $1`, id, name)
	if err != nil {
		return pgError("rename project", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteProject(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return pgError("delete project", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) AddMember(ctx context.Context, projectID, userID string, role Role) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO project_members (project_id, user_id, role) VALUES ($1, $2, $3)`,
		projectID, userID, role)
	return pgError("add member", err)
}

func (p *Postgres) GetMember(ctx context.Context, projectID, userID string) (Member, error) {
	var m Member
	err := p.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.display_name, m.role, m.joined_at
		FROM project_members m JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1 AND m.user_id = $2`, projectID, userID,
	).Scan(&m.UserID, &m.Email, &m.DisplayName, &m.Role, &m.JoinedAt)
	if err != nil {
		return Member{}, pgError("get member", err)
	}
	return m, nil
}

func (p *Postgres) ListMembers(ctx context.Context, projectID string) ([]Member, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT u.id, u.email, u.display_name, m.role, m.joined_at
		FROM project_members m JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1
		ORDER BY m.joined_at`, projectID)
	if err != nil {
		return nil, pgError("list members", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Email, &m.DisplayName, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (p *Postgres) RemoveMember(ctx context.Context, projectID, userID string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return pgError("remove member", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SaveSnapshot(ctx context.Context, id, projectID string, doc []byte) (Snapshot, error) {
	s := Snapshot{ID: id, ProjectID: projectID, Document: doc}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO snapshots (id, project_id, version, document)
		SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3 FROM snapshots WHERE project_id = $2
		RETURNING version, created_at`, id, projectID, doc,
	).Scan(&s.Version, &s.CreatedAt)
	if err != nil {
		return Snapshot{}, pgError("save snapshot", err)
	}
	if _, err := p.pool.Exec(ctx, `UPDATE projects SET updated_at = now() WHERE id = $1`, projectID); err != nil {
		return Snapshot{}, pgError("touch project", err)
	}
	return s, nil
}

func (p *Postgres) LatestSnapshot(ctx context.Context, projectID string) (Snapshot, error) {
	var (
		s   Snapshot
		doc []byte
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, project_id, version, document, created_at FROM snapshots
		WHERE project_id = $1 ORDER BY version DESC LIMIT 1`, projectID,
	).Scan(&s.ID, &s.ProjectID, &s.Version, &doc, &s.CreatedAt)
	if err != nil {
		return Snapshot{}, pgError("latest snapshot", err)
	}
	s.Document = doc
	return s, nil
}

// pgError maps driver errors onto the package sentinels.
func pgError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return ErrConflict
		case "23503": // foreign_key_violation
			return ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
