package collab

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Identity is the user behind a connection.
type Identity struct {
	UserID      string
	DisplayName string
}

// Authorizer decides who may join a project room. Errors wrapping
// ErrUnauthorized or ErrForbidden map to 401 and 403.
type Authorizer func(r *http.Request, projectID string) (Identity, error)

// Handler upgrades GET /ws/project/{projectId} to a collaboration session.
type Handler struct {
	hub            *Hub
	authorize      Authorizer
	originPatterns []string
}

func NewHandler(hub *Hub, authorize Authorizer, originPatterns []string) *Handler {
	return &Handler{hub: hub, authorize: authorize, originPatterns: originPatterns}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	id, err := h.authorize(r, projectID)
	switch {
	case errors.Is(err, ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	case errors.Is(err, ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	case err != nil:
		slog.Error("authorize websocket", "error", err, "project", projectID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := NewClient(h.hub, conn, id, projectID, uuid.New().String())
	h.hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
