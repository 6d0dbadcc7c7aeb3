package project

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/reforesta/planner/backend-go/internal/auth"
	"github.com/reforesta/planner/backend-go/internal/document"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name     string `json:"name"`
	Template string `json:"template"`
}

type inviteRequest struct {
	Email string `json:"email"`
}

type saveResponse struct {
	ID       string   `json:"id"`
	Version  int      `json:"version"`
	Warnings []string `json:"warnings,omitempty"`
}

// Register mounts the project routes on an authenticated subrouter.
func (h *Handler) Register(api *mux.Router) {
	api.HandleFunc("/projects", h.List).Methods("GET")
	api.HandleFunc("/projects", h.Create).Methods("POST")
	api.HandleFunc("/projects/{projectId}", h.Get).Methods("GET")
	api.HandleFunc("/projects/{projectId}", h.Delete).Methods("DELETE")
	api.HandleFunc("/projects/{projectId}/invite", h.Invite).Methods("POST")
	api.HandleFunc("/projects/{projectId}/members", h.ListMembers).Methods("GET")
	api.HandleFunc("/projects/{projectId}/members/{userId}", h.RemoveMember).Methods("DELETE")
	api.HandleFunc("/projects/{projectId}/snapshots", h.SaveSnapshot).Methods("PUT")
	api.HandleFunc("/projects/{projectId}/snapshots/latest", h.GetLatestSnapshot).Methods("GET")
	api.HandleFunc("/projects/{projectId}/summary", h.Summary).Methods("GET")
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" && req.Template == "" {
		writeError(w, http.StatusBadRequest, "name or template is required")
		return
	}

	project, err := h.service.Create(r.Context(), req.Name, userID, req.Template)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	projectID := mux.Vars(r)["projectId"]

	project, err := h.service.Get(r.Context(), projectID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.List(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	projectID := mux.Vars(r)["projectId"]

	if err := h.service.Delete(r.Context(), projectID, userID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	projectID := mux.Vars(r)["projectId"]

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.service.InviteByEmail(r.Context(), projectID, userID, req.Email); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "invited"})
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	projectID := mux.Vars(r)["projectId"]

	members, err := h.service.ListMembers(r.Context(), projectID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := auth.UserIDFromContext(r.Context())

	if err := h.service.RemoveMember(r.Context(), vars["projectId"], userID, vars["userId"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	projectID := mux.Vars(r)["projectId"]

	raw, err := io.ReadAll(io.LimitReader(r.Body, document.MaxProjectSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, warnings, err := h.service.SaveSnapshot(r.Context(), projectID, userID, raw)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saveResponse{ID: snap.ID, Version: snap.Version, Warnings: warnings})
}

func (h *Handler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	projectID := mux.Vars(r)["projectId"]

	doc, err := h.service.GetLatestSnapshot(r.Context(), projectID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	projectID := mux.Vars(r)["projectId"]

	stats, err := h.service.Summary(r.Context(), projectID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, ErrNotMember):
		writeError(w, http.StatusForbidden, "not a project member")
	case errors.Is(err, ErrAlreadyMember):
		writeError(w, http.StatusConflict, "user is already a member")
	case errors.Is(err, ErrCannotRemoveOwner):
		writeError(w, http.StatusBadRequest, "cannot remove project owner")
	case errors.Is(err, ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("service error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
