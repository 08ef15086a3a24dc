package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/miicoin/miicoin-server/internal/apperror"
	"github.com/miicoin/miicoin-server/internal/auth"
	"github.com/miicoin/miicoin-server/internal/service"
)

// APIKeyHandler serves the /api-keys endpoints. All of them require an
// authenticated user; the router mounts them behind RequireAuth.
type APIKeyHandler struct {
	keys   *service.APIKeyService
	logger *slog.Logger
}

func NewAPIKeyHandler(keys *service.APIKeyService, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{keys: keys, logger: logger}
}

type addKeyRequest struct {
	Exchange  string `json:"exchange"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// HandleAdd handles POST /api-keys.
func (h *APIKeyHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Authentication("valid authentication required"))
		return
	}

	var req addKeyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Exchange == "" || req.APIKey == "" || req.APISecret == "" {
		writeError(w, apperror.ValidationFailed("body", "exchange, api_key and api_secret are required"))
		return
	}

	record, err := h.keys.Add(r.Context(), userID, req.Exchange, req.APIKey, req.APISecret)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"status":   "success",
		"message":  "API key added successfully",
		"exchange": record.Exchange,
	})
}

// HandleList handles GET /api-keys.
func (h *APIKeyHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Authentication("valid authentication required"))
		return
	}

	infos, err := h.keys.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"api_keys": infos,
	})
}

// HandleDelete handles DELETE /api-keys/{id}.
func (h *APIKeyHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Authentication("valid authentication required"))
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.keys.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "API key deleted",
	})
}

// HandleToggle handles POST /api-keys/{id}/toggle.
func (h *APIKeyHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Authentication("valid authentication required"))
		return
	}

	id := chi.URLParam(r, "id")
	active, err := h.keys.Toggle(r.Context(), userID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	state := "disabled"
	if active {
		state = "enabled"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"message":   fmt.Sprintf("API key %s", state),
		"is_active": active,
	})
}
