package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/winchzone/dashboard/internal/http/envelope"
	httpmiddleware "github.com/winchzone/dashboard/internal/http/middleware"
)

const MsgRoleUpdated = "Role updated."

// Lookups returns the reference lists of the trip forms. The collection
// list is best effort.
func (h *Handler) Lookups(w http.ResponseWriter, r *http.Request) {
	masters, err := h.lookups.Masters(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "could not load reference data")
		return
	}
	envelope.JSON(w, http.StatusOK, masters)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "could not load users")
		return
	}
	envelope.JSON(w, http.StatusOK, list)
}

func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid user id", nil)
		return
	}
	var payload struct {
		RoleID int `json:"role_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		envelope.Error(w, envelope.CodeValidation, "invalid JSON", nil)
		return
	}

	actor, _ := httpmiddleware.GetActor(r.Context())
	err = h.guarded(r, "user:"+userID.String()+":role", func() error {
		return h.users.SetRole(r.Context(), actor, userID, payload.RoleID)
	})
	if err != nil {
		h.writeServiceError(w, r, err, "could not update role")
		return
	}
	envelope.JSON(w, http.StatusOK, map[string]any{"user_id": userID, "role_id": payload.RoleID, "message": MsgRoleUpdated})
}
