package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"reviewhub/internal/authz"
	"reviewhub/internal/domain"
)

type createUserRequest struct {
	domain.NewUser
	Password string `json:"password"`
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	u := actor(r)
	perms, err := h.Gate.Resolver().EffectivePermissions(r.Context(), u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		domain.User
		Permissions authz.Permissions `json:"permissions"`
	}{u, perms})
}

func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	u, err := h.Users.Create(r.Context(), actor(r), req.NewUser, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/users/"+u.ID)
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	var role *domain.Role
	if s := newQueryParams(r.URL.Query()).str("role"); s != nil {
		v := domain.Role(*s)
		role = &v
	}
	us, err := h.Users.List(r.Context(), actor(r), role)
	if err != nil {
		writeError(w, err)
		return
	}
	if us == nil {
		us = []domain.User{}
	}
	writeJSON(w, http.StatusOK, us)
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, u)
}

func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	var p domain.UserPatch
	if !decodeBody(w, r, &p) {
		return
	}
	u, err := h.Users.Update(r.Context(), actor(r), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Users.Delete(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) getPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.Users.Permissions(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func (h *Handlers) assignPermissions(w http.ResponseWriter, r *http.Request) {
	var o authz.PermissionOverride
	if !decodeBody(w, r, &o) {
		return
	}
	perms, err := h.Users.AssignPermissions(r.Context(), actor(r), chi.URLParam(r, "id"), o)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func (h *Handlers) clearPermissions(w http.ResponseWriter, r *http.Request) {
	if err := h.Users.ClearPermissions(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
