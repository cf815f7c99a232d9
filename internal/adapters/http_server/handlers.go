// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"reviewhub/internal/app"
	"reviewhub/internal/authz"
	"reviewhub/internal/domain"
)

const maxBodyBytes = 8 << 20

type Handlers struct {
	Reviews *app.ReviewService
	Stats   *app.StatsService
	Users   *app.UserService
	Gate    *authz.Gate
	Auth    domain.AuthService
	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Kind   string            `json:"kind,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/readyz", h.ready)

	s.mux.Route("/v1", func(v1 chi.Router) {
		v1.Use(Authenticate(h.Auth))

		v1.Group(func(rd chi.Router) {
			rd.Use(requireReviews(h.Gate, authz.ReviewRead))
			rd.Get("/reviews", h.queryReviews)
			rd.Get("/reviews/count", h.countReviews)
			rd.Get("/reviews/stats", h.reviewStats)
			rd.Get("/reviews/{id}", h.getReview)
			rd.Get("/entities/{identifier}/reviews", h.entityReviews)
			rd.Get("/entities/{identifier}/rating", h.entityRating)
			rd.Get("/entities/{identifier}/platforms", h.entityPlatforms)
			rd.Get("/entities/{identifier}/summary", h.entitySummary)
		})
		v1.Group(func(wr chi.Router) {
			wr.Use(requireReviews(h.Gate, authz.ReviewWrite))
			wr.Post("/reviews", h.createReview)
			wr.Post("/reviews/bulk", h.bulkCreateReviews)
			wr.Post("/reviews/bulk-update", h.bulkUpdateReviews)
			wr.Patch("/reviews/{id}", h.updateReview)
		})
		v1.Group(func(dl chi.Router) {
			dl.Use(requireReviews(h.Gate, authz.ReviewDelete))
			dl.Delete("/reviews/{id}", h.deleteReview)
			dl.Delete("/entities/{identifier}/reviews", h.deleteEntityReviews)
		})

		v1.Get("/me", h.me)
		v1.Post("/users", h.createUser)
		v1.Get("/users", h.listUsers)
		v1.Get("/users/{id}", h.getUser)
		v1.Put("/users/{id}", h.updateUser)
		v1.Delete("/users/{id}", h.deleteUser)
		v1.Get("/users/{id}/permissions", h.getPermissions)
		v1.Put("/users/{id}/permissions", h.assignPermissions)
		v1.Delete("/users/{id}/permissions", h.clearPermissions)
	})
}

func (h *Handlers) ready(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r.Context()); err != nil {
			log.Warn().Err(err).Msg("readiness check failed")
			writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "dependencies not ready")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	var (
		ve     *domain.ValidationError
		denied *authz.PermissionDenied
		dup    *domain.DuplicateKeyError
	)
	switch {
	case errors.As(err, &ve):
		writeProblemBody(w, problem{Type: "about:blank", Title: "Unprocessable Entity", Status: http.StatusUnprocessableEntity,
			Detail: "validation failed", Errors: ve.Fields})
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &dup):
		writeProblemBody(w, problem{Type: "about:blank", Title: "Conflict", Status: http.StatusConflict,
			Detail: dup.Error(), Errors: map[string]string{dup.Key: "already exists"}})
	case errors.Is(err, domain.ErrDuplicateKey):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &denied):
		writeProblemBody(w, problem{Type: "about:blank", Title: "Forbidden", Status: http.StatusForbidden,
			Detail: denied.Error(), Kind: string(denied.Kind)})
	case errors.Is(err, domain.ErrUnauthenticated):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
	case errors.Is(err, authz.ErrConfiguration):
		log.Error().Err(err).Msg("authorization misconfigured")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "authorization configuration error")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "request cancelled")
	default:
		log.Error().Err(err).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// decodeBody reads one JSON document into dst; a malformed body is a 400.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		detail := err.Error()
		if errors.Is(err, io.EOF) {
			detail = "request body is empty"
		}
		writeProblem(w, http.StatusBadRequest, "Bad Request", detail)
		return false
	}
	return true
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached serves v with a weak ETag and honours If-None-Match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON body")
	}
}

func actor(r *http.Request) domain.User {
	u, _ := UserFrom(r.Context())
	return u
}
