package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"reviewhub/internal/app"
	"reviewhub/internal/domain"
)

type bulkCreateRequest struct {
	Reviews []domain.ReviewInput `json:"reviews"`
}

type bulkUpdateRequest struct {
	Filter domain.ReviewMatch  `json:"filter"`
	Update domain.ReviewUpdate `json:"update"`
}

func (h *Handlers) createReview(w http.ResponseWriter, r *http.Request) {
	var in domain.ReviewInput
	if !decodeBody(w, r, &in) {
		return
	}
	rv, err := h.Reviews.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/reviews/"+rv.ID)
	writeJSON(w, http.StatusCreated, rv)
}

func (h *Handlers) bulkCreateReviews(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.Reviews.BulkCreate(r.Context(), req.Reviews)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if res.SuccessCount == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (h *Handlers) queryReviews(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r.URL.Query())
	f := p.filter()
	page := p.integer("page", 1)
	size := p.integer("page_size", app.DefaultPageSize)
	if err := p.err(); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Reviews.Query(r.Context(), f, page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) countReviews(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r.URL.Query())
	f := p.filter()
	if err := p.err(); err != nil {
		writeError(w, err)
		return
	}
	n, err := h.Reviews.Count(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *Handlers) reviewStats(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r.URL.Query())
	f := p.filter()
	if err := p.err(); err != nil {
		writeError(w, err)
		return
	}
	st, err := h.Stats.Stats(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, st)
}

func (h *Handlers) getReview(w http.ResponseWriter, r *http.Request) {
	rv, err := h.Reviews.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, rv)
}

func (h *Handlers) updateReview(w http.ResponseWriter, r *http.Request) {
	var u domain.ReviewUpdate
	if !decodeBody(w, r, &u) {
		return
	}
	rv, err := h.Reviews.Update(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

func (h *Handlers) bulkUpdateReviews(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := h.Reviews.BulkUpdate(r.Context(), req.Filter, req.Update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"affected": n})
}

// deleteReview is soft unless hard=true.
func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r.URL.Query())
	hard := p.boolean("hard")
	if err := p.err(); err != nil {
		writeError(w, err)
		return
	}
	soft := hard == nil || !*hard
	if err := h.Reviews.Delete(r.Context(), chi.URLParam(r, "id"), soft); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) entityReviews(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r.URL.Query())
	platform := p.platform("platform")
	limit := p.integer("limit", app.DefaultListLimit)
	if err := p.err(); err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Reviews.QueryByEntity(r.Context(), chi.URLParam(r, "identifier"), platform, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []domain.Review{}
	}
	writeCached(w, r, out)
}

func (h *Handlers) deleteEntityReviews(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r.URL.Query())
	platform := p.platform("platform")
	hard := p.boolean("hard")
	if err := p.err(); err != nil {
		writeError(w, err)
		return
	}
	soft := hard == nil || !*hard
	n, err := h.Reviews.BulkDelete(r.Context(), chi.URLParam(r, "identifier"), platform, soft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"affected": n})
}

func (h *Handlers) entityRating(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identifier")
	avg, err := h.Stats.AverageRating(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, struct {
		EntityIdentifier string   `json:"entity_identifier"`
		AverageRating    *float64 `json:"average_rating"`
	}{id, avg})
}

func (h *Handlers) entityPlatforms(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identifier")
	dist, err := h.Stats.PlatformDistribution(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, struct {
		EntityIdentifier     string                  `json:"entity_identifier"`
		PlatformDistribution map[domain.Platform]int `json:"platform_distribution"`
	}{id, dist})
}

func (h *Handlers) entitySummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Stats.EntitySummary(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, sum)
}
