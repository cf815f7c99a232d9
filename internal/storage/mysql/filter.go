package mysql

import (
	"strings"

	"reviewhub/internal/domain"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// whereClause renders f as a WHERE clause. It always has at least the
// is_active condition, so callers may append " AND ...".
func whereClause(f domain.ReviewFilter) (string, []any) {
	conds := []string{"is_active = ?"}
	args := []any{f.Active()}

	if f.EntityType != nil {
		conds = append(conds, "entity_type = ?")
		args = append(args, string(*f.EntityType))
	}
	if f.EntityName != nil && *f.EntityName != "" {
		conds = append(conds, "LOWER(entity_name) LIKE ?")
		args = append(args, containsPattern(*f.EntityName))
	}
	if f.EntityIdentifier != nil && *f.EntityIdentifier != "" {
		conds = append(conds, "entity_identifier = ?")
		args = append(args, *f.EntityIdentifier)
	}
	if f.Platform != nil {
		conds = append(conds, "platform = ?")
		args = append(args, string(*f.Platform))
	}
	if f.MinRating != nil {
		conds = append(conds, "rating >= ?")
		args = append(args, *f.MinRating)
	}
	if f.MaxRating != nil {
		conds = append(conds, "rating <= ?")
		args = append(args, *f.MaxRating)
	}
	if f.VerifiedOnly {
		conds = append(conds, "verified = TRUE")
	}
	if f.WithResponseOnly {
		conds = append(conds, "response_text IS NOT NULL AND response_text <> ''")
	}
	if f.StartDate != nil {
		conds = append(conds, "review_date >= ?")
		args = append(args, domain.Timestamp(*f.StartDate))
	}
	if f.EndDate != nil {
		conds = append(conds, "review_date <= ?")
		args = append(args, domain.Timestamp(*f.EndDate))
	}
	if f.SearchText != nil && *f.SearchText != "" {
		conds = append(conds, "LOWER(review_text) LIKE ?")
		args = append(args, containsPattern(*f.SearchText))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// matchClause renders exact-match conditions; columns come from domain code, never input.
func matchClause(conds []domain.Assignment) (string, []any) {
	parts := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))
	for _, c := range conds {
		parts = append(parts, c.Column+" = ?")
		args = append(args, c.Value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func setClause(as []domain.Assignment) (string, []any) {
	parts := make([]string, 0, len(as))
	args := make([]any, 0, len(as))
	for _, a := range as {
		parts = append(parts, a.Column+" = ?")
		args = append(args, a.Value)
	}
	return " SET " + strings.Join(parts, ", "), args
}
