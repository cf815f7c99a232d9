package mysql

import (
	"errors"
	"testing"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"reviewhub/internal/domain"
)

func TestWhereClauseDefaultsToActive(t *testing.T) {
	where, args := whereClause(domain.ReviewFilter{})
	if where != " WHERE is_active = ?" {
		t.Fatalf("where = %q", where)
	}
	if len(args) != 1 || args[0] != true {
		t.Fatalf("args = %v", args)
	}
}

func TestWhereClauseCombinesFilters(t *testing.T) {
	name := "50%_off"
	lo, hi := 2.0, 4.5
	inactive := false
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args := whereClause(domain.ReviewFilter{
		EntityName:   &name,
		MinRating:    &lo,
		MaxRating:    &hi,
		VerifiedOnly: true,
		IsActive:     &inactive,
		StartDate:    &start,
	})
	want := " WHERE is_active = ? AND LOWER(entity_name) LIKE ? AND rating >= ? AND rating <= ? AND verified = TRUE AND review_date >= ?"
	if where != want {
		t.Fatalf("where =\n%q\nwant\n%q", where, want)
	}
	if args[0] != false {
		t.Fatalf("is_active arg = %v", args[0])
	}
	if args[1] != `%50\%\_off%` {
		t.Fatalf("like pattern = %v", args[1])
	}
}

func TestMatchAndSetClause(t *testing.T) {
	ident := "e1"
	where, wargs := matchClause(domain.ReviewMatch{EntityIdentifier: &ident}.Conditions())
	if where != " WHERE entity_identifier = ?" || len(wargs) != 1 {
		t.Fatalf("match = %q %v", where, wargs)
	}
	set, sargs := setClause(domain.ReviewUpdate{
		Rating:      domain.Some(3.5),
		ReviewTitle: domain.Null[string](),
	}.Assignments())
	if set != " SET rating = ?, review_title = ?" {
		t.Fatalf("set = %q", set)
	}
	if sargs[0] != 3.5 || sargs[1] != nil {
		t.Fatalf("set args = %v", sargs)
	}
}

func TestMapErrDuplicate(t *testing.T) {
	err := mapErr(&gomysql.MySQLError{Number: 1062, Message: "Duplicate entry 'g-1' for key 'reviews.uq_reviews_platform_review_id'"})
	var dk *domain.DuplicateKeyError
	if !errors.As(err, &dk) {
		t.Fatalf("want DuplicateKeyError, got %v", err)
	}
	if dk.Value != "g-1" || !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("unexpected %+v", dk)
	}

	other := &gomysql.MySQLError{Number: 1213, Message: "Deadlock found"}
	if got := mapErr(other); got != error(other) {
		t.Fatalf("non-duplicate errors pass through, got %v", got)
	}
}
