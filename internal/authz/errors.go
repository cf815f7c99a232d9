package authz

import (
	"errors"
	"fmt"

	"reviewhub/internal/domain"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	// ErrConfiguration means the role matrix and a stored user disagree. It is
	// never a caller mistake.
	ErrConfiguration = errors.New("authorization configuration error")
)

type DenyKind string

const (
	DenyInsufficient   DenyKind = "insufficient_permissions"
	DenyCannotViewRole DenyKind = "cannot_view_role"
	DenyTargetRole     DenyKind = "target_role"
)

// PermissionDenied is returned by the gate. Kind distinguishes "you cannot list
// users at all" from "you cannot see this particular role".
type PermissionDenied struct {
	Kind   DenyKind
	Actor  domain.Role
	Target domain.Role
	Action string
}

func (e *PermissionDenied) Error() string {
	switch e.Kind {
	case DenyInsufficient:
		return fmt.Sprintf("insufficient permissions to %s", e.Action)
	case DenyCannotViewRole:
		return fmt.Sprintf("cannot view %s users", e.Target)
	default:
		if e.Target == "" {
			return fmt.Sprintf("%s cannot %s", e.Actor, e.Action)
		}
		return fmt.Sprintf("%s cannot %s %s accounts", e.Actor, e.Action, e.Target)
	}
}

func (e *PermissionDenied) Is(target error) bool { return target == ErrPermissionDenied }
