package authz

import (
	"embed"
	"fmt"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"reviewhub/internal/domain"
)

//go:embed roles/*.yaml
var bundled embed.FS

type Action string

const (
	ActionCreate Action = "create"
	ActionView   Action = "view"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ReviewOp is a capability on the review store.
type ReviewOp string

const (
	ReviewRead   ReviewOp = "read"
	ReviewWrite  ReviewOp = "write"
	ReviewDelete ReviewOp = "delete"
)

// Permissions is the per-role capability set an override can replace field by field.
type Permissions struct {
	CanCreate    []domain.Role `yaml:"can_create" json:"can_create"`
	CanView      []domain.Role `yaml:"can_view" json:"can_view"`
	CanUpdate    []domain.Role `yaml:"can_update" json:"can_update"`
	CanDelete    []domain.Role `yaml:"can_delete" json:"can_delete"`
	CanManageAll bool          `yaml:"can_manage_all" json:"can_manage_all"`
}

// Targets returns the explicit target list for a; ok is false for unknown actions.
func (p Permissions) Targets(a Action) (roles []domain.Role, ok bool) {
	switch a {
	case ActionCreate:
		return p.CanCreate, true
	case ActionView:
		return p.CanView, true
	case ActionUpdate:
		return p.CanUpdate, true
	case ActionDelete:
		return p.CanDelete, true
	}
	return nil, false
}

func (p Permissions) Clone() Permissions {
	return Permissions{
		CanCreate:    cloneRoles(p.CanCreate),
		CanView:      cloneRoles(p.CanView),
		CanUpdate:    cloneRoles(p.CanUpdate),
		CanDelete:    cloneRoles(p.CanDelete),
		CanManageAll: p.CanManageAll,
	}
}

func cloneRoles(rs []domain.Role) []domain.Role {
	out := make([]domain.Role, len(rs))
	copy(out, rs)
	return out
}

type RoleSpec struct {
	Permissions `yaml:",inline"`
	CanList     []domain.Role `yaml:"can_list"`
	Reviews     []ReviewOp    `yaml:"reviews"`
}

// Matrix is the closed role set of one deployment. It is read-only after load.
type Matrix struct {
	AdminRole    domain.Role              `yaml:"admin_role"`
	MidTierRoles []domain.Role            `yaml:"mid_tier_roles"`
	Roles        map[domain.Role]RoleSpec `yaml:"roles"`
}

// ParseMatrix decodes and validates a YAML role matrix.
func ParseMatrix(b []byte) (*Matrix, error) {
	var m Matrix
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: parse role matrix: %v", ErrConfiguration, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadMatrix reads the matrix at path. An empty path selects the bundled
// admin/reviewer matrix; "school" selects the bundled admin/teacher/student one.
func LoadMatrix(path string) (*Matrix, error) {
	switch path {
	case "", "default", "reviewer":
		return BundledMatrix("reviewer")
	case "school":
		return BundledMatrix("school")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read role matrix: %v", ErrConfiguration, err)
	}
	return ParseMatrix(b)
}

func BundledMatrix(name string) (*Matrix, error) {
	b, err := bundled.ReadFile("roles/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: no bundled role matrix %q", ErrConfiguration, name)
	}
	return ParseMatrix(b)
}

// DefaultMatrix panics if the embedded matrix is broken, which a unit test rules out.
func DefaultMatrix() *Matrix {
	m, err := BundledMatrix("reviewer")
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Matrix) validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
	}
	if len(m.Roles) == 0 {
		return bad("no roles declared")
	}
	if m.AdminRole == "" || !m.Has(m.AdminRole) {
		return bad("admin_role %q is not a declared role", m.AdminRole)
	}
	for _, r := range m.MidTierRoles {
		if !m.Has(r) {
			return bad("mid-tier role %q is not declared", r)
		}
		if r == m.AdminRole {
			return bad("admin role cannot be mid-tier")
		}
	}
	for name, spec := range m.Roles {
		lists := [][]domain.Role{spec.CanCreate, spec.CanView, spec.CanUpdate, spec.CanDelete, spec.CanList}
		for _, l := range lists {
			for _, r := range l {
				if !m.Has(r) {
					return bad("role %q references undeclared role %q", name, r)
				}
			}
		}
		for _, op := range spec.Reviews {
			switch op {
			case ReviewRead, ReviewWrite, ReviewDelete:
			default:
				return bad("role %q has unknown review capability %q", name, op)
			}
		}
	}
	return nil
}

func (m *Matrix) Has(r domain.Role) bool {
	_, ok := m.Roles[r]
	return ok
}

func (m *Matrix) IsMidTier(r domain.Role) bool { return slices.Contains(m.MidTierRoles, r) }

// Base returns a copy of the role's permissions; an unknown role is a configuration error.
func (m *Matrix) Base(r domain.Role) (Permissions, error) {
	spec, ok := m.Roles[r]
	if !ok {
		return Permissions{}, fmt.Errorf("%w: role %q missing from matrix", ErrConfiguration, r)
	}
	return spec.Permissions.Clone(), nil
}

func (m *Matrix) Listable(r domain.Role) []domain.Role {
	return cloneRoles(m.Roles[r].CanList)
}

func (m *Matrix) ReviewOps(r domain.Role) []ReviewOp {
	return slices.Clone(m.Roles[r].Reviews)
}

// RoleNames lists the declared roles in a stable order.
func (m *Matrix) RoleNames() []domain.Role {
	out := make([]domain.Role, 0, len(m.Roles))
	for r := range m.Roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
