package redisad

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"reviewhub/internal/authz"
	"reviewhub/internal/domain"
)

const overridePrefix = "authz:override:"

// Hash fields, one per overridable permission. Values are JSON.
const (
	fieldCreate    = "can_create"
	fieldView      = "can_view"
	fieldUpdate    = "can_update"
	fieldDelete    = "can_delete"
	fieldManageAll = "can_manage_all"
)

// OverrideStore keeps each user's override in one hash. Merge writes only the
// fields being set and reads the result back inside the same MULTI, so
// concurrent merges on different fields both survive.
type OverrideStore struct{ c *redis.Client }

func NewOverrideStore(c *redis.Client) *OverrideStore { return &OverrideStore{c: c} }

var _ authz.OverrideStore = (*OverrideStore)(nil)

func overrideKey(userID string) string { return overridePrefix + userID }

func (s *OverrideStore) Get(ctx context.Context, userID string) (authz.PermissionOverride, bool, error) {
	h, err := s.c.HGetAll(ctx, overrideKey(userID)).Result()
	if err != nil {
		return authz.PermissionOverride{}, false, err
	}
	if len(h) == 0 {
		return authz.PermissionOverride{}, false, nil
	}
	o, err := decodeOverride(h)
	return o, err == nil, err
}

func (s *OverrideStore) Merge(ctx context.Context, userID string, o authz.PermissionOverride) (authz.PermissionOverride, error) {
	fields, err := encodeOverride(o)
	if err != nil {
		return authz.PermissionOverride{}, err
	}
	key := overrideKey(userID)
	var all *redis.MapStringStringCmd
	_, err = s.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(fields) > 0 {
			p.HSet(ctx, key, fields)
		}
		all = p.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return authz.PermissionOverride{}, err
	}
	return decodeOverride(all.Val())
}

func (s *OverrideStore) Delete(ctx context.Context, userID string) (bool, error) {
	n, err := s.c.Del(ctx, overrideKey(userID)).Result()
	return n > 0, err
}

func encodeOverride(o authz.PermissionOverride) (map[string]any, error) {
	out := map[string]any{}
	put := func(field string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[field] = string(b)
		return nil
	}
	for field, l := range map[string]*[]domain.Role{
		fieldCreate: o.CanCreate, fieldView: o.CanView, fieldUpdate: o.CanUpdate, fieldDelete: o.CanDelete,
	} {
		if l == nil {
			continue
		}
		roles := *l
		if roles == nil {
			roles = []domain.Role{}
		}
		if err := put(field, roles); err != nil {
			return nil, err
		}
	}
	if o.CanManageAll != nil {
		if err := put(fieldManageAll, *o.CanManageAll); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeOverride(h map[string]string) (authz.PermissionOverride, error) {
	var o authz.PermissionOverride
	for field, raw := range h {
		var err error
		switch field {
		case fieldCreate:
			o.CanCreate, err = decodeRoles(raw)
		case fieldView:
			o.CanView, err = decodeRoles(raw)
		case fieldUpdate:
			o.CanUpdate, err = decodeRoles(raw)
		case fieldDelete:
			o.CanDelete, err = decodeRoles(raw)
		case fieldManageAll:
			var v bool
			err = json.Unmarshal([]byte(raw), &v)
			o.CanManageAll = &v
		default:
			continue
		}
		if err != nil {
			return authz.PermissionOverride{}, fmt.Errorf("decode override field %s: %w", field, err)
		}
	}
	return o, nil
}

func decodeRoles(raw string) (*[]domain.Role, error) {
	var rs []domain.Role
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return nil, err
	}
	return authz.RoleList(rs...), nil
}
