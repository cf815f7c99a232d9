// Package gormusers stores accounts through gorm so the user table can live in
// MySQL, Postgres or SQLite.
package gormusers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"reviewhub/internal/domain"
)

type userModel struct {
	ID           string  `gorm:"primaryKey;type:char(36)"`
	Username     string  `gorm:"size:64;not null;uniqueIndex"`
	Email        string  `gorm:"size:255;not null;uniqueIndex"`
	FullName     *string `gorm:"size:255"`
	PasswordHash string  `gorm:"size:255;not null"`
	Role         string  `gorm:"size:32;not null;index"`
	IsActive     bool    `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time `gorm:"index"`
}

func (userModel) TableName() string { return "users" }

func (m userModel) toDomain() domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		FullName:     m.FullName,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
		DeletedAt:    m.DeletedAt,
	}
}

// Open connects with the named dialect: mysql, postgres or sqlite.
func Open(driver, dsn string) (*gorm.DB, error) {
	var d gorm.Dialector
	switch driver {
	case "mysql":
		d = mysql.Open(dsn)
	case "postgres":
		d = postgres.Open(dsn)
	case "sqlite", "":
		d = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported user db driver %q", driver)
	}
	return gorm.Open(d, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
}

func Migrate(db *gorm.DB) error { return db.AutoMigrate(&userModel{}) }

type Repo struct{ db *gorm.DB }

func New(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return m.toDomain(), nil
}

func (r *Repo) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	m := userModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	// gorm skips zero-valued fields that carry a default, so false must be written explicitly
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.User{}, r.mapErr(ctx, err, u.Username, u.Email)
	}
	if !u.IsActive {
		if err := r.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", m.ID).Update("is_active", false).Error; err != nil {
			return domain.User{}, err
		}
	}
	return r.GetUserByID(ctx, m.ID)
}

func (r *Repo) UpdateUser(ctx context.Context, id string, p domain.UserPatch) (domain.User, error) {
	cols := map[string]any{}
	if p.Username != nil {
		cols["username"] = *p.Username
	}
	if p.Email != nil {
		cols["email"] = *p.Email
	}
	if p.FullName != nil {
		cols["full_name"] = *p.FullName
	}
	if p.Role != nil {
		cols["role"] = string(*p.Role)
	}
	if p.IsActive != nil {
		cols["is_active"] = *p.IsActive
	}
	if p.DeletedAt != nil {
		cols["deleted_at"] = *p.DeletedAt
	}
	if len(cols) == 0 {
		return r.GetUserByID(ctx, id)
	}
	res := r.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return domain.User{}, r.mapErr(ctx, res.Error, deref(p.Username), deref(p.Email))
	}
	return r.GetUserByID(ctx, id)
}

// ListUsersByRoles returns accounts that have not been deleted, oldest first.
func (r *Repo) ListUsersByRoles(ctx context.Context, roles []domain.Role) ([]domain.User, error) {
	out := []domain.User{}
	if len(roles) == 0 {
		return out, nil
	}
	names := make([]string, len(roles))
	for i, rl := range roles {
		names[i] = string(rl)
	}
	var rows []userModel
	if err := r.db.WithContext(ctx).
		Where("role IN ? AND deleted_at IS NULL", names).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// mapErr names the clashing column when a unique index fires.
func (r *Repo) mapErr(ctx context.Context, err error, username, email string) error {
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	var n int64
	if username != "" {
		r.db.WithContext(ctx).Model(&userModel{}).Where("username = ?", username).Count(&n)
		if n > 0 {
			return &domain.DuplicateKeyError{Key: "username", Value: username}
		}
	}
	return &domain.DuplicateKeyError{Key: "email", Value: email}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
