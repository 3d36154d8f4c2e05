package repository

import (
	"context"
	"errors"

	"nfaportal/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepository interface {
	Save(ctx context.Context, s *model.Session) error
	FindByTokenKey(ctx context.Context, key string) (*model.Session, error)
	DeleteByTokenKey(ctx context.Context, key string) error
	List(ctx context.Context) ([]model.Session, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Save inserts the session or refreshes the row holding the same token.
func (r *sessionRepository) Save(ctx context.Context, s *model.Session) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"sealed_token", "user_id", "user_name", "username", "email", "role_codes", "validated_at", "updated_at"}),
	}).Create(s).Error
}

// FindByTokenKey returns nil, nil when no row matches.
func (r *sessionRepository) FindByTokenKey(ctx context.Context, key string) (*model.Session, error) {
	var s model.Session
	err := GetDB(ctx, r.db).Where("token_key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) DeleteByTokenKey(ctx context.Context, key string) error {
	return GetDB(ctx, r.db).Where("token_key = ?", key).Delete(&model.Session{}).Error
}

func (r *sessionRepository) List(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := GetDB(ctx, r.db).Order("validated_at desc").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
