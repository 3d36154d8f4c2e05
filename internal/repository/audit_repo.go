package repository

import (
	"context"
	"time"

	"nfaportal/internal/model"

	"gorm.io/gorm"
)

// AuditFilter narrows List. Zero values match everything.
type AuditFilter struct {
	UserID    int
	RequestID int
	Action    string
	From      time.Time
	To        time.Time
}

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter, page, limit int) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter, page, limit int) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	query := applyAuditFilter(GetDB(ctx, r.db).Model(&model.AuditLog{}), filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetch := applyAuditFilter(GetDB(ctx, r.db), filter)
	if err := fetch.Order("created_at desc").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

func applyAuditFilter(db *gorm.DB, f AuditFilter) *gorm.DB {
	if f.UserID != 0 {
		db = db.Where("user_id = ?", f.UserID)
	}
	if f.RequestID != 0 {
		db = db.Where("request_id = ?", f.RequestID)
	}
	if f.Action != "" {
		db = db.Where("action = ?", f.Action)
	}
	if !f.From.IsZero() {
		db = db.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		db = db.Where("created_at < ?", f.To)
	}
	return db
}
