package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BoxFilters struct {
	City    string
	Area    string
	OwnerID string
	Limit   int
	Offset  int
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&CricketBox{})
}

func (r *Repository) Create(ctx context.Context, b *CricketBox) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.applyDefaults()
	if _, err := b.Grid(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("create box: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*CricketBox, error) {
	var b CricketBox
	err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBoxNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get box: %w", err)
	}
	return &b, nil
}

// List returns active boxes, newest first.
func (r *Repository) List(ctx context.Context, f BoxFilters) ([]CricketBox, int64, error) {
	var boxes []CricketBox
	var total int64

	q := r.db.WithContext(ctx).Model(&CricketBox{}).Where("is_active = ?", true)
	if f.City != "" {
		q = q.Where("city = ?", f.City)
	}
	if f.Area != "" {
		q = q.Where("area = ?", f.Area)
	}
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count boxes: %w", err)
	}

	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&boxes).Error; err != nil {
		return nil, 0, fmt.Errorf("list boxes: %w", err)
	}
	return boxes, total, nil
}

func (r *Repository) IncrementTotalBookings(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Model(&CricketBox{}).
		Where("id = ?", id).
		UpdateColumn("total_bookings", gorm.Expr("total_bookings + 1")).Error
	if err != nil {
		return fmt.Errorf("increment total bookings: %w", err)
	}
	return nil
}
