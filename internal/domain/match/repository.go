package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&MatchRequest{})
}

type OpenFilters struct {
	Area   string
	Date   string
	Skill  string
	Limit  int
	Offset int
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, m *MatchRequest) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create match request: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*MatchRequest, error) {
	var m MatchRequest
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match request: %w", err)
	}
	return &m, nil
}

// Save writes the mutable fields of m if the stored version still equals
// version. False means another writer got there first.
func (r *Repository) Save(ctx context.Context, m *MatchRequest, version int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&MatchRequest{}).
		Where("id = ? AND version = ?", m.ID, version).
		Updates(map[string]any{
			"join_requests":    m.JoinRequests,
			"accepted_players": m.AcceptedPlayers,
			"players_joined":   m.PlayersJoined,
			"status":           m.Status,
			"booking_id":       m.BookingID,
			"version":          version + 1,
			"updated_at":       m.UpdatedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("save match request: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) ListOpen(ctx context.Context, f OpenFilters) ([]MatchRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&MatchRequest{}).Where("status = ?", StatusOpen)
	if f.Area != "" {
		q = q.Where("LOWER(preferred_area) = LOWER(?)", f.Area)
	}
	if f.Date != "" {
		q = q.Where("match_date = ?", f.Date)
	}
	if f.Skill != "" {
		q = q.Where("skill_level_required = ?", f.Skill)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count match requests: %w", err)
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}

	var out []MatchRequest
	err := q.Order("match_date ASC, created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list match requests: %w", err)
	}
	return out, total, nil
}

func (r *Repository) ListByCreator(ctx context.Context, creatorID string, status Status) ([]MatchRequest, error) {
	q := r.db.WithContext(ctx).Where("creator_id = ?", creatorID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []MatchRequest
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list created match requests: %w", err)
	}
	return out, nil
}

// ListJoined narrows by a text match on the JSON columns; callers must
// still check membership on the decoded rows.
func (r *Repository) ListJoined(ctx context.Context, userID string) ([]MatchRequest, error) {
	needle := `%"` + userID + `"%`
	var out []MatchRequest
	err := r.db.WithContext(ctx).
		Where("join_requests LIKE ? OR accepted_players LIKE ?", needle, needle).
		Order("match_date DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list joined match requests: %w", err)
	}
	return out, nil
}

// ExpireBefore expires open requests whose match date is before date.
func (r *Repository) ExpireBefore(ctx context.Context, date string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&MatchRequest{}).
		Where("status = ? AND match_date < ?", StatusOpen, date).
		Updates(map[string]any{
			"status":     StatusExpired,
			"version":    gorm.Expr("version + 1"),
			"updated_at": at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("expire match requests: %w", res.Error)
	}
	return res.RowsAffected, nil
}
