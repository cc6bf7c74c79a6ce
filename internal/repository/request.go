package repository

import (
	"context"

	"dreambook/internal/models"

	"gorm.io/gorm"
)

// RequestFilter narrows a request listing.
type RequestFilter struct {
	Status models.RequestStatus
	Limit  int
	Offset int
}

// RequestRepository defines dream request and response data operations
type RequestRepository interface {
	Create(ctx context.Context, req *models.DreamRequest) error
	GetByID(ctx context.Context, id string) (*models.DreamRequest, error)
	List(ctx context.Context, f RequestFilter) ([]*models.DreamRequest, int64, error)
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error
	CreateResponse(ctx context.Context, resp *models.DreamResponse) error
}

type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *models.DreamRequest) error {
	return r.db.WithContext(ctx).Omit("Bot", "Responses").Create(req).Error
}

// GetByID loads the request with its bot and visible responses, oldest first.
func (r *requestRepository) GetByID(ctx context.Context, id string) (*models.DreamRequest, error) {
	var req models.DreamRequest
	err := withRequestCount(r.db.WithContext(ctx)).
		Preload("Bot").
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Where("flagged = ?", false).Order("created_at ASC")
		}).
		Preload("Responses.Bot").
		Where("dream_requests.id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns visible requests, newest first.
func (r *requestRepository) List(ctx context.Context, f RequestFilter) ([]*models.DreamRequest, int64, error) {
	db := r.db.WithContext(ctx)
	filter := func(q *gorm.DB) *gorm.DB {
		q = q.Where("dream_requests.flagged = ?", false)
		if f.Status != "" {
			q = q.Where("dream_requests.status = ?", f.Status)
		}
		return q
	}

	var total int64
	if err := filter(db.Model(&models.DreamRequest{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reqs []*models.DreamRequest
	err := filter(withRequestCount(db)).
		Preload("Bot").
		Order("dream_requests.created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&reqs).Error
	if err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}

func (r *requestRepository) UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error {
	res := r.db.WithContext(ctx).Model(&models.DreamRequest{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *requestRepository) CreateResponse(ctx context.Context, resp *models.DreamResponse) error {
	return r.db.WithContext(ctx).Omit("Request", "Bot").Create(resp).Error
}

func withRequestCount(db *gorm.DB) *gorm.DB {
	return db.Select("dream_requests.*, (SELECT COUNT(*) FROM dream_responses WHERE dream_responses.request_id = dream_requests.id AND dream_responses.flagged = ?) AS response_count", false)
}
