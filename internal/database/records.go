package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"whatsapp-template-studio/internal/models"
)

var ErrNotFound = errors.New("record not found")

// Records stores submissions and their approval history.
type Records struct {
	db *gorm.DB
}

func NewRecords(db *gorm.DB) *Records {
	return &Records{db: db}
}

// CreateSubmission inserts s together with its asset, if any.
func (r *Records) CreateSubmission(ctx context.Context, s *models.Submission) error {
	if s.Status == "" {
		s.Status = "PENDING"
	}
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Records) latest(ctx context.Context, templateName string) (*models.Submission, error) {
	var s models.Submission
	err := r.db.WithContext(ctx).
		Where("template_name = ?", templateName).
		Order("created_at DESC, id DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: submission %q", ErrNotFound, templateName)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RecordCheck appends a status check to the latest submission of templateName.
func (r *Records) RecordCheck(ctx context.Context, templateName, status, checkErr, source string) error {
	s, err := r.latest(ctx, templateName)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&models.StatusCheck{
		SubmissionID: s.ID,
		TemplateName: templateName,
		Status:       status,
		Error:        checkErr,
		Source:       source,
	}).Error
}

func decided(status string) bool {
	return status == "APPROVED" || status == "REJECTED"
}

// UpdateStatus sets the review status of the latest submission of
// templateName. A decision is stamped once and is never reverted to PENDING;
// the raw provider value stays in the status-check log.
func (r *Records) UpdateStatus(ctx context.Context, templateName, status string) error {
	s, err := r.latest(ctx, templateName)
	if err != nil {
		return err
	}
	if decided(s.Status) && !decided(status) {
		return nil
	}
	updates := map[string]any{"status": status}
	if decided(status) && s.DecidedAt == nil {
		now := time.Now()
		updates["decided_at"] = &now
	}
	return r.db.WithContext(ctx).Model(s).Updates(updates).Error
}

// SetFlow records the outcome of flow creation.
func (r *Records) SetFlow(ctx context.Context, templateName, flowID, flowErr string) error {
	s, err := r.latest(ctx, templateName)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(s).Updates(map[string]any{
		"flow_id":    flowID,
		"flow_error": flowErr,
	}).Error
}

// ListSubmissions returns the newest submissions first.
func (r *Records) ListSubmissions(ctx context.Context, limit int) ([]models.Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Submission
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetSubmission returns the latest submission of name with its asset and
// check history.
func (r *Records) GetSubmission(ctx context.Context, name string) (*models.Submission, error) {
	s, err := r.latest(ctx, name)
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).
		Preload("Asset").
		Preload("Checks", func(db *gorm.DB) *gorm.DB { return db.Order("checked_at ASC, id ASC") }).
		First(s, s.ID).Error
	if err != nil {
		return nil, err
	}
	return s, nil
}
