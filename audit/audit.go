// Package audit persists the operator-facing audit trail and the log of
// verified processor webhook deliveries.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/MohammedAK1991/street-performers-map-sub000/payments"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionTipCreated     = "CREATE"
	ActionOrphanedIntent = "ORPHANED_INTENT"
	ActionPayout         = "PAYOUT"
	ActionPayoutFailed   = "PAYOUT_FAILED"
	ActionConnectAccount = "CONNECT_ACCOUNT"

	ResourceTransaction = "TRANSACTION"
	ResourcePerformer   = "PERFORMER"
)

type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// Record appends an audit entry.
func (s *Store) Record(ctx context.Context, entry models.AuditLog) error {
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("record audit %s/%s: %w", entry.Action, entry.Resource, err)
	}
	return nil
}

// List returns audit entries newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]models.AuditLog, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.AuditLog{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, total, nil
}

// Begin records a verified webhook delivery. It reports duplicate == true
// when the same event was already processed without error.
func (s *Store) Begin(ctx context.Context, evt payments.Event) (bool, error) {
	var existing models.WebhookEvent
	err := s.db.WithContext(ctx).Where("event_id = ?", evt.ID).First(&existing).Error
	switch {
	case err == nil:
		return existing.ProcessedAt != nil && existing.ProcessingError == "", nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, fmt.Errorf("lookup webhook event %s: %w", evt.ID, err)
	}

	payload := datatypes.JSON(evt.Payload)
	if len(payload) == 0 {
		payload = datatypes.JSON("{}")
	}
	record := models.WebhookEvent{
		EventID:   evt.ID,
		EventType: evt.Type,
		Payload:   payload,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent delivery of the same event got there first.
			return false, nil
		}
		return false, fmt.Errorf("record webhook event %s: %w", evt.ID, err)
	}
	return false, nil
}

// Finish stamps the processing outcome of a webhook delivery.
func (s *Store) Finish(ctx context.Context, eventID string, procErr error) error {
	msg := ""
	if procErr != nil {
		msg = procErr.Error()
	}
	err := s.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"processed_at":     time.Now(),
			"processing_error": msg,
		}).Error
	if err != nil {
		return fmt.Errorf("finish webhook event %s: %w", eventID, err)
	}
	return nil
}

// ListWebhookEvents returns recorded deliveries newest first.
func (s *Store) ListWebhookEvents(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var events []models.WebhookEvent
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	return events, nil
}
