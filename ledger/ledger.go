// Package ledger is the authoritative record of tip transactions. Every
// status change is a single-row conditional UPDATE, so concurrent webhook
// deliveries for the same intent cannot move a row backwards or pay it twice.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("ledger: transaction not found")
	ErrDuplicateIntent   = errors.New("ledger: payment intent already recorded")
	ErrInvalidTransition = errors.New("ledger: invalid status transition")
)

const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 50
)

type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// Create inserts tx in pending state. The unique index on the intent id is
// the only duplicate check.
func (s *Store) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.Status = models.StatusPending
	tx.PayoutStatus = models.PayoutPending
	tx.RetryCount = 0
	tx.FailureReason = nil
	tx.ProcessorChargeID = nil
	tx.PayoutID = nil
	tx.PayoutDate = nil
	tx.PayoutError = nil

	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateIntent, tx.ProcessorPaymentIntentID)
		}
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return &tx, nil
}

// FindByIntentID returns ErrNotFound for unknown intents; callers treat that
// as a normal outcome.
func (s *Store) FindByIntentID(ctx context.Context, intentID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.WithContext(ctx).
		Where("processor_payment_intent_id = ?", intentID).
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find transaction by intent %s: %w", intentID, err)
	}
	return &tx, nil
}

// MarkProcessing moves a pending transaction to processing. Any other state is
// left alone.
func (s *Store) MarkProcessing(ctx context.Context, intentID string) (*models.Transaction, bool, error) {
	return s.transition(ctx, intentID,
		[]models.TransactionStatus{models.StatusPending},
		map[string]interface{}{"status": models.StatusProcessing})
}

// MarkCompleted records a successful payment. A second call for an already
// completed transaction returns the stored row with changed == false.
func (s *Store) MarkCompleted(ctx context.Context, intentID, chargeID string) (*models.Transaction, bool, error) {
	updates := map[string]interface{}{"status": models.StatusCompleted}
	if chargeID != "" {
		updates["processor_charge_id"] = chargeID
	}

	tx, changed, err := s.transition(ctx, intentID,
		[]models.TransactionStatus{models.StatusPending, models.StatusProcessing}, updates)
	if err != nil || changed || tx.Status == models.StatusCompleted {
		return tx, changed, err
	}
	return tx, false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, tx.Status, models.StatusCompleted)
}

// MarkFailed stores reason and bumps the retry count. Failed transactions are
// never reopened; a retry is a new transaction.
func (s *Store) MarkFailed(ctx context.Context, intentID, reason string) (*models.Transaction, bool, error) {
	tx, changed, err := s.transition(ctx, intentID,
		[]models.TransactionStatus{models.StatusPending, models.StatusProcessing},
		map[string]interface{}{
			"status":         models.StatusFailed,
			"failure_reason": reason,
			"retry_count":    gorm.Expr("retry_count + 1"),
		})
	if err != nil || changed || tx.Status == models.StatusFailed {
		return tx, changed, err
	}
	return tx, false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, tx.Status, models.StatusFailed)
}

func (s *Store) MarkRefunded(ctx context.Context, intentID string) (*models.Transaction, bool, error) {
	tx, changed, err := s.transition(ctx, intentID,
		[]models.TransactionStatus{models.StatusCompleted},
		map[string]interface{}{"status": models.StatusRefunded})
	if err != nil || changed || tx.Status == models.StatusRefunded {
		return tx, changed, err
	}
	return tx, false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, tx.Status, models.StatusRefunded)
}

func (s *Store) transition(ctx context.Context, intentID string, from []models.TransactionStatus, updates map[string]interface{}) (*models.Transaction, bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("processor_payment_intent_id = ? AND status IN ?", intentID, from).
		Updates(updates)
	if res.Error != nil {
		return nil, false, fmt.Errorf("update transaction %s: %w", intentID, res.Error)
	}

	tx, err := s.FindByIntentID(ctx, intentID)
	if err != nil {
		return nil, false, err
	}
	return tx, res.RowsAffected == 1, nil
}

// ClaimPayout reserves the single transfer attempt for a completed
// transaction. It returns false when the attempt was already claimed.
func (s *Store) ClaimPayout(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ? AND payout_status = ?", id, models.StatusCompleted, models.PayoutPending).
		Update("payout_status", models.PayoutProcessing)
	if res.Error != nil {
		return false, fmt.Errorf("claim payout %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) CompletePayout(ctx context.Context, id, transferID string) error {
	return s.finishPayout(ctx, id, map[string]interface{}{
		"payout_status": models.PayoutCompleted,
		"payout_id":     transferID,
		"payout_date":   time.Now(),
	})
}

func (s *Store) FailPayout(ctx context.Context, id, reason string) error {
	return s.finishPayout(ctx, id, map[string]interface{}{
		"payout_status": models.PayoutFailed,
		"payout_error":  reason,
		"payout_date":   time.Now(),
	})
}

func (s *Store) finishPayout(ctx context.Context, id string, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND payout_status = ?", id, models.PayoutProcessing).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("record payout %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: payout for %s is not in progress", ErrInvalidTransition, id)
	}
	return nil
}

// Summary aggregates completed transactions only. Amounts are minor units.
type Summary struct {
	Count         int64 `json:"count"`
	TotalAmount   int64 `json:"total_amount"`
	AverageAmount int64 `json:"average_amount"`
	TotalFees     int64 `json:"total_fees"`
	TotalNet      int64 `json:"total_net"`
}

// Summary totals a performer's completed tips, optionally limited to
// [from, to).
func (s *Store) Summary(ctx context.Context, performerID string, from, to *time.Time) (*Summary, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("to_user_id = ? AND status = ?", performerID, models.StatusCompleted)
	if from != nil {
		q = q.Where("created_at >= ?", from.Local())
	}
	if to != nil {
		q = q.Where("created_at < ?", to.Local())
	}

	var row struct {
		Count       int64
		TotalAmount int64
		TotalFees   int64
		TotalNet    int64
	}
	err := q.Select("COUNT(*) AS count, " +
		"COALESCE(SUM(amount), 0) AS total_amount, " +
		"COALESCE(SUM(processing_fee + platform_fee), 0) AS total_fees, " +
		"COALESCE(SUM(net_amount), 0) AS total_net").
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("summarize performer %s: %w", performerID, err)
	}

	sum := &Summary{
		Count:       row.Count,
		TotalAmount: row.TotalAmount,
		TotalFees:   row.TotalFees,
		TotalNet:    row.TotalNet,
	}
	if row.Count > 0 {
		sum.AverageAmount = decimal.NewFromInt(row.TotalAmount).
			Div(decimal.NewFromInt(row.Count)).
			Round(0).IntPart()
	}
	return sum, nil
}

// RecentPublicTips lists completed, non-anonymous tips for a performance,
// newest first.
func (s *Store) RecentPublicTips(ctx context.Context, performanceID string, limit int) ([]models.PublicTip, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("performance_id = ? AND status = ? AND is_anonymous = ?", performanceID, models.StatusCompleted, false).
		Order("created_at DESC").
		Limit(ClampLimit(limit)).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("recent tips for %s: %w", performanceID, err)
	}

	tips := make([]models.PublicTip, 0, len(txs))
	for _, tx := range txs {
		tips = append(tips, models.PublicTip{
			ID:            tx.ID,
			Amount:        tx.Amount,
			Currency:      tx.Currency,
			FromUserID:    tx.FromUserID,
			PublicMessage: tx.PublicMessage,
			CreatedAt:     tx.CreatedAt,
		})
	}
	return tips, nil
}

// ListByStatus pages through transactions, newest first. An empty status
// lists everything.
func (s *Store) ListByStatus(ctx context.Context, status models.TransactionStatus, limit, offset int) ([]models.Transaction, error) {
	q := s.db.WithContext(ctx).Model(&models.Transaction{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return s.page(q, limit, offset)
}

// ListForPerformer pages through the tips a performer received, newest first.
func (s *Store) ListForPerformer(ctx context.Context, performerID string, status models.TransactionStatus, limit, offset int) ([]models.Transaction, error) {
	q := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("to_user_id = ?", performerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return s.page(q, limit, offset)
}

func (s *Store) page(q *gorm.DB, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var txs []models.Transaction
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
