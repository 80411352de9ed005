package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusRefunded   TransactionStatus = "refunded"
)

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

// Location is informational only.
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	City      string   `json:"city,omitempty"`
	Country   string   `json:"country,omitempty"`
}

// Transaction is the ledger entry for one tip attempt. Amounts are in minor
// currency units.
type Transaction struct {
	ID       string `json:"id" gorm:"primaryKey;size:36"`
	Amount   int64  `json:"amount" gorm:"not null"`
	Currency string `json:"currency" gorm:"size:3;not null"`

	ProcessingFee int64 `json:"processing_fee" gorm:"not null"`
	PlatformFee   int64 `json:"platform_fee" gorm:"not null;default:0"`
	NetAmount     int64 `json:"net_amount" gorm:"not null"`

	FromUserID    *string `json:"from_user_id" gorm:"index"`
	ToUserID      string  `json:"to_user_id" gorm:"index;not null"`
	PerformanceID string  `json:"performance_id" gorm:"index;not null"`

	ProcessorPaymentIntentID string  `json:"processor_payment_intent_id" gorm:"uniqueIndex;not null"`
	ProcessorChargeID        *string `json:"processor_charge_id"`

	IsAnonymous   bool   `json:"is_anonymous" gorm:"default:false"`
	PublicMessage string `json:"public_message"`

	Status        TransactionStatus `json:"status" gorm:"index;not null;default:pending"`
	FailureReason *string           `json:"failure_reason"`
	RetryCount    int               `json:"retry_count" gorm:"not null;default:0"`

	PayoutStatus PayoutStatus `json:"payout_status" gorm:"not null;default:pending"`
	PayoutID     *string      `json:"payout_id"`
	PayoutDate   *time.Time   `json:"payout_date"`
	PayoutError  *string      `json:"payout_error,omitempty"`

	Location Location       `json:"location" gorm:"embedded;embeddedPrefix:location_"`
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// CreateTipRequest is the public tip body. Amount is in major units and may
// be sent as a JSON number (5.00) or a string ("5.00"); bounds are checked by
// the amount validator.
type CreateTipRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" validate:"omitempty,len=3,alpha"`
	PerformanceID string          `json:"performance_id" validate:"required,max=64"`
	PerformerID   string          `json:"performer_id" validate:"required,max=64"`
	IsAnonymous   bool            `json:"is_anonymous"`
	PublicMessage string          `json:"public_message" validate:"max=500"`
	Coordinates   *Coordinates    `json:"coordinates" validate:"omitempty"`
}

type CreateTipResponse struct {
	TransactionID string `json:"transaction_id"`
	ClientSecret  string `json:"client_secret"`
	Amount        int64  `json:"amount"`
	ProcessingFee int64  `json:"processing_fee"`
	PlatformFee   int64  `json:"platform_fee"`
	NetAmount     int64  `json:"net_amount"`
	Currency      string `json:"currency"`
}

// PublicTip is the display projection of a completed, non-anonymous tip.
type PublicTip struct {
	ID            string    `json:"id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	FromUserID    *string   `json:"from_user_id"`
	PublicMessage string    `json:"public_message"`
	CreatedAt     time.Time `json:"created_at"`
}
