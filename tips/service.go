// Package tips coordinates the tip payment pipeline: request validation,
// payment intent creation, ledger bookkeeping and webhook-driven
// reconciliation with the performer payout.
package tips

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MohammedAK1991/street-performers-map-sub000/audit"
	"github.com/MohammedAK1991/street-performers-map-sub000/directory"
	"github.com/MohammedAK1991/street-performers-map-sub000/ledger"
	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/MohammedAK1991/street-performers-map-sub000/payments"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var (
	// ErrRecordTip is returned when the processor accepted an intent but the
	// ledger write failed. The intent is left for an operator.
	ErrRecordTip          = errors.New("tips: could not record tip")
	ErrTransfer           = errors.New("tips: payout transfer failed")
	ErrNoConnectedAccount = errors.New("tips: performer has no connected account")
)

const defaultFailureReason = "Payment failed"

type Validator interface {
	Validate(amount decimal.Decimal, currency string) (int64, error)
	Currency(currency string) (string, error)
}

type Ledger interface {
	Create(ctx context.Context, tx *models.Transaction) error
	FindByIntentID(ctx context.Context, intentID string) (*models.Transaction, error)
	MarkProcessing(ctx context.Context, intentID string) (*models.Transaction, bool, error)
	MarkCompleted(ctx context.Context, intentID, chargeID string) (*models.Transaction, bool, error)
	MarkFailed(ctx context.Context, intentID, reason string) (*models.Transaction, bool, error)
	MarkRefunded(ctx context.Context, intentID string) (*models.Transaction, bool, error)
	ClaimPayout(ctx context.Context, id string) (bool, error)
	CompletePayout(ctx context.Context, id, transferID string) error
	FailPayout(ctx context.Context, id, reason string) error
	Summary(ctx context.Context, performerID string, from, to *time.Time) (*ledger.Summary, error)
	RecentPublicTips(ctx context.Context, performanceID string, limit int) ([]models.PublicTip, error)
}

type Directory interface {
	Get(ctx context.Context, performerID string) (*models.PerformerAccount, error)
	FindByAccountID(ctx context.Context, accountID string) (*models.PerformerAccount, error)
	Upsert(ctx context.Context, performerID string, upd directory.AccountUpdate) (*models.PerformerAccount, error)
}

type Notifier interface {
	TipCompleted(tx models.Transaction)
}

type Auditor interface {
	Record(ctx context.Context, entry models.AuditLog) error
}

// EventLog deduplicates verified webhook deliveries by event id.
type EventLog interface {
	Begin(ctx context.Context, evt payments.Event) (bool, error)
	Finish(ctx context.Context, eventID string, procErr error) error
}

type Config struct {
	MaxMessageLength int
}

type Deps struct {
	Validator Validator
	Gateway   payments.Gateway
	Ledger    Ledger
	Directory Directory
	Notifier  Notifier
	Auditor   Auditor
	Events    EventLog
}

type Service struct {
	validator Validator
	gateway   payments.Gateway
	ledger    Ledger
	directory Directory
	notifier  Notifier
	auditor   Auditor
	events    EventLog
	cfg       Config
	log       zerolog.Logger
}

func NewService(deps Deps, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		validator: deps.Validator,
		gateway:   deps.Gateway,
		ledger:    deps.Ledger,
		directory: deps.Directory,
		notifier:  deps.Notifier,
		auditor:   deps.Auditor,
		events:    deps.Events,
		cfg:       cfg,
		log:       log,
	}
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// TipInput is a tip request. Amount is in major units. TipperID is empty for
// unauthenticated tippers; IsAnonymous only hides a known tipper on display.
type TipInput struct {
	Amount        decimal.Decimal
	Currency      string
	PerformanceID string
	PerformerID   string
	TipperID      string
	IsAnonymous   bool
	PublicMessage string
	Country       string
	City          string
	Coordinates   *Coordinates
}

type TipResult struct {
	TransactionID string
	ClientSecret  string
	AmountMinor   int64
	Currency      string
	ProcessingFee int64
	PlatformFee   int64
	NetAmount     int64
}

// CreateTip validates the request, opens a payment intent and records a
// pending transaction. Rejected requests never reach the processor.
func (s *Service) CreateTip(ctx context.Context, in TipInput) (*TipResult, error) {
	if strings.TrimSpace(in.PerformanceID) == "" {
		return nil, &payments.ValidationError{Field: "performance_id", Reason: "is required"}
	}
	if strings.TrimSpace(in.PerformerID) == "" {
		return nil, &payments.ValidationError{Field: "performer_id", Reason: "is required"}
	}
	if s.cfg.MaxMessageLength > 0 && utf8.RuneCountInString(in.PublicMessage) > s.cfg.MaxMessageLength {
		return nil, &payments.ValidationError{
			Field:  "public_message",
			Reason: fmt.Sprintf("must be at most %d characters", s.cfg.MaxMessageLength),
		}
	}

	amountMinor, err := s.validator.Validate(in.Amount, in.Currency)
	if err != nil {
		return nil, err
	}
	currency, err := s.validator.Currency(in.Currency)
	if err != nil {
		return nil, err
	}

	txID := uuid.NewString()
	connectID := s.payoutAccount(ctx, in.PerformerID)

	tipper := in.TipperID
	if tipper == "" {
		tipper = payments.AnonymousTipper
	}

	intent, err := s.gateway.CreateTipIntent(ctx, payments.IntentRequest{
		AmountMinor: amountMinor,
		Currency:    currency,
		Metadata: map[string]string{
			payments.MetaPerformanceID: in.PerformanceID,
			payments.MetaPerformerID:   in.PerformerID,
			payments.MetaTipperID:      tipper,
			payments.MetaIsAnonymous:   strconv.FormatBool(in.IsAnonymous),
			payments.MetaPublicMessage: in.PublicMessage,
		},
		PaymentMethodTypes: payments.PaymentMethodTypes(in.Country, currency),
		ConnectedAccountID: connectID,
		GroupingKey:        txID,
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("performer_id", in.PerformerID).
			Str("performance_id", in.PerformanceID).
			Int64("amount", amountMinor).
			Msg("payment intent creation failed")
		return nil, err
	}

	tx := &models.Transaction{
		ID:                       txID,
		Amount:                   amountMinor,
		Currency:                 currency,
		ProcessingFee:            intent.ProcessingFee,
		PlatformFee:              intent.PlatformFee,
		NetAmount:                intent.NetAmount,
		ToUserID:                 in.PerformerID,
		PerformanceID:            in.PerformanceID,
		ProcessorPaymentIntentID: intent.IntentID,
		IsAnonymous:              in.IsAnonymous,
		PublicMessage:            in.PublicMessage,
		Location: models.Location{
			City:    in.City,
			Country: strings.ToUpper(in.Country),
		},
	}
	if in.TipperID != "" {
		tipperID := in.TipperID
		tx.FromUserID = &tipperID
	}
	if in.Coordinates != nil {
		lat, lng := in.Coordinates.Latitude, in.Coordinates.Longitude
		tx.Location.Latitude = &lat
		tx.Location.Longitude = &lng
	}
	if md, err := json.Marshal(intent.Metadata); err == nil {
		tx.Metadata = datatypes.JSON(md)
	}

	if err := s.ledger.Create(ctx, tx); err != nil {
		s.log.Error().Err(err).
			Str("anomaly", "orphaned_intent").
			Str("intent_id", intent.IntentID).
			Str("transaction_id", txID).
			Int64("amount", amountMinor).
			Msg("payment intent created but ledger write failed")
		s.audit(ctx, tx.FromUserID, audit.ActionOrphanedIntent, audit.ResourceTransaction,
			fmt.Sprintf("intent %s for %d %s to performer %s has no ledger row: %v",
				intent.IntentID, amountMinor, currency, in.PerformerID, err))
		return nil, ErrRecordTip
	}

	s.log.Info().
		Str("transaction_id", tx.ID).
		Str("intent_id", intent.IntentID).
		Int64("amount", amountMinor).
		Bool("connect", connectID != "").
		Msg("tip created")
	s.audit(ctx, tx.FromUserID, audit.ActionTipCreated, audit.ResourceTransaction,
		fmt.Sprintf("tip %s of %d %s to performer %s", tx.ID, amountMinor, currency, in.PerformerID))

	return &TipResult{
		TransactionID: tx.ID,
		ClientSecret:  intent.ClientSecret,
		AmountMinor:   amountMinor,
		Currency:      currency,
		ProcessingFee: intent.ProcessingFee,
		PlatformFee:   intent.PlatformFee,
		NetAmount:     intent.NetAmount,
	}, nil
}

// payoutAccount returns the connected account to route a tip through, or ""
// for the direct path.
func (s *Service) payoutAccount(ctx context.Context, performerID string) string {
	acct, err := s.directory.Get(ctx, performerID)
	if err != nil {
		if !errors.Is(err, directory.ErrNotFound) {
			s.log.Warn().Err(err).Str("performer_id", performerID).Msg("performer account lookup failed, using direct path")
		}
		return ""
	}
	if !acct.HasAccount() || !acct.ChargesEnabled {
		return ""
	}
	return *acct.ConnectAccountID
}

func (s *Service) PerformerSummary(ctx context.Context, performerID string, from, to *time.Time) (*ledger.Summary, error) {
	return s.ledger.Summary(ctx, performerID, from, to)
}

func (s *Service) RecentPublicTips(ctx context.Context, performanceID string, limit int) ([]models.PublicTip, error) {
	return s.ledger.RecentPublicTips(ctx, performanceID, limit)
}

func (s *Service) audit(ctx context.Context, actorID *string, action, resource, details string) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Record(ctx, models.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Resource: resource,
		Details:  details,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}
