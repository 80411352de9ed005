// Package directory stores each performer's connected payout account and its
// onboarding status.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("directory: performer account not found")

// AccountUpdate carries processor-reported fields. An empty AccountID leaves
// the stored id untouched, and an empty Email keeps the stored email.
type AccountUpdate struct {
	AccountID        string
	Email            string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) Get(ctx context.Context, performerID string) (*models.PerformerAccount, error) {
	var acct models.PerformerAccount
	if err := s.db.WithContext(ctx).Where("performer_id = ?", performerID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get performer account %s: %w", performerID, err)
	}
	return &acct, nil
}

func (s *Store) FindByAccountID(ctx context.Context, accountID string) (*models.PerformerAccount, error) {
	var acct models.PerformerAccount
	if err := s.db.WithContext(ctx).Where("connect_account_id = ?", accountID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find performer by account %s: %w", accountID, err)
	}
	return &acct, nil
}

// Upsert creates or refreshes a performer's processor fields inside a single
// transaction. A stored account id is never cleared.
func (s *Store) Upsert(ctx context.Context, performerID string, upd AccountUpdate) (*models.PerformerAccount, error) {
	var acct models.PerformerAccount

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("performer_id = ?", performerID).
			First(&acct).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if isNew {
			acct = models.PerformerAccount{PerformerID: performerID}
		}

		if upd.AccountID != "" {
			id := upd.AccountID
			acct.ConnectAccountID = &id
		}
		if upd.Email != "" {
			acct.Email = upd.Email
		}
		acct.ChargesEnabled = upd.ChargesEnabled
		acct.PayoutsEnabled = upd.PayoutsEnabled
		acct.DetailsSubmitted = upd.DetailsSubmitted
		acct.AccountStatus = DeriveStatus(upd.ChargesEnabled, upd.PayoutsEnabled, upd.DetailsSubmitted)

		if isNew {
			return tx.Create(&acct).Error
		}
		return tx.Save(&acct).Error
	})
	if err != nil {
		return nil, fmt.Errorf("upsert performer account %s: %w", performerID, err)
	}

	s.log.Debug().
		Str("performer_id", performerID).
		Str("account_status", string(acct.AccountStatus)).
		Msg("performer account synced")
	return &acct, nil
}

// DeriveStatus maps processor capability flags onto an onboarding status.
func DeriveStatus(chargesEnabled, payoutsEnabled, detailsSubmitted bool) models.AccountStatus {
	switch {
	case chargesEnabled && payoutsEnabled:
		return models.AccountActive
	case detailsSubmitted:
		return models.AccountPending
	default:
		return models.AccountOnboarding
	}
}
