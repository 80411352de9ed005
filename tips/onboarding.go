package tips

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MohammedAK1991/street-performers-map-sub000/audit"
	"github.com/MohammedAK1991/street-performers-map-sub000/directory"
	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/MohammedAK1991/street-performers-map-sub000/payments"
)

type OnboardingInput struct {
	PerformerID  string
	Email        string
	Country      string
	BusinessType string
}

type Onboarding struct {
	Account       *models.PerformerAccount
	OnboardingURL string
}

// StartOnboarding creates the performer's connected account, or reuses the
// one on file, and returns a hosted onboarding link.
func (s *Service) StartOnboarding(ctx context.Context, in OnboardingInput) (*Onboarding, error) {
	if strings.TrimSpace(in.PerformerID) == "" {
		return nil, &payments.ValidationError{Field: "performer_id", Reason: "is required"}
	}

	existing, err := s.directory.Get(ctx, in.PerformerID)
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return nil, err
	}

	if existing.HasAccount() {
		url, err := s.gateway.CreateOnboardingLink(ctx, *existing.ConnectAccountID, payments.LinkTypeOnboarding)
		if err != nil {
			return nil, err
		}
		acct, err := s.RefreshAccount(ctx, in.PerformerID)
		if err != nil {
			return nil, err
		}
		return &Onboarding{Account: acct, OnboardingURL: url}, nil
	}

	remote, err := s.gateway.CreateConnectedAccount(ctx, payments.AccountRequest{
		PerformerID:  in.PerformerID,
		Email:        in.Email,
		Country:      strings.ToUpper(in.Country),
		BusinessType: in.BusinessType,
	})
	if err != nil {
		s.log.Error().Err(err).Str("performer_id", in.PerformerID).Msg("connected account creation failed")
		return nil, err
	}

	upd := accountUpdate(remote)
	upd.Email = in.Email
	acct, err := s.directory.Upsert(ctx, in.PerformerID, upd)
	if err != nil {
		s.log.Error().Err(err).
			Str("performer_id", in.PerformerID).
			Str("account_id", remote.AccountID).
			Msg("connected account created but not stored")
		return nil, err
	}

	performerID := in.PerformerID
	s.audit(ctx, &performerID, audit.ActionConnectAccount, audit.ResourcePerformer,
		fmt.Sprintf("connected account %s created for %s", remote.AccountID, in.PerformerID))
	s.log.Info().
		Str("performer_id", in.PerformerID).
		Str("account_id", remote.AccountID).
		Msg("connected account created")

	return &Onboarding{Account: acct, OnboardingURL: remote.OnboardingURL}, nil
}

// RefreshAccount syncs the stored record with the processor. Processor errors
// fall back to the stored record.
func (s *Service) RefreshAccount(ctx context.Context, performerID string) (*models.PerformerAccount, error) {
	stored, err := s.directory.Get(ctx, performerID)
	if err != nil {
		return nil, err
	}
	if !stored.HasAccount() {
		return stored, nil
	}

	remote, err := s.gateway.GetConnectedAccount(ctx, *stored.ConnectAccountID)
	if err != nil {
		s.log.Warn().Err(err).
			Str("performer_id", performerID).
			Str("account_id", *stored.ConnectAccountID).
			Msg("connected account refresh failed, serving stored status")
		return stored, nil
	}

	if remote.ChargesEnabled == stored.ChargesEnabled &&
		remote.PayoutsEnabled == stored.PayoutsEnabled &&
		remote.DetailsSubmitted == stored.DetailsSubmitted {
		return stored, nil
	}
	return s.directory.Upsert(ctx, performerID, accountUpdate(remote))
}

// OnboardingLink issues a fresh onboarding or update link for an existing
// connected account.
func (s *Service) OnboardingLink(ctx context.Context, performerID, linkType string) (string, error) {
	acct, err := s.directory.Get(ctx, performerID)
	if errors.Is(err, directory.ErrNotFound) {
		return "", ErrNoConnectedAccount
	}
	if err != nil {
		return "", err
	}
	if !acct.HasAccount() {
		return "", ErrNoConnectedAccount
	}
	if linkType == "" {
		linkType = payments.LinkTypeOnboarding
	}
	return s.gateway.CreateOnboardingLink(ctx, *acct.ConnectAccountID, linkType)
}
