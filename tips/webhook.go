package tips

import (
	"context"
	"errors"
	"fmt"

	"github.com/MohammedAK1991/street-performers-map-sub000/audit"
	"github.com/MohammedAK1991/street-performers-map-sub000/directory"
	"github.com/MohammedAK1991/street-performers-map-sub000/ledger"
	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/MohammedAK1991/street-performers-map-sub000/payments"
	"github.com/rs/zerolog"
)

// HandleProcessorWebhook verifies and reconciles one processor delivery.
// Only a signature failure is returned; everything after verification is
// logged and acknowledged so the processor does not redeliver permanent
// failures.
func (s *Service) HandleProcessorWebhook(ctx context.Context, rawBody []byte, signature string) error {
	evt, err := s.gateway.ParseWebhook(rawBody, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			s.log.Warn().Err(err).Msg("webhook signature verification failed")
			return err
		}
		s.log.Error().Err(err).Str("event_id", evt.ID).Str("event_type", evt.Type).Msg("verified webhook could not be decoded")
		return nil
	}

	log := s.log.With().Str("event_id", evt.ID).Str("event_type", evt.Type).Logger()

	if s.events != nil {
		dup, err := s.events.Begin(ctx, evt)
		if err != nil {
			log.Warn().Err(err).Msg("webhook event log unavailable")
		} else if dup {
			log.Debug().Msg("webhook event already processed")
			return nil
		}
	}

	procErr := s.dispatch(ctx, evt, log)
	if procErr != nil {
		log.Error().Err(procErr).Str("kind", evt.Kind.String()).Msg("webhook handling failed")
	}

	if s.events != nil {
		if err := s.events.Finish(ctx, evt.ID, procErr); err != nil {
			log.Warn().Err(err).Msg("webhook event log update failed")
		}
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, evt payments.Event, log zerolog.Logger) error {
	switch evt.Kind {
	case payments.EventPaymentSucceeded:
		return s.paymentSucceeded(ctx, evt, log)
	case payments.EventPaymentFailed:
		return s.paymentFailed(ctx, evt, log)
	case payments.EventPaymentProcessing:
		return s.paymentProcessing(ctx, evt, log)
	case payments.EventChargeRefunded:
		return s.chargeRefunded(ctx, evt, log)
	case payments.EventAccountUpdated:
		return s.accountUpdated(ctx, evt, log)
	default:
		log.Debug().Msg("unhandled webhook event type")
		return nil
	}
}

// lookup finds the transaction for an intent. A miss is expected (for
// example test events) and reported as nil, nil.
func (s *Service) lookup(ctx context.Context, intentID string, log zerolog.Logger) (*models.Transaction, error) {
	if intentID == "" {
		log.Warn().Msg("webhook event without payment intent id")
		return nil, nil
	}
	tx, err := s.ledger.FindByIntentID(ctx, intentID)
	if errors.Is(err, ledger.ErrNotFound) {
		log.Warn().Str("intent_id", intentID).Msg("no transaction for payment intent")
		return nil, nil
	}
	return tx, err
}

func (s *Service) paymentSucceeded(ctx context.Context, evt payments.Event, log zerolog.Logger) error {
	tx, err := s.lookup(ctx, evt.IntentID, log)
	if tx == nil || err != nil {
		return err
	}

	tx, changed, err := s.ledger.MarkCompleted(ctx, evt.IntentID, evt.ChargeID)
	if errors.Is(err, ledger.ErrInvalidTransition) {
		log.Warn().Err(err).Str("intent_id", evt.IntentID).Msg("ignoring success for settled transaction")
		return nil
	}
	if err != nil {
		return err
	}

	if changed {
		log.Info().
			Str("transaction_id", tx.ID).
			Str("intent_id", evt.IntentID).
			Int64("amount", tx.Amount).
			Msg("tip completed")
		if s.notifier != nil {
			s.notifier.TipCompleted(*tx)
		}
	}

	s.attemptPayout(ctx, tx, log)
	return nil
}

// attemptPayout transfers the net amount to the performer's connected
// account at most once. Failures are recorded on the payout fields and never
// touch the completed status.
func (s *Service) attemptPayout(ctx context.Context, tx *models.Transaction, log zerolog.Logger) {
	log = log.With().Str("transaction_id", tx.ID).Str("performer_id", tx.ToUserID).Logger()

	acct, err := s.directory.Get(ctx, tx.ToUserID)
	switch {
	case errors.Is(err, directory.ErrNotFound), err == nil && !acct.HasAccount():
		log.Info().Msg("performer has no connected account, payout deferred")
		return
	case err != nil:
		log.Warn().Err(err).Msg("performer account lookup failed, payout deferred")
		return
	}

	claimed, err := s.ledger.ClaimPayout(ctx, tx.ID)
	if err != nil {
		log.Error().Err(err).Msg("could not claim payout")
		return
	}
	if !claimed {
		log.Debug().Msg("payout already attempted")
		return
	}

	req := payments.TransferRequest{
		AmountMinor:          tx.NetAmount,
		Currency:             tx.Currency,
		DestinationAccountID: *acct.ConnectAccountID,
		GroupingKey:          tx.ID,
	}
	if tx.ProcessorChargeID != nil {
		req.SourceChargeID = *tx.ProcessorChargeID
	}

	transferID, err := s.gateway.Transfer(ctx, req)
	if err != nil {
		terr := fmt.Errorf("%w: %v", ErrTransfer, err)
		log.Error().Err(terr).
			Str("account_id", req.DestinationAccountID).
			Int64("amount", req.AmountMinor).
			Msg("payout transfer failed")
		if ferr := s.ledger.FailPayout(ctx, tx.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("could not record failed payout")
		}
		s.audit(ctx, nil, audit.ActionPayoutFailed, audit.ResourceTransaction,
			fmt.Sprintf("transfer of %d %s for %s to %s failed", req.AmountMinor, req.Currency, tx.ID, req.DestinationAccountID))
		return
	}

	if err := s.ledger.CompletePayout(ctx, tx.ID, transferID); err != nil {
		log.Error().Err(err).Str("transfer_id", transferID).Msg("transfer sent but not recorded")
		return
	}
	log.Info().Str("transfer_id", transferID).Int64("amount", req.AmountMinor).Msg("payout transferred")
	s.audit(ctx, nil, audit.ActionPayout, audit.ResourceTransaction,
		fmt.Sprintf("transfer %s of %d %s for %s to %s", transferID, req.AmountMinor, req.Currency, tx.ID, req.DestinationAccountID))
}

func (s *Service) paymentFailed(ctx context.Context, evt payments.Event, log zerolog.Logger) error {
	tx, err := s.lookup(ctx, evt.IntentID, log)
	if tx == nil || err != nil {
		return err
	}

	reason := evt.FailureMessage
	if reason == "" {
		reason = defaultFailureReason
	}
	tx, changed, err := s.ledger.MarkFailed(ctx, evt.IntentID, reason)
	if errors.Is(err, ledger.ErrInvalidTransition) {
		log.Warn().Err(err).Str("intent_id", evt.IntentID).Msg("ignoring failure for settled transaction")
		return nil
	}
	if err != nil {
		return err
	}
	if changed {
		log.Info().Str("transaction_id", tx.ID).Str("reason", reason).Msg("tip payment failed")
	}
	return nil
}

func (s *Service) paymentProcessing(ctx context.Context, evt payments.Event, log zerolog.Logger) error {
	tx, err := s.lookup(ctx, evt.IntentID, log)
	if tx == nil || err != nil {
		return err
	}
	_, _, err = s.ledger.MarkProcessing(ctx, evt.IntentID)
	return err
}

func (s *Service) chargeRefunded(ctx context.Context, evt payments.Event, log zerolog.Logger) error {
	tx, err := s.lookup(ctx, evt.IntentID, log)
	if tx == nil || err != nil {
		return err
	}

	tx, changed, err := s.ledger.MarkRefunded(ctx, evt.IntentID)
	if errors.Is(err, ledger.ErrInvalidTransition) {
		log.Warn().Err(err).Str("intent_id", evt.IntentID).Msg("refund for transaction that never completed")
		return nil
	}
	if err != nil {
		return err
	}
	if changed {
		log.Info().Str("transaction_id", tx.ID).Str("payout_status", string(tx.PayoutStatus)).Msg("tip refunded")
	}
	return nil
}

func (s *Service) accountUpdated(ctx context.Context, evt payments.Event, log zerolog.Logger) error {
	if evt.Account == nil || evt.Account.AccountID == "" {
		log.Warn().Msg("account event without account id")
		return nil
	}

	acct, err := s.directory.FindByAccountID(ctx, evt.Account.AccountID)
	if errors.Is(err, directory.ErrNotFound) {
		log.Warn().Str("account_id", evt.Account.AccountID).Msg("no performer for connected account")
		return nil
	}
	if err != nil {
		return err
	}

	updated, err := s.directory.Upsert(ctx, acct.PerformerID, accountUpdate(evt.Account))
	if err != nil {
		return err
	}
	log.Info().
		Str("performer_id", updated.PerformerID).
		Str("account_status", string(updated.AccountStatus)).
		Msg("connected account synced")
	return nil
}

func accountUpdate(acct *payments.ConnectedAccount) directory.AccountUpdate {
	return directory.AccountUpdate{
		AccountID:        acct.AccountID,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}
}
