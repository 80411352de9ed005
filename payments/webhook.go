package payments

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

type EventKind int

const (
	EventUnhandled EventKind = iota
	EventPaymentSucceeded
	EventPaymentFailed
	EventPaymentProcessing
	EventChargeRefunded
	EventAccountUpdated
)

var eventKinds = map[string]EventKind{
	"payment_intent.succeeded":      EventPaymentSucceeded,
	"payment_intent.payment_failed": EventPaymentFailed,
	"payment_intent.processing":     EventPaymentProcessing,
	"charge.refunded":               EventChargeRefunded,
	"account.updated":               EventAccountUpdated,
}

func (k EventKind) String() string {
	switch k {
	case EventPaymentSucceeded:
		return "payment_succeeded"
	case EventPaymentFailed:
		return "payment_failed"
	case EventPaymentProcessing:
		return "payment_processing"
	case EventChargeRefunded:
		return "charge_refunded"
	case EventAccountUpdated:
		return "account_updated"
	default:
		return "unhandled"
	}
}

// Event is a verified processor notification reduced to the fields
// reconciliation needs.
type Event struct {
	ID             string
	Type           string
	Kind           EventKind
	IntentID       string
	ChargeID       string
	FailureMessage string
	Account        *ConnectedAccount
	Payload        []byte
}

// verifyAndDecode checks the signature over the raw payload bytes, then maps
// the processor envelope onto an Event.
func verifyAndDecode(payload []byte, signatureHeader, secret string) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(evt, payload)
}

func decodeEvent(evt stripe.Event, payload []byte) (Event, error) {
	out := Event{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Kind:    eventKinds[string(evt.Type)],
		Payload: payload,
	}
	if evt.Data == nil {
		out.Kind = EventUnhandled
		return out, nil
	}

	switch out.Kind {
	case EventPaymentSucceeded, EventPaymentFailed, EventPaymentProcessing:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return out, fmt.Errorf("decode payment intent: %w", err)
		}
		out.IntentID = pi.ID
		if pi.LatestCharge != nil {
			out.ChargeID = pi.LatestCharge.ID
		}
		if pi.LastPaymentError != nil {
			out.FailureMessage = pi.LastPaymentError.Msg
		}

	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(evt.Data.Raw, &ch); err != nil {
			return out, fmt.Errorf("decode charge: %w", err)
		}
		out.ChargeID = ch.ID
		if ch.PaymentIntent != nil {
			out.IntentID = ch.PaymentIntent.ID
		}

	case EventAccountUpdated:
		var acct stripe.Account
		if err := json.Unmarshal(evt.Data.Raw, &acct); err != nil {
			return out, fmt.Errorf("decode account: %w", err)
		}
		out.Account = accountFromStripe(&acct)
	}
	return out, nil
}

func accountFromStripe(acct *stripe.Account) *ConnectedAccount {
	return &ConnectedAccount{
		AccountID:        acct.ID,
		DetailsSubmitted: acct.DetailsSubmitted,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
	}
}
