package payments

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	RefreshURL    string
	ReturnURL     string
}

// StripeGateway implements Gateway against the Stripe API. Connect tips use
// separate charges and transfers: the intent is charged to the platform and
// the performer is paid by a single Transfer after the payment succeeds.
type StripeGateway struct {
	api           *client.API
	fees          FeeSchedule
	webhookSecret string
	refreshURL    string
	returnURL     string
	log           zerolog.Logger
}

func NewStripeGateway(cfg StripeConfig, fees FeeSchedule, log zerolog.Logger) *StripeGateway {
	return &StripeGateway{
		api:           client.New(cfg.SecretKey, nil),
		fees:          fees,
		webhookSecret: cfg.WebhookSecret,
		refreshURL:    cfg.RefreshURL,
		returnURL:     cfg.ReturnURL,
		log:           log,
	}
}

func (g *StripeGateway) CreateTipIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	fees := g.fees.Calculate(req.AmountMinor, req.ConnectedAccountID != "")
	md := intentMetadata(req, fees)

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountMinor),
		Currency:           stripe.String(req.Currency),
		PaymentMethodTypes: stripe.StringSlice(req.PaymentMethodTypes),
	}
	params.Context = ctx
	if req.GroupingKey != "" {
		params.TransferGroup = stripe.String(req.GroupingKey)
		params.SetIdempotencyKey("tip_intent_" + req.GroupingKey)
	}
	for k, v := range md {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, &GatewayError{Op: "create intent", Err: err}
	}

	g.log.Info().
		Str("intent_id", pi.ID).
		Int64("amount", req.AmountMinor).
		Str("currency", req.Currency).
		Bool("connect", req.ConnectedAccountID != "").
		Msg("payment intent created")

	return &Intent{
		IntentID:      pi.ID,
		ClientSecret:  pi.ClientSecret,
		Amount:        fees.Amount,
		ProcessingFee: fees.ProcessingFee,
		PlatformFee:   fees.PlatformFee,
		NetAmount:     fees.NetAmount,
		Metadata:      md,
	}, nil
}

func (g *StripeGateway) CreateConnectedAccount(ctx context.Context, req AccountRequest) (*ConnectedAccount, error) {
	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String(req.Country),
		Email:   stripe.String(req.Email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	if req.BusinessType != "" {
		params.BusinessType = stripe.String(req.BusinessType)
	}
	params.Context = ctx
	params.SetIdempotencyKey("connect_account_" + req.PerformerID)
	params.AddMetadata(MetaPerformerID, req.PerformerID)

	acct, err := g.api.Accounts.New(params)
	if err != nil {
		return nil, &GatewayError{Op: "create account", Err: err}
	}

	url, err := g.CreateOnboardingLink(ctx, acct.ID, LinkTypeOnboarding)
	if err != nil {
		return nil, err
	}

	out := accountFromStripe(acct)
	out.OnboardingURL = url
	return out, nil
}

func (g *StripeGateway) GetConnectedAccount(ctx context.Context, accountID string) (*ConnectedAccount, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := g.api.Accounts.GetByID(accountID, params)
	if err != nil {
		if isStripeNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, &GatewayError{Op: "get account", Err: err}
	}
	return accountFromStripe(acct), nil
}

func (g *StripeGateway) CreateOnboardingLink(ctx context.Context, accountID, linkType string) (string, error) {
	if linkType == "" {
		linkType = LinkTypeOnboarding
	}
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(g.refreshURL),
		ReturnURL:  stripe.String(g.returnURL),
		Type:       stripe.String(linkType),
	}
	params.Context = ctx

	link, err := g.api.AccountLinks.New(params)
	if err != nil {
		if isStripeNotFound(err) {
			return "", ErrAccountNotFound
		}
		return "", &GatewayError{Op: "create account link", Err: err}
	}
	return link.URL, nil
}

func (g *StripeGateway) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(req.AmountMinor),
		Currency:      stripe.String(req.Currency),
		Destination:   stripe.String(req.DestinationAccountID),
		TransferGroup: stripe.String(req.GroupingKey),
	}
	if req.SourceChargeID != "" {
		params.SourceTransaction = stripe.String(req.SourceChargeID)
	}
	params.Context = ctx
	params.SetIdempotencyKey("tip_transfer_" + req.GroupingKey)
	params.AddMetadata(MetaTransactionID, req.GroupingKey)

	tr, err := g.api.Transfers.New(params)
	if err != nil {
		return "", &GatewayError{Op: "transfer", Err: err}
	}
	return tr.ID, nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (Event, error) {
	return verifyAndDecode(payload, signatureHeader, g.webhookSecret)
}

func isStripeNotFound(err error) bool {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code == stripe.ErrorCodeResourceMissing || serr.HTTPStatusCode == http.StatusNotFound
}
