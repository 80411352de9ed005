package payments

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76/webhook"
)

// FakeGateway is an in-process processor used when no Stripe credentials are
// configured, and as the gateway double in tests. Webhooks are verified with
// the same signing scheme as StripeGateway.
type FakeGateway struct {
	mu            sync.Mutex
	fees          FeeSchedule
	webhookSecret string
	accounts      map[string]*ConnectedAccount
	intents       []IntentRequest
	transfers     []TransferRequest

	intentErr   error
	transferErr error
	accountErr  error
}

func NewFakeGateway(webhookSecret string, fees FeeSchedule) *FakeGateway {
	return &FakeGateway{
		fees:          fees,
		webhookSecret: webhookSecret,
		accounts:      make(map[string]*ConnectedAccount),
	}
}

func fakeID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func (g *FakeGateway) CreateTipIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.intents = append(g.intents, req)
	if g.intentErr != nil {
		return nil, &GatewayError{Op: "create intent", Err: g.intentErr}
	}

	fees := g.fees.Calculate(req.AmountMinor, req.ConnectedAccountID != "")
	id := fakeID("pi_fake_")
	return &Intent{
		IntentID:      id,
		ClientSecret:  id + "_secret_" + fakeID("")[:12],
		Amount:        fees.Amount,
		ProcessingFee: fees.ProcessingFee,
		PlatformFee:   fees.PlatformFee,
		NetAmount:     fees.NetAmount,
		Metadata:      intentMetadata(req, fees),
	}, nil
}

func (g *FakeGateway) CreateConnectedAccount(ctx context.Context, req AccountRequest) (*ConnectedAccount, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accountErr != nil {
		return nil, &GatewayError{Op: "create account", Err: g.accountErr}
	}

	acct := &ConnectedAccount{AccountID: fakeID("acct_fake_")}
	g.accounts[acct.AccountID] = acct

	out := *acct
	out.OnboardingURL = fakeLink(acct.AccountID, LinkTypeOnboarding)
	return &out, nil
}

func (g *FakeGateway) GetConnectedAccount(ctx context.Context, accountID string) (*ConnectedAccount, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accountErr != nil {
		return nil, &GatewayError{Op: "get account", Err: g.accountErr}
	}
	acct, ok := g.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	out := *acct
	return &out, nil
}

func (g *FakeGateway) CreateOnboardingLink(ctx context.Context, accountID, linkType string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.accounts[accountID]; !ok {
		return "", ErrAccountNotFound
	}
	if linkType == "" {
		linkType = LinkTypeOnboarding
	}
	return fakeLink(accountID, linkType), nil
}

func fakeLink(accountID, linkType string) string {
	return "https://connect.fake.local/" + linkType + "/" + accountID
}

func (g *FakeGateway) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.transfers = append(g.transfers, req)
	if g.transferErr != nil {
		return "", &GatewayError{Op: "transfer", Err: g.transferErr}
	}
	return fakeID("tr_fake_"), nil
}

func (g *FakeGateway) ParseWebhook(payload []byte, signatureHeader string) (Event, error) {
	return verifyAndDecode(payload, signatureHeader, g.webhookSecret)
}

// SignPayload returns a Stripe-Signature header for payload.
func (g *FakeGateway) SignPayload(payload []byte) string {
	return SignPayload(payload, g.webhookSecret, time.Now())
}

// SignPayload signs payload with secret using the processor's webhook scheme.
func SignPayload(payload []byte, secret string, at time.Time) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	})
	return signed.Header
}

// SetAccount registers or replaces a connected account.
func (g *FakeGateway) SetAccount(acct ConnectedAccount) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accounts[acct.AccountID] = &acct
}

// CompleteOnboarding enables charges and payouts for an account.
func (g *FakeGateway) CompleteOnboarding(accountID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	acct, ok := g.accounts[accountID]
	if !ok {
		return false
	}
	acct.DetailsSubmitted = true
	acct.ChargesEnabled = true
	acct.PayoutsEnabled = true
	return true
}

func (g *FakeGateway) FailIntents(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intentErr = err
}

func (g *FakeGateway) FailTransfers(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transferErr = err
}

func (g *FakeGateway) FailAccounts(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accountErr = err
}

func (g *FakeGateway) Intents() []IntentRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]IntentRequest(nil), g.intents...)
}

func (g *FakeGateway) Transfers() []TransferRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]TransferRequest(nil), g.transfers...)
}
