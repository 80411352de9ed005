package payments

import (
	"context"
	"strconv"
)

// Metadata keys attached to every tip intent so webhook handling can be
// traced back without a join.
const (
	MetaPerformanceID  = "performance_id"
	MetaPerformerID    = "performer_id"
	MetaTipperID       = "tipper_id"
	MetaIsAnonymous    = "is_anonymous"
	MetaPublicMessage  = "public_message"
	MetaTransactionID  = "transaction_id"
	MetaProcessingFee  = "processing_fee"
	MetaPlatformFee    = "platform_fee"
	MetaNetAmount      = "net_amount"
	MetaConnectAccount = "connect_account_id"

	AnonymousTipper = "anonymous"
)

const (
	LinkTypeOnboarding = "account_onboarding"
	LinkTypeUpdate     = "account_update"
)

// Gateway is the only component that talks to the payment processor.
type Gateway interface {
	CreateTipIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	CreateConnectedAccount(ctx context.Context, req AccountRequest) (*ConnectedAccount, error)
	GetConnectedAccount(ctx context.Context, accountID string) (*ConnectedAccount, error)
	CreateOnboardingLink(ctx context.Context, accountID, linkType string) (string, error)
	Transfer(ctx context.Context, req TransferRequest) (string, error)
	ParseWebhook(payload []byte, signatureHeader string) (Event, error)
}

type IntentRequest struct {
	AmountMinor        int64
	Currency           string
	Metadata           map[string]string
	PaymentMethodTypes []string
	// ConnectedAccountID selects the connect path and its platform fee.
	ConnectedAccountID string
	// GroupingKey ties the intent to the later payout transfer.
	GroupingKey string
}

type Intent struct {
	IntentID      string
	ClientSecret  string
	Amount        int64
	ProcessingFee int64
	PlatformFee   int64
	NetAmount     int64
	Metadata      map[string]string
}

type AccountRequest struct {
	PerformerID  string
	Email        string
	Country      string
	BusinessType string
}

type ConnectedAccount struct {
	AccountID        string
	OnboardingURL    string
	DetailsSubmitted bool
	ChargesEnabled   bool
	PayoutsEnabled   bool
}

type TransferRequest struct {
	AmountMinor          int64
	Currency             string
	DestinationAccountID string
	GroupingKey          string
	SourceChargeID       string
}

// intentMetadata copies the caller's metadata and appends the fee breakdown.
func intentMetadata(req IntentRequest, fees Fees) map[string]string {
	md := make(map[string]string, len(req.Metadata)+5)
	for k, v := range req.Metadata {
		md[k] = v
	}
	md[MetaProcessingFee] = strconv.FormatInt(fees.ProcessingFee, 10)
	md[MetaPlatformFee] = strconv.FormatInt(fees.PlatformFee, 10)
	md[MetaNetAmount] = strconv.FormatInt(fees.NetAmount, 10)
	if req.GroupingKey != "" {
		md[MetaTransactionID] = req.GroupingKey
	}
	if req.ConnectedAccountID != "" {
		md[MetaConnectAccount] = req.ConnectedAccountID
	}
	return md
}

var (
	_ Gateway = (*StripeGateway)(nil)
	_ Gateway = (*FakeGateway)(nil)
)
