package payments

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFakeGateway_CreateTipIntent(t *testing.T) {
	g := newTestGateway()
	ctx := context.Background()

	t.Run("direct tip", func(t *testing.T) {
		intent, err := g.CreateTipIntent(ctx, IntentRequest{
			AmountMinor: 500,
			Currency:    "usd",
			Metadata:    map[string]string{MetaPerformerID: "performer_1"},
			GroupingKey: "tx_1",
		})
		if err != nil {
			t.Fatalf("CreateTipIntent() error = %v", err)
		}
		if !strings.HasPrefix(intent.IntentID, "pi_fake_") {
			t.Errorf("IntentID = %q, want pi_fake_ prefix", intent.IntentID)
		}
		if intent.ClientSecret == "" {
			t.Error("expected client secret")
		}
		if intent.ProcessingFee != 45 || intent.PlatformFee != 0 || intent.NetAmount != 455 {
			t.Errorf("fees = %d/%d/%d, want 45/0/455", intent.ProcessingFee, intent.PlatformFee, intent.NetAmount)
		}
		if intent.Metadata[MetaNetAmount] != "455" || intent.Metadata[MetaTransactionID] != "tx_1" {
			t.Errorf("metadata missing fee breakdown: %v", intent.Metadata)
		}
		if intent.Metadata[MetaPerformerID] != "performer_1" {
			t.Errorf("caller metadata dropped: %v", intent.Metadata)
		}
	})

	t.Run("connect tip carries platform fee", func(t *testing.T) {
		intent, err := g.CreateTipIntent(ctx, IntentRequest{
			AmountMinor:        500,
			Currency:           "usd",
			ConnectedAccountID: "acct_1",
		})
		if err != nil {
			t.Fatalf("CreateTipIntent() error = %v", err)
		}
		if intent.PlatformFee != 25 || intent.NetAmount != 430 {
			t.Errorf("platform/net = %d/%d, want 25/430", intent.PlatformFee, intent.NetAmount)
		}
		if intent.Metadata[MetaConnectAccount] != "acct_1" {
			t.Errorf("metadata missing connect account: %v", intent.Metadata)
		}
	})

	t.Run("injected failure", func(t *testing.T) {
		g.FailIntents(errors.New("processor down"))
		defer g.FailIntents(nil)

		_, err := g.CreateTipIntent(ctx, IntentRequest{AmountMinor: 500, Currency: "usd"})
		var ge *GatewayError
		if !errors.As(err, &ge) {
			t.Fatalf("error = %v, want GatewayError", err)
		}
		if ge.Op != "create intent" {
			t.Errorf("Op = %q", ge.Op)
		}
	})

	if got := len(g.Intents()); got != 3 {
		t.Errorf("recorded %d intent calls, want 3", got)
	}
}

func TestFakeGateway_ConnectedAccounts(t *testing.T) {
	g := newTestGateway()
	ctx := context.Background()

	acct, err := g.CreateConnectedAccount(ctx, AccountRequest{
		PerformerID: "performer_1",
		Email:       "busker@example.com",
		Country:     "NL",
	})
	if err != nil {
		t.Fatalf("CreateConnectedAccount() error = %v", err)
	}
	if !strings.HasPrefix(acct.AccountID, "acct_fake_") || acct.OnboardingURL == "" {
		t.Fatalf("unexpected account: %+v", acct)
	}
	if acct.ChargesEnabled {
		t.Error("new account should not have charges enabled")
	}

	if !g.CompleteOnboarding(acct.AccountID) {
		t.Fatal("CompleteOnboarding() = false")
	}
	got, err := g.GetConnectedAccount(ctx, acct.AccountID)
	if err != nil {
		t.Fatalf("GetConnectedAccount() error = %v", err)
	}
	if !got.ChargesEnabled || !got.PayoutsEnabled || !got.DetailsSubmitted {
		t.Errorf("onboarding flags not set: %+v", got)
	}

	link, err := g.CreateOnboardingLink(ctx, acct.AccountID, LinkTypeUpdate)
	if err != nil {
		t.Fatalf("CreateOnboardingLink() error = %v", err)
	}
	if !strings.Contains(link, LinkTypeUpdate) {
		t.Errorf("link = %q, want account_update link", link)
	}

	if _, err := g.GetConnectedAccount(ctx, "acct_missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("GetConnectedAccount(missing) error = %v, want ErrAccountNotFound", err)
	}
	if _, err := g.CreateOnboardingLink(ctx, "acct_missing", ""); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("CreateOnboardingLink(missing) error = %v, want ErrAccountNotFound", err)
	}
}

func TestFakeGateway_Transfer(t *testing.T) {
	g := newTestGateway()
	ctx := context.Background()

	id, err := g.Transfer(ctx, TransferRequest{AmountMinor: 455, Currency: "usd", DestinationAccountID: "acct_1", GroupingKey: "tx_1"})
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if !strings.HasPrefix(id, "tr_fake_") {
		t.Errorf("transfer id = %q", id)
	}

	g.FailTransfers(errors.New("insufficient funds"))
	if _, err := g.Transfer(ctx, TransferRequest{AmountMinor: 1, GroupingKey: "tx_2"}); err == nil {
		t.Error("expected injected transfer failure")
	}

	transfers := g.Transfers()
	if len(transfers) != 2 {
		t.Fatalf("recorded %d transfers, want 2", len(transfers))
	}
	if transfers[0].AmountMinor != 455 || transfers[0].DestinationAccountID != "acct_1" {
		t.Errorf("first transfer = %+v", transfers[0])
	}
}
