package directory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/MohammedAK1991/street-performers-map-sub000/database"
	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/rs/zerolog"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "directory.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	return NewStore(db, zerolog.Nop())
}

func TestGet_GivenUnknownPerformer_ThenErrNotFound(t *testing.T) {
	s := setupTestStore(t)

	if _, err := s.Get(context.Background(), "performer_x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if _, err := s.FindByAccountID(context.Background(), "acct_x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByAccountID() error = %v, want ErrNotFound", err)
	}
}

func TestUpsert_CreatesThenUpdates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created, err := s.Upsert(ctx, "performer_1", AccountUpdate{AccountID: "acct_1", Email: "busker@example.com"})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !created.HasAccount() || *created.ConnectAccountID != "acct_1" {
		t.Fatalf("account id not stored: %+v", created)
	}
	if created.AccountStatus != models.AccountOnboarding {
		t.Errorf("AccountStatus = %q, want onboarding", created.AccountStatus)
	}

	updated, err := s.Upsert(ctx, "performer_1", AccountUpdate{
		AccountID:        "acct_1",
		ChargesEnabled:   true,
		PayoutsEnabled:   true,
		DetailsSubmitted: true,
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if updated.AccountStatus != models.AccountActive {
		t.Errorf("AccountStatus = %q, want active", updated.AccountStatus)
	}
	if updated.Email != "busker@example.com" {
		t.Errorf("Email = %q, empty update should keep stored email", updated.Email)
	}

	byAccount, err := s.FindByAccountID(ctx, "acct_1")
	if err != nil {
		t.Fatalf("FindByAccountID() error = %v", err)
	}
	if byAccount.PerformerID != "performer_1" || !byAccount.ChargesEnabled {
		t.Errorf("FindByAccountID() = %+v", byAccount)
	}
}

func TestUpsert_GivenEmptyAccountID_ThenStoredIDKept(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, "performer_1", AccountUpdate{AccountID: "acct_keep"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	got, err := s.Upsert(ctx, "performer_1", AccountUpdate{DetailsSubmitted: true})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if !got.HasAccount() || *got.ConnectAccountID != "acct_keep" {
		t.Errorf("account id cleared: %v", got.ConnectAccountID)
	}
	if got.AccountStatus != models.AccountPending {
		t.Errorf("AccountStatus = %q, want pending", got.AccountStatus)
	}

	stored, err := s.Get(ctx, "performer_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !stored.HasAccount() || *stored.ConnectAccountID != "acct_keep" {
		t.Errorf("stored account id = %v, want acct_keep", stored.ConnectAccountID)
	}
}

func TestUpsert_GivenNoAccountID_ThenRecordWithoutAccount(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.Upsert(context.Background(), "performer_2", AccountUpdate{Email: "new@example.com"})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if got.HasAccount() {
		t.Errorf("expected no account id, got %v", *got.ConnectAccountID)
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		charges, payouts, details bool
		want                      models.AccountStatus
	}{
		{charges: true, payouts: true, details: true, want: models.AccountActive},
		{charges: true, payouts: true, details: false, want: models.AccountActive},
		{charges: true, payouts: false, details: true, want: models.AccountPending},
		{charges: false, payouts: false, details: true, want: models.AccountPending},
		{charges: false, payouts: false, details: false, want: models.AccountOnboarding},
		{charges: true, payouts: false, details: false, want: models.AccountOnboarding},
	}

	for _, tt := range tests {
		if got := DeriveStatus(tt.charges, tt.payouts, tt.details); got != tt.want {
			t.Errorf("DeriveStatus(%v, %v, %v) = %q, want %q", tt.charges, tt.payouts, tt.details, got, tt.want)
		}
	}
}
