package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MohammedAK1991/street-performers-map-sub000/database"
	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/rs/zerolog"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "ledger.db")+"?_busy_timeout=5000", zerolog.Nop())
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

func newTip(intentID string) *models.Transaction {
	tipper := "user_1"
	return &models.Transaction{
		Amount:                   500,
		Currency:                 "usd",
		ProcessingFee:            45,
		NetAmount:                455,
		FromUserID:               &tipper,
		ToUserID:                 "performer_1",
		PerformanceID:            "perf_1",
		ProcessorPaymentIntentID: intentID,
	}
}

func createTip(t *testing.T, s *Store, tx *models.Transaction) *models.Transaction {
	t.Helper()
	if err := s.Create(context.Background(), tx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return tx
}

func TestCreate_GivenNewTip_WhenCreated_ThenPendingWithID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	tx := newTip("pi_1")
	tx.Status = models.StatusCompleted
	tx.RetryCount = 7
	createTip(t, s, tx)

	if tx.ID == "" {
		t.Fatal("expected id to be assigned")
	}

	got, err := s.Get(ctx, tx.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != models.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.PayoutStatus != models.PayoutPending {
		t.Errorf("PayoutStatus = %q, want pending", got.PayoutStatus)
	}
	if got.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", got.RetryCount)
	}
	if got.Amount != 500 || got.ProcessingFee != 45 || got.NetAmount != 455 {
		t.Errorf("amounts = %d/%d/%d", got.Amount, got.ProcessingFee, got.NetAmount)
	}
}

func TestCreate_GivenDuplicateIntent_ThenSecondFails(t *testing.T) {
	s := setupTestStore(t)
	createTip(t, s, newTip("pi_dup"))

	err := s.Create(context.Background(), newTip("pi_dup"))
	if !errors.Is(err, ErrDuplicateIntent) {
		t.Fatalf("second Create() error = %v, want ErrDuplicateIntent", err)
	}
}

func TestCreate_GivenConcurrentDuplicates_ThenExactlyOneSucceeds(t *testing.T) {
	s := setupTestStore(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Create(context.Background(), newTip("pi_race")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("%d concurrent creates succeeded, want 1", succeeded)
	}
}

func TestFindByIntentID_GivenUnknownIntent_ThenErrNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.FindByIntentID(context.Background(), "pi_unknown")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByIntentID() error = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMarkCompleted(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTip(t, s, newTip("pi_ok"))

	tx, changed, err := s.MarkCompleted(ctx, "pi_ok", "ch_1")
	if err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if !changed {
		t.Error("first MarkCompleted should report a change")
	}
	if tx.Status != models.StatusCompleted {
		t.Errorf("Status = %q, want completed", tx.Status)
	}
	if tx.ProcessorChargeID == nil || *tx.ProcessorChargeID != "ch_1" {
		t.Errorf("ProcessorChargeID = %v, want ch_1", tx.ProcessorChargeID)
	}

	again, changed, err := s.MarkCompleted(ctx, "pi_ok", "ch_1")
	if err != nil {
		t.Fatalf("second MarkCompleted() error = %v", err)
	}
	if changed {
		t.Error("second MarkCompleted should be a no-op")
	}
	if again.ID != tx.ID || again.Status != models.StatusCompleted {
		t.Errorf("second MarkCompleted returned %+v", again)
	}
}

func TestMarkCompleted_FromProcessing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTip(t, s, newTip("pi_proc"))

	if _, changed, err := s.MarkProcessing(ctx, "pi_proc"); err != nil || !changed {
		t.Fatalf("MarkProcessing() changed=%v err=%v", changed, err)
	}
	tx, changed, err := s.MarkCompleted(ctx, "pi_proc", "ch_2")
	if err != nil || !changed {
		t.Fatalf("MarkCompleted() changed=%v err=%v", changed, err)
	}
	if tx.Status != models.StatusCompleted {
		t.Errorf("Status = %q", tx.Status)
	}
}

func TestMarkCompleted_GivenFailed_ThenInvalidTransition(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTip(t, s, newTip("pi_failed"))

	if _, _, err := s.MarkFailed(ctx, "pi_failed", "declined"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	tx, changed, err := s.MarkCompleted(ctx, "pi_failed", "ch_late")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("MarkCompleted() error = %v, want ErrInvalidTransition", err)
	}
	if changed || tx.Status != models.StatusFailed {
		t.Errorf("failed transaction was reopened: %+v", tx)
	}
}

func TestMarkCompleted_GivenUnknownIntent_ThenErrNotFound(t *testing.T) {
	s := setupTestStore(t)

	if _, _, err := s.MarkCompleted(context.Background(), "pi_nope", "ch_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkCompleted() error = %v, want ErrNotFound", err)
	}
}

func TestMarkFailed(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTip(t, s, newTip("pi_decline"))

	tx, changed, err := s.MarkFailed(ctx, "pi_decline", "Your card was declined.")
	if err != nil || !changed {
		t.Fatalf("MarkFailed() changed=%v err=%v", changed, err)
	}
	if tx.Status != models.StatusFailed {
		t.Errorf("Status = %q, want failed", tx.Status)
	}
	if tx.FailureReason == nil || *tx.FailureReason != "Your card was declined." {
		t.Errorf("FailureReason = %v", tx.FailureReason)
	}
	if tx.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", tx.RetryCount)
	}

	tx, changed, err = s.MarkFailed(ctx, "pi_decline", "again")
	if err != nil || changed {
		t.Fatalf("repeat MarkFailed() changed=%v err=%v", changed, err)
	}
	if tx.RetryCount != 1 {
		t.Errorf("repeat MarkFailed bumped RetryCount to %d", tx.RetryCount)
	}
}

func TestMarkFailed_GivenCompleted_ThenInvalidTransition(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTip(t, s, newTip("pi_done"))
	if _, _, err := s.MarkCompleted(ctx, "pi_done", "ch_1"); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}

	if _, _, err := s.MarkFailed(ctx, "pi_done", "late failure"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("MarkFailed() error = %v, want ErrInvalidTransition", err)
	}
}

func TestMarkProcessing_GivenCompleted_ThenNoOp(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTip(t, s, newTip("pi_ooo"))
	if _, _, err := s.MarkCompleted(ctx, "pi_ooo", "ch_1"); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}

	tx, changed, err := s.MarkProcessing(ctx, "pi_ooo")
	if err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	if changed || tx.Status != models.StatusCompleted {
		t.Errorf("late processing event moved status to %q", tx.Status)
	}
}

func TestMarkRefunded(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTip(t, s, newTip("pi_refund"))
	createTip(t, s, newTip("pi_pending"))

	if _, _, err := s.MarkCompleted(ctx, "pi_refund", "ch_1"); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	tx, changed, err := s.MarkRefunded(ctx, "pi_refund")
	if err != nil || !changed || tx.Status != models.StatusRefunded {
		t.Fatalf("MarkRefunded() tx=%+v changed=%v err=%v", tx, changed, err)
	}
	if _, changed, err := s.MarkRefunded(ctx, "pi_refund"); err != nil || changed {
		t.Errorf("repeat MarkRefunded() changed=%v err=%v", changed, err)
	}

	if _, _, err := s.MarkRefunded(ctx, "pi_pending"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("MarkRefunded(pending) error = %v, want ErrInvalidTransition", err)
	}
}

func TestPayoutLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	tx := createTip(t, s, newTip("pi_payout"))

	claimed, err := s.ClaimPayout(ctx, tx.ID)
	if err != nil {
		t.Fatalf("ClaimPayout() error = %v", err)
	}
	if claimed {
		t.Fatal("payout claimed before the payment completed")
	}

	if _, _, err := s.MarkCompleted(ctx, "pi_payout", "ch_1"); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}

	if claimed, err = s.ClaimPayout(ctx, tx.ID); err != nil || !claimed {
		t.Fatalf("ClaimPayout() claimed=%v err=%v", claimed, err)
	}
	if claimed, err = s.ClaimPayout(ctx, tx.ID); err != nil || claimed {
		t.Fatalf("second ClaimPayout() claimed=%v err=%v, want false", claimed, err)
	}

	if err := s.CompletePayout(ctx, tx.ID, "tr_1"); err != nil {
		t.Fatalf("CompletePayout() error = %v", err)
	}
	got, err := s.Get(ctx, tx.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.PayoutStatus != models.PayoutCompleted || got.PayoutID == nil || *got.PayoutID != "tr_1" || got.PayoutDate == nil {
		t.Errorf("payout not recorded: status=%q id=%v date=%v", got.PayoutStatus, got.PayoutID, got.PayoutDate)
	}

	if err := s.FailPayout(ctx, tx.ID, "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("FailPayout() after completion error = %v, want ErrInvalidTransition", err)
	}
}

func TestClaimPayout_GivenConcurrentClaims_ThenOneWins(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	tx := createTip(t, s, newTip("pi_claim_race"))
	if _, _, err := s.MarkCompleted(ctx, "pi_claim_race", "ch_1"); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := s.ClaimPayout(ctx, tx.ID); err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("%d claims won, want 1", wins)
	}
}

func TestFailPayout(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	tx := createTip(t, s, newTip("pi_payfail"))
	if _, _, err := s.MarkCompleted(ctx, "pi_payfail", "ch_1"); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if ok, err := s.ClaimPayout(ctx, tx.ID); err != nil || !ok {
		t.Fatalf("ClaimPayout() ok=%v err=%v", ok, err)
	}

	if err := s.FailPayout(ctx, tx.ID, "insufficient balance"); err != nil {
		t.Fatalf("FailPayout() error = %v", err)
	}

	got, _ := s.Get(ctx, tx.ID)
	if got.Status != models.StatusCompleted {
		t.Errorf("payout failure changed status to %q", got.Status)
	}
	if got.PayoutStatus != models.PayoutFailed || got.PayoutError == nil || *got.PayoutError != "insufficient balance" {
		t.Errorf("payout failure not recorded: %+v", got)
	}
	if ok, _ := s.ClaimPayout(ctx, tx.ID); ok {
		t.Error("failed payout was claimable again")
	}
}

func TestSummary_CountsCompletedOnly(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	amounts := []int64{500, 1000, 250}
	for i, amount := range amounts {
		tx := newTip(fmt.Sprintf("pi_sum_%d", i))
		tx.Amount = amount
		tx.ProcessingFee = 40
		tx.PlatformFee = 10
		tx.NetAmount = amount - 50
		createTip(t, s, tx)
		if _, _, err := s.MarkCompleted(ctx, tx.ProcessorPaymentIntentID, ""); err != nil {
			t.Fatalf("MarkCompleted() error = %v", err)
		}
	}
	createTip(t, s, newTip("pi_sum_pending"))
	failed := createTip(t, s, newTip("pi_sum_failed"))
	if _, _, err := s.MarkFailed(ctx, failed.ProcessorPaymentIntentID, "declined"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	other := newTip("pi_other_performer")
	other.ToUserID = "performer_2"
	createTip(t, s, other)
	if _, _, err := s.MarkCompleted(ctx, other.ProcessorPaymentIntentID, ""); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}

	sum, err := s.Summary(ctx, "performer_1", nil, nil)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	want := Summary{Count: 3, TotalAmount: 1750, AverageAmount: 583, TotalFees: 150, TotalNet: 1600}
	if *sum != want {
		t.Errorf("Summary() = %+v, want %+v", *sum, want)
	}
}

func TestSummary_DateRange(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTip(t, s, newTip("pi_range"))
	if _, _, err := s.MarkCompleted(ctx, "pi_range", ""); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name      string
		from, to  *time.Time
		wantCount int64
	}{
		{name: "open range", wantCount: 1},
		{name: "covering range", from: &past, to: &future, wantCount: 1},
		{name: "range in the future", from: &future, wantCount: 0},
		{name: "range ending in the past", to: &past, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := s.Summary(ctx, "performer_1", tt.from, tt.to)
			if err != nil {
				t.Fatalf("Summary() error = %v", err)
			}
			if sum.Count != tt.wantCount {
				t.Errorf("Count = %d, want %d", sum.Count, tt.wantCount)
			}
		})
	}
}

func TestSummary_GivenNoTips_ThenZero(t *testing.T) {
	s := setupTestStore(t)

	sum, err := s.Summary(context.Background(), "nobody", nil, nil)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if *sum != (Summary{}) {
		t.Errorf("Summary() = %+v, want zero", *sum)
	}
}

func TestRecentPublicTips(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tx := newTip(fmt.Sprintf("pi_pub_%d", i))
		tx.PublicMessage = fmt.Sprintf("bravo %d", i)
		createTip(t, s, tx)
		if _, _, err := s.MarkCompleted(ctx, tx.ProcessorPaymentIntentID, ""); err != nil {
			t.Fatalf("MarkCompleted() error = %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	anon := newTip("pi_anon")
	anon.IsAnonymous = true
	createTip(t, s, anon)
	if _, _, err := s.MarkCompleted(ctx, "pi_anon", ""); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	createTip(t, s, newTip("pi_still_pending"))

	tips, err := s.RecentPublicTips(ctx, "perf_1", 0)
	if err != nil {
		t.Fatalf("RecentPublicTips() error = %v", err)
	}
	if len(tips) != 3 {
		t.Fatalf("got %d tips, want 3 (anonymous and pending excluded)", len(tips))
	}
	if tips[0].PublicMessage != "bravo 2" {
		t.Errorf("newest tip = %q, want bravo 2", tips[0].PublicMessage)
	}

	limited, err := s.RecentPublicTips(ctx, "perf_1", 2)
	if err != nil {
		t.Fatalf("RecentPublicTips() error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d tips with limit 2", len(limited))
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{-1: 10, 0: 10, 1: 1, 25: 25, 50: 50, 51: 50, 1000: 50}
	for in, want := range tests {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestListByStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	createTip(t, s, newTip("pi_l1"))
	createTip(t, s, newTip("pi_l2"))
	if _, _, err := s.MarkCompleted(ctx, "pi_l2", ""); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}

	pending, err := s.ListByStatus(ctx, models.StatusPending, 0, 0)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ProcessorPaymentIntentID != "pi_l1" {
		t.Errorf("pending = %+v", pending)
	}

	all, err := s.ListByStatus(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d transactions, want 2", len(all))
	}
}

func TestListForPerformer(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	mine := newTip("pi_m1")
	createTip(t, s, mine)
	other := newTip("pi_o1")
	other.ToUserID = "performer_2"
	createTip(t, s, other)
	createTip(t, s, newTip("pi_m2"))
	if _, _, err := s.MarkFailed(ctx, "pi_m2", "declined"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}

	all, err := s.ListForPerformer(ctx, mine.ToUserID, "", 0, 0)
	if err != nil {
		t.Fatalf("ListForPerformer() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d transactions, want 2", len(all))
	}
	for _, tx := range all {
		if tx.ToUserID != mine.ToUserID {
			t.Errorf("foreign transaction %s listed", tx.ID)
		}
	}

	failed, err := s.ListForPerformer(ctx, mine.ToUserID, models.StatusFailed, 10, 0)
	if err != nil {
		t.Fatalf("ListForPerformer() error = %v", err)
	}
	if len(failed) != 1 || failed[0].ProcessorPaymentIntentID != "pi_m2" {
		t.Errorf("failed = %+v", failed)
	}
}
