package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zakatech/zakat-service/internal/domain"
	"github.com/zakatech/zakat-service/internal/store"
)

type trackerFixture struct {
	*serviceFixture
	tracker *Tracker
}

func newTrackerFixture(t *testing.T) *trackerFixture {
	t.Helper()
	f := newServiceFixture(t)
	tracker := NewTracker(f.repo, f.assets, f.prices, f.service, f.clock, discardLogger())
	return &trackerFixture{serviceFixture: f, tracker: tracker}
}

func (f *trackerFixture) enroll(userID uuid.UUID) {
	f.repo.trackedUsers = append(f.repo.trackedUsers, domain.TrackedUser{
		UserID:        userID,
		MethodologyID: domain.MethodologyStandard,
	})
}

func TestRunEvaluation_StartsHawlWhenNisabReached(t *testing.T) {
	f := newTrackerFixture(t)
	userID := uuid.New()
	f.enroll(userID)
	f.assets.SetAssets(userID, []domain.AssetRef{savingsAsset("100000")})

	f.tracker.RunEvaluation()

	rec, err := f.repo.FindActiveRecordByUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected an active record after evaluation, got %v", err)
	}
	if rec.Status != domain.RecordStatusDraft {
		t.Fatalf("expected DRAFT status, got %s", rec.Status)
	}
	if !rec.HawlStartDate.Equal(f.clock.Now()) {
		t.Fatalf("expected hawl to start at evaluation time, got %s", rec.HawlStartDate)
	}
}

func TestRunEvaluation_BelowNisabStartsNothing(t *testing.T) {
	f := newTrackerFixture(t)
	userID := uuid.New()
	f.enroll(userID)
	// Effective nisab at test prices is 489.888.
	f.assets.SetAssets(userID, []domain.AssetRef{savingsAsset("100")})

	f.tracker.RunEvaluation()

	if _, err := f.repo.FindActiveRecordByUserID(context.Background(), userID); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected no active record, got %v", err)
	}
}

func TestRunEvaluation_InterruptsHawlWhenWealthDrops(t *testing.T) {
	f := newTrackerFixture(t)
	userID := uuid.New()
	f.enroll(userID)
	f.assets.SetAssets(userID, []domain.AssetRef{savingsAsset("100000")})

	f.tracker.RunEvaluation()
	active, err := f.repo.FindActiveRecordByUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected an active record, got %v", err)
	}

	// Mid-hawl the wealth collapses below the threshold.
	f.clock.Advance(30 * 24 * time.Hour)
	f.assets.SetAssets(userID, []domain.AssetRef{savingsAsset("100")})
	f.tracker.RunEvaluation()

	rec, err := f.repo.FindNisabYearRecordByID(context.Background(), active.ID)
	if err != nil {
		t.Fatalf("failed to reload record: %v", err)
	}
	if rec.Status != domain.RecordStatusInterrupted {
		t.Fatalf("expected INTERRUPTED, got %s", rec.Status)
	}
}

func TestRunEvaluation_FinalizesCompletedHawl(t *testing.T) {
	f := newTrackerFixture(t)
	userID := uuid.New()
	f.enroll(userID)
	f.assets.SetAssets(userID, []domain.AssetRef{savingsAsset("100000")})

	f.tracker.RunEvaluation()
	active, err := f.repo.FindActiveRecordByUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected an active record, got %v", err)
	}

	// Wealth holds above the threshold for the full lunar year.
	f.clock.Advance(time.Duration(domain.HawlDays) * 24 * time.Hour)
	f.tracker.RunEvaluation()

	rec, err := f.repo.FindNisabYearRecordByID(context.Background(), active.ID)
	if err != nil {
		t.Fatalf("failed to reload record: %v", err)
	}
	if rec.Status != domain.RecordStatusFinalized {
		t.Fatalf("expected FINALIZED, got %s", rec.Status)
	}
	if rec.FinalizedAt == nil {
		t.Fatal("expected FinalizedAt to be stamped")
	}
}

func TestRunEvaluation_HawlElapsedBelowNisabInterrupts(t *testing.T) {
	f := newTrackerFixture(t)
	userID := uuid.New()
	f.enroll(userID)
	f.assets.SetAssets(userID, []domain.AssetRef{savingsAsset("100000")})

	f.tracker.RunEvaluation()
	active, err := f.repo.FindActiveRecordByUserID(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected an active record, got %v", err)
	}

	f.clock.Advance(time.Duration(domain.HawlDays) * 24 * time.Hour)
	f.assets.SetAssets(userID, []domain.AssetRef{savingsAsset("100")})
	f.tracker.RunEvaluation()

	rec, err := f.repo.FindNisabYearRecordByID(context.Background(), active.ID)
	if err != nil {
		t.Fatalf("failed to reload record: %v", err)
	}
	if rec.Status != domain.RecordStatusInterrupted {
		t.Fatalf("expected INTERRUPTED at the final checkpoint, got %s", rec.Status)
	}
}

func TestRunEvaluation_OneFailingUserDoesNotAbortBatch(t *testing.T) {
	f := newTrackerFixture(t)
	failing := uuid.New()
	healthy := uuid.New()
	f.enroll(failing)
	f.enroll(healthy)
	f.assets.FailFor(failing, errors.New("asset service unavailable"))
	f.assets.SetAssets(healthy, []domain.AssetRef{savingsAsset("100000")})

	f.tracker.RunEvaluation()

	if _, err := f.repo.FindActiveRecordByUserID(context.Background(), healthy); err != nil {
		t.Fatalf("expected the healthy user to be evaluated, got %v", err)
	}
	if _, err := f.repo.FindActiveRecordByUserID(context.Background(), failing); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected no record for the failing user, got %v", err)
	}
}

func TestRunEvaluation_CheckpointUsesRecordMethodology(t *testing.T) {
	f := newTrackerFixture(t)
	userID := uuid.New()
	f.enroll(userID) // enrollment evaluates under the standard methodology

	// The record itself was created manually under a custom threshold well
	// below the metal-based ones.
	f.assets.SetAssets(userID, []domain.AssetRef{savingsAsset("100")})
	rec, err := f.service.CreateRecord(context.Background(), domain.CreateRecordPayload{
		UserID:        userID,
		MethodologyID: domain.MethodologyCustom,
		CustomNisab:   decimal.RequireFromString("50"),
	})
	if err != nil {
		t.Fatalf("CreateRecord returned error: %v", err)
	}

	// Wealth of 100 is below the standard threshold (489.888) but above the
	// record's own custom threshold; the checkpoint must not interrupt.
	f.clock.Advance(30 * 24 * time.Hour)
	f.tracker.RunEvaluation()

	reloaded, err := f.repo.FindNisabYearRecordByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("failed to reload record: %v", err)
	}
	if reloaded.Status != domain.RecordStatusDraft {
		t.Fatalf("expected the record to stay DRAFT under its own methodology, got %s", reloaded.Status)
	}
}

func TestRunEvaluation_CustomMethodologyThresholdHonored(t *testing.T) {
	f := newTrackerFixture(t)
	userID := uuid.New()
	f.repo.trackedUsers = append(f.repo.trackedUsers, domain.TrackedUser{
		UserID:        userID,
		MethodologyID: domain.MethodologyCustom,
		CustomNisab:   decimal.RequireFromString("50000"),
	})
	// Above the metal-based thresholds but below the custom override.
	f.assets.SetAssets(userID, []domain.AssetRef{savingsAsset("10000")})

	f.tracker.RunEvaluation()

	if _, err := f.repo.FindActiveRecordByUserID(context.Background(), userID); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected no record below the custom threshold, got %v", err)
	}
}
