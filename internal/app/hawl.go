/**
 * @description
 * The hawl tracker: a scheduled evaluator that, for each enrolled user, compares
 * current aggregate zakatable wealth against the current nisab threshold and
 * drives record creation, interruption, and completion through the record
 * service. It never edits snapshots or payments directly.
 *
 * Per-user isolation: each user's evaluation runs under its own timeout and a
 * failure is logged and skipped, never aborting the batch; the user is simply
 * retried on the next cycle. Wealth is evaluated as of the run itself — a
 * crossing between two runs is detected at the next scheduled run.
 *
 * @dependencies
 * - internal/domain, internal/store, internal/zakat: models, data access, engine.
 */

package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zakatech/zakat-service/internal/domain"
	"github.com/zakatech/zakat-service/internal/store"
	"github.com/zakatech/zakat-service/internal/zakat"
)

// DefaultUserEvaluationTimeout bounds one user's evaluation so a slow storage
// or collaborator call cannot stall the whole batch.
const DefaultUserEvaluationTimeout = 30 * time.Second

// Tracker evaluates hawl progress for all enrolled users.
type Tracker struct {
	repo        store.Repository
	assets      AssetStore
	prices      PriceFeed
	records     *Service
	clock       Clock
	logger      *slog.Logger
	userTimeout time.Duration
}

// NewTracker creates a new hawl tracker.
func NewTracker(repo store.Repository, assets AssetStore, prices PriceFeed, records *Service, clock Clock, logger *slog.Logger) *Tracker {
	return &Tracker{
		repo:        repo,
		assets:      assets,
		prices:      prices,
		records:     records,
		clock:       clock,
		logger:      logger,
		userTimeout: DefaultUserEvaluationTimeout,
	}
}

// RunEvaluation is the scheduled job entry point.
func (t *Tracker) RunEvaluation() {
	t.logger.Info("starting hawl evaluation run")
	ctx := context.Background()

	users, err := t.repo.ListTrackedUsers(ctx)
	if err != nil {
		t.logger.Error("failed to list tracked users", "error", err)
		return
	}
	if len(users) == 0 {
		t.logger.Info("no users enrolled in hawl tracking")
		return
	}

	evaluated, failed := 0, 0
	for _, user := range users {
		if err := t.evaluateUser(ctx, user); err != nil {
			failed++
			t.logger.Error("hawl evaluation failed for user; retrying next cycle",
				"user_id", user.UserID, "error", err)
			continue
		}
		evaluated++
	}
	t.logger.Info("hawl evaluation run finished", "evaluated", evaluated, "failed", failed)
}

// evaluateUser runs one user's checkpoint under a bounded timeout.
func (t *Tracker) evaluateUser(ctx context.Context, user domain.TrackedUser) error {
	userCtx, cancel := context.WithTimeout(ctx, t.userTimeout)
	defer cancel()

	assets, err := t.assets.ListZakatEligibleAssets(userCtx, user.UserID)
	if err != nil {
		return err
	}
	prices, err := t.prices.CurrentPrices(userCtx)
	if err != nil {
		return err
	}

	wealth := decimal.Zero
	for _, asset := range assets {
		if asset.ZakatEligible {
			wealth = wealth.Add(asset.Value)
		}
	}

	active, err := t.repo.FindActiveRecordByUserID(userCtx, user.UserID)
	if err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			return err
		}
		// No hawl in progress: start one the moment the enrollment's
		// threshold is met.
		nisab, err := zakat.ComputeNisab(prices.GoldPerGram, prices.SilverPerGram, user.Methodology())
		if err != nil {
			return err
		}
		if !wealth.GreaterThanOrEqual(nisab.EffectiveNisab) || len(assets) == 0 {
			return nil
		}
		_, createErr := t.records.CreateRecord(userCtx, domain.CreateRecordPayload{
			UserID:        user.UserID,
			MethodologyID: user.MethodologyID,
			CustomNisab:   user.CustomNisab,
		})
		if errors.Is(createErr, store.ErrActiveRecordExists) {
			// A concurrent user-initiated creation won the race; nothing to do.
			return nil
		}
		return createErr
	}

	// Checkpoints of an in-flight record use the record's own methodology,
	// keeping the threshold consistent with nisab_threshold_at_capture even
	// when the record was created manually under a different methodology than
	// the enrollment's.
	nisab, err := zakat.ComputeNisab(prices.GoldPerGram, prices.SilverPerGram, active.Methodology())
	if err != nil {
		return err
	}
	meetsNisab := wealth.GreaterThanOrEqual(nisab.EffectiveNisab)

	now := t.clock.Now()
	if now.Before(active.HawlEndDate) {
		// Mid-hawl checkpoint: wealth dropping below the threshold breaks the
		// hawl. The record is kept as a historical attempt.
		if !meetsNisab {
			_, err := t.records.Interrupt(userCtx, active.ID)
			return err
		}
		return nil
	}

	// The hawl period has elapsed. Wealth still above threshold completes the
	// year; otherwise the final checkpoint broke it.
	if meetsNisab {
		_, err := t.records.Finalize(userCtx, active.ID)
		return err
	}
	_, err = t.records.Interrupt(userCtx, active.ID)
	return err
}
