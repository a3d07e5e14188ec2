/**
 * @description
 * This file contains the core business logic for nisab-year records. The
 * `Service` struct owns the record state machine (DRAFT / FINALIZED / UNLOCKED /
 * INTERRUPTED), asset-breakdown snapshotting, and the finalize/unlock
 * transitions. The hawl tracker and the HTTP handlers both drive records
 * exclusively through these operations.
 *
 * Key features:
 * - Snapshot capture and refresh are the only paths that mutate the asset
 *   breakdown; the breakdown is persisted as an AES-GCM encrypted blob.
 * - Illegal transitions fail explicitly with typed errors; nothing is silently
 *   swallowed, which keeps retries safe.
 * - Lifecycle transitions publish events to RabbitMQ for downstream consumers;
 *   publish failures are logged and never fail the operation.
 *
 * @dependencies
 * - context, errors, fmt, log/slog: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store, internal/zakat: models, data access, engine.
 * - pkg/rabbitmq: event publishing.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/zakatech/zakat-service/internal/domain"
	"github.com/zakatech/zakat-service/internal/store"
	"github.com/zakatech/zakat-service/internal/zakat"
	"github.com/zakatech/zakat-service/pkg/rabbitmq"
)

var (
	// ErrInvalidState is returned when an operation is illegal for the
	// record's current status, e.g. refreshing a finalized record.
	ErrInvalidState = errors.New("operation not permitted in current record state")
	// ErrSnapshotUnreadable is returned when a stored snapshot blob fails to
	// decrypt. The record is flagged, never deleted or treated as empty.
	ErrSnapshotUnreadable = errors.New("asset snapshot is unreadable")
)

// AssetStore is the read-only collaborator owning asset data.
type AssetStore interface {
	ListZakatEligibleAssets(ctx context.Context, userID uuid.UUID) ([]domain.AssetRef, error)
}

// PriceFeed supplies current gold/silver spot prices per gram.
type PriceFeed interface {
	CurrentPrices(ctx context.Context) (domain.MetalPrices, error)
}

// Encryptor seals and opens opaque blobs for persistence at rest.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(blob []byte) ([]byte, error)
}

// Service provides the core business logic for nisab-year records.
type Service struct {
	repo      store.Repository
	assets    AssetStore
	prices    PriceFeed
	encryptor Encryptor
	producer  rabbitmq.Publisher
	clock     Clock
	logger    *slog.Logger
}

// NewService creates a new record service instance.
func NewService(
	repo store.Repository,
	assets AssetStore,
	prices PriceFeed,
	encryptor Encryptor,
	producer rabbitmq.Publisher,
	clock Clock,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		assets:    assets,
		prices:    prices,
		encryptor: encryptor,
		producer:  producer,
		clock:     clock,
		logger:    logger,
	}
}

// CreateRecord starts tracking a new hawl for a user. When SelectedAssetIDs is
// empty, all currently zakat-eligible assets are captured (the path used by the
// hawl tracker); otherwise the snapshot is built only from the given IDs.
func (s *Service) CreateRecord(ctx context.Context, payload domain.CreateRecordPayload) (*domain.NisabYearRecord, error) {
	if !domain.KnownMethodologyID(payload.MethodologyID) {
		return nil, zakat.ErrInvalidMethodology
	}
	methodology := domain.NewMethodology(payload.MethodologyID)
	if payload.MethodologyID == domain.MethodologyCustom {
		if !payload.CustomNisab.IsPositive() {
			return nil, zakat.ErrInvalidMethodology
		}
		methodology = domain.NewCustomMethodology(payload.CustomNisab)
	}

	// One non-terminal record per user.
	if _, err := s.repo.FindActiveRecordByUserID(ctx, payload.UserID); err == nil {
		return nil, store.ErrActiveRecordExists
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check for active record: %w", err)
	}

	assets, err := s.assets.ListZakatEligibleAssets(ctx, payload.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	if len(payload.SelectedAssetIDs) > 0 {
		assets = filterAssets(assets, payload.SelectedAssetIDs)
	}
	if len(assets) == 0 {
		return nil, zakat.ErrInvalidRequest
	}

	prices, err := s.prices.CurrentPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metal prices: %w", err)
	}

	result, err := zakat.Calculate(assets, methodology, prices)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	snapshot := domain.BuildAssetBreakdownSnapshot(assets, now)
	encrypted, err := s.encryptSnapshot(&snapshot)
	if err != nil {
		return nil, err
	}

	rec := &domain.NisabYearRecord{
		ID:                      uuid.New(),
		UserID:                  payload.UserID,
		MethodologyID:           payload.MethodologyID,
		CustomNisab:             payload.CustomNisab,
		HawlStartDate:           now,
		HawlEndDate:             domain.HawlEnd(now),
		Status:                  domain.RecordStatusDraft,
		EncryptedSnapshot:       encrypted,
		NisabThresholdAtCapture: result.Nisab.EffectiveNisab,
		ZakatDue:                result.TotalZakatDue,
	}
	if err := s.repo.CreateNisabYearRecord(ctx, rec); err != nil {
		return nil, err
	}
	rec.AssetBreakdown = &snapshot

	s.publishLifecycleEvent(ctx, rabbitmq.RouteRecordCreated, rec)
	s.logger.Info("nisab year record created",
		"record_id", rec.ID, "user_id", rec.UserID,
		"methodology", rec.MethodologyID, "zakat_due", rec.ZakatDue)
	return rec, nil
}

// RefreshAssets re-pulls the user's current zakat-eligible assets for review.
// Nothing is persisted until ApplyRefresh is called with a final selection.
// Only legal while the record is DRAFT.
func (s *Service) RefreshAssets(ctx context.Context, recordID uuid.UUID) (*domain.RefreshCandidates, error) {
	rec, err := s.repo.FindNisabYearRecordByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.RecordStatusDraft {
		return nil, fmt.Errorf("%w: cannot refresh a %s record", ErrInvalidState, rec.Status)
	}

	assets, err := s.assets.ListZakatEligibleAssets(ctx, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return &domain.RefreshCandidates{RecordID: rec.ID, Assets: assets}, nil
}

// ApplyRefresh persists a new asset-breakdown snapshot from the given selection
// and recomputes the obligation. Legal on DRAFT, and exactly once on UNLOCKED
// as the corrective edit before re-finalizing.
func (s *Service) ApplyRefresh(ctx context.Context, recordID uuid.UUID, selectedAssetIDs []uuid.UUID) (*domain.NisabYearRecord, error) {
	rec, err := s.repo.FindNisabYearRecordByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.RecordStatusDraft && rec.Status != domain.RecordStatusUnlocked {
		return nil, fmt.Errorf("%w: cannot apply a refresh to a %s record", ErrInvalidState, rec.Status)
	}
	if rec.Status == domain.RecordStatusUnlocked && rec.CorrectionApplied {
		return nil, fmt.Errorf("%w: the unlocked record has already been corrected; finalize it to re-lock", ErrInvalidState)
	}

	assets, err := s.assets.ListZakatEligibleAssets(ctx, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	if len(selectedAssetIDs) > 0 {
		assets = filterAssets(assets, selectedAssetIDs)
	}
	if len(assets) == 0 {
		return nil, zakat.ErrInvalidRequest
	}

	prices, err := s.prices.CurrentPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metal prices: %w", err)
	}
	result, err := zakat.Calculate(assets, rec.Methodology(), prices)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	snapshot := domain.BuildAssetBreakdownSnapshot(assets, now)
	encrypted, err := s.encryptSnapshot(&snapshot)
	if err != nil {
		return nil, err
	}

	rec.EncryptedSnapshot = encrypted
	rec.SnapshotUnreadable = false
	rec.NisabThresholdAtCapture = result.Nisab.EffectiveNisab
	rec.ZakatDue = result.TotalZakatDue
	if rec.Status == domain.RecordStatusUnlocked {
		rec.CorrectionApplied = true
	}
	if err := s.repo.UpdateNisabYearRecord(ctx, rec); err != nil {
		return nil, err
	}
	rec.AssetBreakdown = &snapshot

	s.logger.Info("nisab year record snapshot refreshed",
		"record_id", rec.ID, "zakat_due", rec.ZakatDue, "status", rec.Status)
	return rec, nil
}

// Finalize locks the record's snapshot and obligation. DRAFT records complete
// their hawl; UNLOCKED records re-lock after a correction.
func (s *Service) Finalize(ctx context.Context, recordID uuid.UUID) (*domain.NisabYearRecord, error) {
	rec, err := s.repo.FindNisabYearRecordByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.RecordStatusDraft && rec.Status != domain.RecordStatusUnlocked {
		return nil, fmt.Errorf("%w: cannot finalize a %s record", ErrInvalidState, rec.Status)
	}

	now := s.clock.Now()
	rec.Status = domain.RecordStatusFinalized
	rec.FinalizedAt = &now
	rec.CorrectionApplied = false
	if err := s.repo.UpdateNisabYearRecord(ctx, rec); err != nil {
		return nil, err
	}

	s.publishLifecycleEvent(ctx, rabbitmq.RouteRecordFinalized, rec)
	s.logger.Info("nisab year record finalized",
		"record_id", rec.ID, "user_id", rec.UserID, "zakat_due", rec.ZakatDue)
	return rec, nil
}

// Unlock transitions FINALIZED to UNLOCKED, permitting one corrective
// ApplyRefresh after which the caller must Finalize again to re-lock.
func (s *Service) Unlock(ctx context.Context, recordID uuid.UUID) (*domain.NisabYearRecord, error) {
	rec, err := s.repo.FindNisabYearRecordByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.RecordStatusFinalized {
		return nil, fmt.Errorf("%w: cannot unlock a %s record", ErrInvalidState, rec.Status)
	}

	rec.Status = domain.RecordStatusUnlocked
	if err := s.repo.UpdateNisabYearRecord(ctx, rec); err != nil {
		return nil, err
	}

	s.publishLifecycleEvent(ctx, rabbitmq.RouteRecordUnlocked, rec)
	s.logger.Info("nisab year record unlocked", "record_id", rec.ID, "user_id", rec.UserID)
	return rec, nil
}

// Interrupt marks a DRAFT record's hawl as broken. The record is preserved as
// a historical attempt; the clock restarts from zero with a fresh record once
// nisab is re-achieved.
func (s *Service) Interrupt(ctx context.Context, recordID uuid.UUID) (*domain.NisabYearRecord, error) {
	rec, err := s.repo.FindNisabYearRecordByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.RecordStatusDraft {
		return nil, fmt.Errorf("%w: cannot interrupt a %s record", ErrInvalidState, rec.Status)
	}

	rec.Status = domain.RecordStatusInterrupted
	if err := s.repo.UpdateNisabYearRecord(ctx, rec); err != nil {
		return nil, err
	}

	s.publishLifecycleEvent(ctx, rabbitmq.RouteRecordInterrupted, rec)
	s.logger.Info("nisab year record interrupted", "record_id", rec.ID, "user_id", rec.UserID)
	return rec, nil
}

// DeleteRecord removes a record from any status, provided no payments are
// still linked to it. The precheck gives a friendly failure; the store's
// foreign-key mapping closes the window against a payment recorded between
// the check and the delete.
func (s *Service) DeleteRecord(ctx context.Context, recordID uuid.UUID) error {
	count, err := s.repo.CountPaymentsByRecordID(ctx, recordID)
	if err != nil {
		return fmt.Errorf("failed to count linked payments: %w", err)
	}
	if count > 0 {
		return store.ErrHasLinkedPayments
	}
	return s.repo.DeleteNisabYearRecord(ctx, recordID)
}

// GetRecord loads a record with its decrypted asset breakdown. A snapshot that
// fails to decrypt flags the record and surfaces ErrSnapshotUnreadable.
func (s *Service) GetRecord(ctx context.Context, recordID uuid.UUID) (*domain.NisabYearRecord, error) {
	rec, err := s.repo.FindNisabYearRecordByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if err := s.attachSnapshot(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecords returns all of a user's records, newest hawl first. Records with
// unreadable snapshots are flagged and returned without a breakdown rather than
// dropped from history.
func (s *Service) ListRecords(ctx context.Context, userID uuid.UUID) ([]domain.NisabYearRecord, error) {
	records, err := s.repo.ListNisabYearRecordsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if err := s.attachSnapshot(ctx, &records[i]); err != nil {
			if errors.Is(err, ErrSnapshotUnreadable) {
				continue
			}
			return nil, err
		}
	}
	return records, nil
}

// CalculateAdhoc runs a stateless "what would my zakat be" calculation over the
// user's current zakat-eligible assets. Nothing is persisted.
func (s *Service) CalculateAdhoc(ctx context.Context, userID uuid.UUID, methodology domain.Methodology) (*zakat.CalculationResult, error) {
	assets, err := s.assets.ListZakatEligibleAssets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	prices, err := s.prices.CurrentPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metal prices: %w", err)
	}
	return zakat.Calculate(assets, methodology, prices)
}

func (s *Service) encryptSnapshot(snapshot *domain.AssetBreakdownSnapshot) ([]byte, error) {
	plaintext, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	encrypted, err := s.encryptor.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt snapshot: %w", err)
	}
	return encrypted, nil
}

// attachSnapshot decrypts the record's snapshot blob in place. On decryption
// failure the record is flagged in storage and ErrSnapshotUnreadable returned.
func (s *Service) attachSnapshot(ctx context.Context, rec *domain.NisabYearRecord) error {
	if len(rec.EncryptedSnapshot) == 0 {
		return nil
	}
	plaintext, err := s.encryptor.Decrypt(rec.EncryptedSnapshot)
	if err == nil {
		var snapshot domain.AssetBreakdownSnapshot
		if jsonErr := json.Unmarshal(plaintext, &snapshot); jsonErr == nil {
			rec.AssetBreakdown = &snapshot
			return nil
		}
	}

	s.logger.Error("snapshot decryption failed; flagging record", "record_id", rec.ID)
	rec.SnapshotUnreadable = true
	if markErr := s.repo.MarkSnapshotUnreadable(ctx, rec.ID); markErr != nil {
		s.logger.Error("failed to flag unreadable snapshot", "record_id", rec.ID, "error", markErr)
	}
	return ErrSnapshotUnreadable
}

func (s *Service) publishLifecycleEvent(ctx context.Context, routingKey string, rec *domain.NisabYearRecord) {
	if s.producer == nil {
		return
	}
	event := domain.RecordLifecycleEvent{
		RecordID:      rec.ID,
		UserID:        rec.UserID,
		Status:        rec.Status,
		MethodologyID: rec.MethodologyID,
		ZakatDue:      rec.ZakatDue,
		Timestamp:     s.clock.Now(),
	}
	if err := s.producer.Publish(ctx, rabbitmq.EventsExchange, routingKey, event); err != nil {
		s.logger.Warn("failed to publish lifecycle event",
			"record_id", rec.ID, "routing_key", routingKey, "error", err)
	}
}

func filterAssets(assets []domain.AssetRef, selected []uuid.UUID) []domain.AssetRef {
	keep := make(map[uuid.UUID]bool, len(selected))
	for _, id := range selected {
		keep[id] = true
	}
	filtered := make([]domain.AssetRef, 0, len(selected))
	for _, asset := range assets {
		if keep[asset.ID] {
			filtered = append(filtered, asset)
		}
	}
	return filtered
}
