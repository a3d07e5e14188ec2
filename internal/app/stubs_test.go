package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zakatech/zakat-service/internal/domain"
	"github.com/zakatech/zakat-service/internal/store"
)

// stubClock is a manually advanced clock for exercising hawl timing.
type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock(now time.Time) *stubClock {
	return &stubClock{now: now}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubEncryptor prefixes plaintext so tests can verify blobs are not stored in
// the clear, and fails on blobs lacking the prefix to simulate corruption.
type stubEncryptor struct{}

var stubEncryptionPrefix = []byte("sealed:")

func (stubEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	return append(append([]byte{}, stubEncryptionPrefix...), plaintext...), nil
}

func (stubEncryptor) Decrypt(blob []byte) ([]byte, error) {
	if !bytes.HasPrefix(blob, stubEncryptionPrefix) {
		return nil, errors.New("decryption failure")
	}
	return blob[len(stubEncryptionPrefix):], nil
}

// stubAssetStore returns a fixed asset list per user.
type stubAssetStore struct {
	mu     sync.Mutex
	assets map[uuid.UUID][]domain.AssetRef
	errFor map[uuid.UUID]error
}

func newStubAssetStore() *stubAssetStore {
	return &stubAssetStore{
		assets: make(map[uuid.UUID][]domain.AssetRef),
		errFor: make(map[uuid.UUID]error),
	}
}

func (s *stubAssetStore) SetAssets(userID uuid.UUID, assets []domain.AssetRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[userID] = assets
}

func (s *stubAssetStore) FailFor(userID uuid.UUID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errFor[userID] = err
}

func (s *stubAssetStore) ListZakatEligibleAssets(_ context.Context, userID uuid.UUID) ([]domain.AssetRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errFor[userID]; err != nil {
		return nil, err
	}
	return append([]domain.AssetRef{}, s.assets[userID]...), nil
}

// stubPriceFeed returns fixed spot prices.
type stubPriceFeed struct {
	prices domain.MetalPrices
	err    error
}

func newStubPriceFeed() *stubPriceFeed {
	return &stubPriceFeed{prices: domain.MetalPrices{
		GoldPerGram:   decimal.RequireFromString("65"),
		SilverPerGram: decimal.RequireFromString("0.80"),
	}}
}

func (s *stubPriceFeed) CurrentPrices(_ context.Context) (domain.MetalPrices, error) {
	if s.err != nil {
		return domain.MetalPrices{}, s.err
	}
	return s.prices, nil
}

// recordingProducer captures published routing keys.
type recordingProducer struct {
	mu          sync.Mutex
	routingKeys []string
}

func (p *recordingProducer) Publish(_ context.Context, _, routingKey string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

func (p *recordingProducer) Close() {}

func (p *recordingProducer) RoutingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.routingKeys...)
}

// memoryRepository is an in-memory store.Repository mirroring the Postgres
// implementation's semantics: optimistic versioning on record updates and
// balance recomputation on every payment mutation.
type memoryRepository struct {
	mu           sync.Mutex
	records      map[uuid.UUID]*domain.NisabYearRecord
	payments     map[uuid.UUID]*domain.PaymentRecord
	trackedUsers []domain.TrackedUser
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		records:  make(map[uuid.UUID]*domain.NisabYearRecord),
		payments: make(map[uuid.UUID]*domain.PaymentRecord),
	}
}

func copyRecord(rec *domain.NisabYearRecord) *domain.NisabYearRecord {
	dup := *rec
	dup.AssetBreakdown = nil
	dup.EncryptedSnapshot = append([]byte{}, rec.EncryptedSnapshot...)
	return &dup
}

func copyPayment(p *domain.PaymentRecord) *domain.PaymentRecord {
	dup := *p
	dup.Notes = nil
	dup.EncryptedNotes = append([]byte{}, p.EncryptedNotes...)
	return &dup
}

func (r *memoryRepository) CreateNisabYearRecord(_ context.Context, rec *domain.NisabYearRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.UserID == rec.UserID && existing.Status == domain.RecordStatusDraft {
			return store.ErrActiveRecordExists
		}
	}
	rec.Version = 1
	rec.OutstandingBalance = rec.ZakatDue.Sub(rec.ZakatPaid)
	r.records[rec.ID] = copyRecord(rec)
	return nil
}

func (r *memoryRepository) FindNisabYearRecordByID(_ context.Context, recordID uuid.UUID) (*domain.NisabYearRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordID]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	return copyRecord(rec), nil
}

func (r *memoryRepository) FindActiveRecordByUserID(_ context.Context, userID uuid.UUID) (*domain.NisabYearRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.UserID == userID && rec.Status == domain.RecordStatusDraft {
			return copyRecord(rec), nil
		}
	}
	return nil, store.ErrRecordNotFound
}

func (r *memoryRepository) ListNisabYearRecordsByUserID(_ context.Context, userID uuid.UUID) ([]domain.NisabYearRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var records []domain.NisabYearRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			records = append(records, *copyRecord(rec))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].HawlStartDate.After(records[j].HawlStartDate)
	})
	return records, nil
}

func (r *memoryRepository) UpdateNisabYearRecord(_ context.Context, rec *domain.NisabYearRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.records[rec.ID]
	if !ok {
		return store.ErrRecordNotFound
	}
	if stored.Version != rec.Version {
		return store.ErrVersionConflict
	}
	rec.Version++
	rec.ZakatPaid = stored.ZakatPaid
	rec.OutstandingBalance = rec.ZakatDue.Sub(rec.ZakatPaid)
	r.records[rec.ID] = copyRecord(rec)
	return nil
}

func (r *memoryRepository) DeleteNisabYearRecord(_ context.Context, recordID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[recordID]; !ok {
		return store.ErrRecordNotFound
	}
	for _, payment := range r.payments {
		if payment.NisabYearRecordID == recordID {
			return store.ErrHasLinkedPayments
		}
	}
	delete(r.records, recordID)
	return nil
}

func (r *memoryRepository) MarkSnapshotUnreadable(_ context.Context, recordID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordID]
	if !ok {
		return store.ErrRecordNotFound
	}
	rec.SnapshotUnreadable = true
	return nil
}

func (r *memoryRepository) FindPaymentRecordByID(_ context.Context, paymentID uuid.UUID) (*domain.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[paymentID]
	if !ok {
		return nil, store.ErrPaymentNotFound
	}
	return copyPayment(payment), nil
}

func (r *memoryRepository) ListPaymentsByRecordID(_ context.Context, recordID uuid.UUID) ([]domain.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var payments []domain.PaymentRecord
	for _, payment := range r.payments {
		if payment.NisabYearRecordID == recordID {
			payments = append(payments, *copyPayment(payment))
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].Date.Before(payments[j].Date)
	})
	return payments, nil
}

func (r *memoryRepository) CountPaymentsByRecordID(_ context.Context, recordID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, payment := range r.payments {
		if payment.NisabYearRecordID == recordID {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepository) recomputeBalancesLocked(recordID uuid.UUID) (*domain.NisabYearRecord, error) {
	rec, ok := r.records[recordID]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	paid := decimal.Zero
	for _, payment := range r.payments {
		if payment.NisabYearRecordID == recordID {
			paid = paid.Add(payment.Amount)
		}
	}
	rec.ZakatPaid = paid
	rec.OutstandingBalance = rec.ZakatDue.Sub(paid)
	return copyRecord(rec), nil
}

func (r *memoryRepository) CreatePaymentAndRecomputeBalance(_ context.Context, payment *domain.PaymentRecord) (*domain.NisabYearRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[payment.NisabYearRecordID]; !ok {
		return nil, store.ErrRecordNotFound
	}
	r.payments[payment.ID] = copyPayment(payment)
	return r.recomputeBalancesLocked(payment.NisabYearRecordID)
}

func (r *memoryRepository) UpdatePaymentAndRecomputeBalance(_ context.Context, payment *domain.PaymentRecord) (*domain.NisabYearRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[payment.ID]; !ok {
		return nil, store.ErrPaymentNotFound
	}
	r.payments[payment.ID] = copyPayment(payment)
	return r.recomputeBalancesLocked(payment.NisabYearRecordID)
}

func (r *memoryRepository) DeletePaymentAndRecomputeBalance(_ context.Context, paymentID uuid.UUID) (*domain.NisabYearRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment, ok := r.payments[paymentID]
	if !ok {
		return nil, store.ErrPaymentNotFound
	}
	delete(r.payments, paymentID)
	return r.recomputeBalancesLocked(payment.NisabYearRecordID)
}

func (r *memoryRepository) ListTrackedUsers(_ context.Context) ([]domain.TrackedUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TrackedUser{}, r.trackedUsers...), nil
}

// corruptSnapshot overwrites a stored record's snapshot blob so decryption fails.
func (r *memoryRepository) corruptSnapshot(recordID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[recordID]; ok {
		rec.EncryptedSnapshot = []byte("garbage")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
