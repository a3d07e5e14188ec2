/**
 * @description
 * The payment ledger. Payments are always linked to a nisab-year record; every
 * mutation recomputes the parent record's zakat_paid and outstanding_balance in
 * the same database transaction, so callers never observe a payment that is not
 * yet reflected in the balance.
 *
 * Payments may be recorded before, during, or after finalization; the record's
 * status never blocks a payment. Overpayment produces a negative outstanding
 * balance, surfaced as informational (voluntary excess charity), never an error.
 *
 * @dependencies
 * - internal/domain, internal/store: models and data access.
 * - pkg/rabbitmq: payment event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zakatech/zakat-service/internal/domain"
	"github.com/zakatech/zakat-service/internal/store"
	"github.com/zakatech/zakat-service/internal/zakat"
	"github.com/zakatech/zakat-service/pkg/rabbitmq"
)

// ErrInvalidRecipientCategory is returned when a payment names a recipient
// class outside the 8 canonical ones.
var ErrInvalidRecipientCategory = errors.New("invalid recipient category")

// Ledger provides payment recording against nisab-year records.
type Ledger struct {
	repo      store.Repository
	encryptor Encryptor
	producer  rabbitmq.Publisher
	clock     Clock
	logger    *slog.Logger
}

// NewLedger creates a new payment ledger instance.
func NewLedger(repo store.Repository, encryptor Encryptor, producer rabbitmq.Publisher, clock Clock, logger *slog.Logger) *Ledger {
	return &Ledger{
		repo:      repo,
		encryptor: encryptor,
		producer:  producer,
		clock:     clock,
		logger:    logger,
	}
}

func validatePaymentInput(amount decimal.Decimal, dateZero bool, category domain.RecipientCategory) error {
	if !amount.IsPositive() || dateZero {
		return zakat.ErrInvalidRequest
	}
	if !domain.ValidRecipientCategory(category) {
		return ErrInvalidRecipientCategory
	}
	return nil
}

// RecordPayment creates a payment against a record and returns the recomputed
// balances. Fails with store.ErrRecordNotFound when the target record does not
// exist; succeeds regardless of the record's status.
func (l *Ledger) RecordPayment(ctx context.Context, payload domain.RecordPaymentPayload) (*domain.PaymentMutationResult, error) {
	if err := validatePaymentInput(payload.Amount, payload.Date.IsZero(), payload.RecipientCategory); err != nil {
		return nil, err
	}

	encryptedNotes, err := l.encryptNotes(payload.Notes)
	if err != nil {
		return nil, err
	}

	payment := &domain.PaymentRecord{
		ID:                uuid.New(),
		NisabYearRecordID: payload.NisabYearRecordID,
		Amount:            payload.Amount,
		Date:              payload.Date,
		RecipientCategory: payload.RecipientCategory,
		RecipientName:     payload.RecipientName,
		Method:            payload.Method,
		EncryptedNotes:    encryptedNotes,
	}
	rec, err := l.repo.CreatePaymentAndRecomputeBalance(ctx, payment)
	if err != nil {
		return nil, err
	}
	payment.Notes = payload.Notes

	result := mutationResult(payment, rec)
	if result.Overpaid {
		l.logger.Info("record overpaid; excess treated as voluntary charity",
			"record_id", rec.ID, "outstanding_balance", rec.OutstandingBalance)
	}
	l.publishPaymentEvent(ctx, payment, rec)
	return result, nil
}

// EditPayment updates a payment and returns the recomputed balances.
func (l *Ledger) EditPayment(ctx context.Context, paymentID uuid.UUID, payload domain.EditPaymentPayload) (*domain.PaymentMutationResult, error) {
	if err := validatePaymentInput(payload.Amount, payload.Date.IsZero(), payload.RecipientCategory); err != nil {
		return nil, err
	}

	payment, err := l.repo.FindPaymentRecordByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	encryptedNotes, err := l.encryptNotes(payload.Notes)
	if err != nil {
		return nil, err
	}

	payment.Amount = payload.Amount
	payment.Date = payload.Date
	payment.RecipientCategory = payload.RecipientCategory
	payment.RecipientName = payload.RecipientName
	payment.Method = payload.Method
	payment.EncryptedNotes = encryptedNotes
	rec, err := l.repo.UpdatePaymentAndRecomputeBalance(ctx, payment)
	if err != nil {
		return nil, err
	}
	payment.Notes = payload.Notes

	return mutationResult(payment, rec), nil
}

// DeletePayment removes a payment and returns the parent's recomputed balances.
func (l *Ledger) DeletePayment(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentMutationResult, error) {
	rec, err := l.repo.DeletePaymentAndRecomputeBalance(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return mutationResult(nil, rec), nil
}

// ListPayments returns all payments linked to a record with notes decrypted.
func (l *Ledger) ListPayments(ctx context.Context, recordID uuid.UUID) ([]domain.PaymentRecord, error) {
	payments, err := l.repo.ListPaymentsByRecordID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	for i := range payments {
		if len(payments[i].EncryptedNotes) == 0 {
			continue
		}
		plaintext, decErr := l.encryptor.Decrypt(payments[i].EncryptedNotes)
		if decErr != nil {
			l.logger.Error("payment notes decryption failed", "payment_id", payments[i].ID)
			continue
		}
		notes := string(plaintext)
		payments[i].Notes = &notes
	}
	return payments, nil
}

func (l *Ledger) encryptNotes(notes *string) ([]byte, error) {
	if notes == nil || *notes == "" {
		return nil, nil
	}
	encrypted, err := l.encryptor.Encrypt([]byte(*notes))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt payment notes: %w", err)
	}
	return encrypted, nil
}

func (l *Ledger) publishPaymentEvent(ctx context.Context, payment *domain.PaymentRecord, rec *domain.NisabYearRecord) {
	if l.producer == nil {
		return
	}
	event := domain.PaymentRecordedEvent{
		PaymentID:          payment.ID,
		RecordID:           rec.ID,
		Amount:             payment.Amount,
		OutstandingBalance: rec.OutstandingBalance,
		Overpaid:           rec.OutstandingBalance.IsNegative(),
		Timestamp:          l.clock.Now(),
	}
	if err := l.producer.Publish(ctx, rabbitmq.EventsExchange, rabbitmq.RoutePaymentRecorded, event); err != nil {
		l.logger.Warn("failed to publish payment event", "payment_id", payment.ID, "error", err)
	}
}

func mutationResult(payment *domain.PaymentRecord, rec *domain.NisabYearRecord) *domain.PaymentMutationResult {
	return &domain.PaymentMutationResult{
		Payment:            payment,
		ZakatDue:           rec.ZakatDue,
		ZakatPaid:          rec.ZakatPaid,
		OutstandingBalance: rec.OutstandingBalance,
		Overpaid:           rec.OutstandingBalance.IsNegative(),
	}
}
