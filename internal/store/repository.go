/**
 * @description
 * This file defines the `Repository` interface, the contract for all data access
 * operations required by the zakat-service. Defining an interface decouples the
 * business logic from the PostgreSQL implementation and lets tests substitute
 * in-memory stubs.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For entity identifiers.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/zakatech/zakat-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
//
// Every nisab-year record write goes through UpdateNisabYearRecord, which
// performs an optimistic version check so that concurrent mutations of the same
// record (a scheduler tick racing a user request) cannot interleave.
type Repository interface {
	// Nisab-year record methods
	CreateNisabYearRecord(ctx context.Context, rec *domain.NisabYearRecord) error
	FindNisabYearRecordByID(ctx context.Context, recordID uuid.UUID) (*domain.NisabYearRecord, error)
	// FindActiveRecordByUserID returns the user's DRAFT record, or
	// ErrRecordNotFound when no hawl is currently being tracked.
	FindActiveRecordByUserID(ctx context.Context, userID uuid.UUID) (*domain.NisabYearRecord, error)
	ListNisabYearRecordsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.NisabYearRecord, error)
	// UpdateNisabYearRecord persists rec guarded by rec.Version and increments
	// the version on success. Returns ErrVersionConflict when the stored row
	// has moved on since rec was loaded.
	UpdateNisabYearRecord(ctx context.Context, rec *domain.NisabYearRecord) error
	DeleteNisabYearRecord(ctx context.Context, recordID uuid.UUID) error
	// MarkSnapshotUnreadable flags a record whose stored snapshot blob failed
	// to decrypt. The record is kept; the flag surfaces the corruption.
	MarkSnapshotUnreadable(ctx context.Context, recordID uuid.UUID) error

	// Payment methods. Create/Update/Delete recompute the parent record's
	// zakat_paid and outstanding_balance inside the same transaction and
	// return the recomputed record.
	FindPaymentRecordByID(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentRecord, error)
	ListPaymentsByRecordID(ctx context.Context, recordID uuid.UUID) ([]domain.PaymentRecord, error)
	CountPaymentsByRecordID(ctx context.Context, recordID uuid.UUID) (int64, error)
	CreatePaymentAndRecomputeBalance(ctx context.Context, payment *domain.PaymentRecord) (*domain.NisabYearRecord, error)
	UpdatePaymentAndRecomputeBalance(ctx context.Context, payment *domain.PaymentRecord) (*domain.NisabYearRecord, error)
	DeletePaymentAndRecomputeBalance(ctx context.Context, paymentID uuid.UUID) (*domain.NisabYearRecord, error)

	// Hawl tracking enrollment
	ListTrackedUsers(ctx context.Context) ([]domain.TrackedUser, error)
}
