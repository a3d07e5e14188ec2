/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL needed to persist nisab-year records, payment records,
 * and the hawl-tracking enrollment table.
 *
 * Concurrency discipline: nisab-year record updates carry an optimistic version
 * check (`WHERE id = $n AND version = $m`), and every payment mutation recomputes
 * the parent record's balances inside the same transaction so readers never see
 * a payment that is not yet reflected in the outstanding balance.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: Decimal scanning for NUMERIC columns.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/zakatech/zakat-service/internal/domain"
)

var (
	ErrRecordNotFound     = errors.New("nisab year record not found")
	ErrPaymentNotFound    = errors.New("payment record not found")
	ErrVersionConflict    = errors.New("record version conflict")
	ErrActiveRecordExists = errors.New("an active nisab year record already exists for this user")
	ErrHasLinkedPayments  = errors.New("record has linked payments")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordColumns = `
	id, user_id, methodology_id, custom_nisab, hawl_start_date, hawl_end_date,
	status, encrypted_snapshot, snapshot_unreadable, correction_applied,
	nisab_threshold_at_capture, zakat_due, zakat_paid, outstanding_balance,
	version, created_at, updated_at, finalized_at`

func scanRecord(row pgx.Row) (*domain.NisabYearRecord, error) {
	var rec domain.NisabYearRecord
	var customNisab decimal.NullDecimal
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.MethodologyID,
		&customNisab,
		&rec.HawlStartDate,
		&rec.HawlEndDate,
		&rec.Status,
		&rec.EncryptedSnapshot,
		&rec.SnapshotUnreadable,
		&rec.CorrectionApplied,
		&rec.NisabThresholdAtCapture,
		&rec.ZakatDue,
		&rec.ZakatPaid,
		&rec.OutstandingBalance,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.FinalizedAt,
	)
	if err != nil {
		return nil, err
	}
	if customNisab.Valid {
		rec.CustomNisab = customNisab.Decimal
	}
	return &rec, nil
}

func nullableDecimal(d decimal.Decimal) decimal.NullDecimal {
	if d.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// CreateNisabYearRecord inserts a new nisab-year record. A partial unique index
// on (user_id) WHERE status = 'DRAFT' backs the one-active-record-per-user
// invariant; a violation maps to ErrActiveRecordExists.
func (r *PostgresRepository) CreateNisabYearRecord(ctx context.Context, rec *domain.NisabYearRecord) error {
	query := `
		INSERT INTO nisab_year_records (
			id, user_id, methodology_id, custom_nisab, hawl_start_date, hawl_end_date,
			status, encrypted_snapshot, snapshot_unreadable, correction_applied,
			nisab_threshold_at_capture, zakat_due, zakat_paid, outstanding_balance,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, false, $9, $10, 0, $10, 1, now(), now())
		RETURNING version, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		rec.ID,
		rec.UserID,
		rec.MethodologyID,
		nullableDecimal(rec.CustomNisab),
		rec.HawlStartDate,
		rec.HawlEndDate,
		rec.Status,
		rec.EncryptedSnapshot,
		rec.NisabThresholdAtCapture,
		rec.ZakatDue,
	).Scan(&rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveRecordExists
		}
		return err
	}
	rec.ZakatPaid = decimal.Zero
	rec.OutstandingBalance = rec.ZakatDue
	return nil
}

// FindNisabYearRecordByID retrieves a record by its ID.
func (r *PostgresRepository) FindNisabYearRecordByID(ctx context.Context, recordID uuid.UUID) (*domain.NisabYearRecord, error) {
	query := `SELECT` + recordColumns + ` FROM nisab_year_records WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, recordID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

// FindActiveRecordByUserID retrieves the user's current DRAFT record, if any.
func (r *PostgresRepository) FindActiveRecordByUserID(ctx context.Context, userID uuid.UUID) (*domain.NisabYearRecord, error) {
	query := `SELECT` + recordColumns + ` FROM nisab_year_records WHERE user_id = $1 AND status = 'DRAFT'`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListNisabYearRecordsByUserID retrieves all records for a user, newest first.
func (r *PostgresRepository) ListNisabYearRecordsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.NisabYearRecord, error) {
	query := `SELECT` + recordColumns + ` FROM nisab_year_records WHERE user_id = $1 ORDER BY hawl_start_date DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.NisabYearRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// UpdateNisabYearRecord persists the record under an optimistic version check.
func (r *PostgresRepository) UpdateNisabYearRecord(ctx context.Context, rec *domain.NisabYearRecord) error {
	query := `
		UPDATE nisab_year_records SET
			status = $1,
			encrypted_snapshot = $2,
			snapshot_unreadable = $3,
			correction_applied = $4,
			nisab_threshold_at_capture = $5,
			zakat_due = $6,
			outstanding_balance = $6 - zakat_paid,
			hawl_start_date = $7,
			hawl_end_date = $8,
			finalized_at = $9,
			version = version + 1,
			updated_at = now()
		WHERE id = $10 AND version = $11
		RETURNING version, zakat_paid, outstanding_balance, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		rec.Status,
		rec.EncryptedSnapshot,
		rec.SnapshotUnreadable,
		rec.CorrectionApplied,
		rec.NisabThresholdAtCapture,
		rec.ZakatDue,
		rec.HawlStartDate,
		rec.HawlEndDate,
		rec.FinalizedAt,
		rec.ID,
		rec.Version,
	).Scan(&rec.Version, &rec.ZakatPaid, &rec.OutstandingBalance, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing row from a stale version.
			var exists bool
			checkErr := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM nisab_year_records WHERE id = $1)`, rec.ID).Scan(&exists)
			if checkErr != nil {
				return checkErr
			}
			if !exists {
				return ErrRecordNotFound
			}
			return ErrVersionConflict
		}
		return err
	}
	return nil
}

// DeleteNisabYearRecord removes a record. The service layer prechecks linked
// payments; the foreign-key mapping here covers a payment recorded between
// that check and the delete.
func (r *PostgresRepository) DeleteNisabYearRecord(ctx context.Context, recordID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM nisab_year_records WHERE id = $1`, recordID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrHasLinkedPayments
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// MarkSnapshotUnreadable flags a record whose snapshot blob failed to decrypt.
func (r *PostgresRepository) MarkSnapshotUnreadable(ctx context.Context, recordID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE nisab_year_records
		SET snapshot_unreadable = true, version = version + 1, updated_at = now()
		WHERE id = $1`, recordID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

const paymentColumns = `
	id, nisab_year_record_id, amount, payment_date, recipient_category,
	recipient_name, method, encrypted_notes, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.PaymentRecord, error) {
	var p domain.PaymentRecord
	err := row.Scan(
		&p.ID,
		&p.NisabYearRecordID,
		&p.Amount,
		&p.Date,
		&p.RecipientCategory,
		&p.RecipientName,
		&p.Method,
		&p.EncryptedNotes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPaymentRecordByID retrieves a payment by its ID.
func (r *PostgresRepository) FindPaymentRecordByID(ctx context.Context, paymentID uuid.UUID) (*domain.PaymentRecord, error) {
	query := `SELECT` + paymentColumns + ` FROM payment_records WHERE id = $1`
	p, err := scanPayment(r.db.QueryRow(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListPaymentsByRecordID retrieves all payments linked to a record, oldest first.
func (r *PostgresRepository) ListPaymentsByRecordID(ctx context.Context, recordID uuid.UUID) ([]domain.PaymentRecord, error) {
	query := `SELECT` + paymentColumns + ` FROM payment_records WHERE nisab_year_record_id = $1 ORDER BY payment_date ASC`
	rows, err := r.db.Query(ctx, query, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// CountPaymentsByRecordID counts payments linked to a record.
func (r *PostgresRepository) CountPaymentsByRecordID(ctx context.Context, recordID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM payment_records WHERE nisab_year_record_id = $1`, recordID).Scan(&count)
	return count, err
}

// recomputeBalances refreshes the parent record's zakat_paid and
// outstanding_balance from the sum of its linked payments. Must run inside the
// same transaction as the payment mutation.
func recomputeBalances(ctx context.Context, tx pgx.Tx, recordID uuid.UUID) (*domain.NisabYearRecord, error) {
	query := `
		UPDATE nisab_year_records r SET
			zakat_paid = COALESCE((SELECT SUM(p.amount) FROM payment_records p WHERE p.nisab_year_record_id = r.id), 0),
			outstanding_balance = r.zakat_due - COALESCE((SELECT SUM(p.amount) FROM payment_records p WHERE p.nisab_year_record_id = r.id), 0),
			updated_at = now()
		WHERE r.id = $1
		RETURNING` + recordColumns
	rec, err := scanRecord(tx.QueryRow(ctx, query, recordID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

// CreatePaymentAndRecomputeBalance inserts a payment and refreshes the parent
// record's balances atomically. A missing parent maps to ErrRecordNotFound via
// the foreign key violation.
func (r *PostgresRepository) CreatePaymentAndRecomputeBalance(ctx context.Context, payment *domain.PaymentRecord) (*domain.NisabYearRecord, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO payment_records (
			id, nisab_year_record_id, amount, payment_date, recipient_category,
			recipient_name, method, encrypted_notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		payment.ID,
		payment.NisabYearRecordID,
		payment.Amount,
		payment.Date,
		payment.RecipientCategory,
		payment.RecipientName,
		payment.Method,
		payment.EncryptedNotes,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	rec, err := recomputeBalances(ctx, tx, payment.NisabYearRecordID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdatePaymentAndRecomputeBalance edits a payment and refreshes the parent
// record's balances atomically.
func (r *PostgresRepository) UpdatePaymentAndRecomputeBalance(ctx context.Context, payment *domain.PaymentRecord) (*domain.NisabYearRecord, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE payment_records SET
			amount = $1,
			payment_date = $2,
			recipient_category = $3,
			recipient_name = $4,
			method = $5,
			encrypted_notes = $6,
			updated_at = now()
		WHERE id = $7
		RETURNING nisab_year_record_id, updated_at
	`
	err = tx.QueryRow(ctx, query,
		payment.Amount,
		payment.Date,
		payment.RecipientCategory,
		payment.RecipientName,
		payment.Method,
		payment.EncryptedNotes,
		payment.ID,
	).Scan(&payment.NisabYearRecordID, &payment.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	rec, err := recomputeBalances(ctx, tx, payment.NisabYearRecordID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeletePaymentAndRecomputeBalance removes a payment and refreshes the parent
// record's balances atomically.
func (r *PostgresRepository) DeletePaymentAndRecomputeBalance(ctx context.Context, paymentID uuid.UUID) (*domain.NisabYearRecord, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var recordID uuid.UUID
	err = tx.QueryRow(ctx, `DELETE FROM payment_records WHERE id = $1 RETURNING nisab_year_record_id`, paymentID).Scan(&recordID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	rec, err := recomputeBalances(ctx, tx, recordID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListTrackedUsers returns all users enrolled in scheduled hawl tracking.
func (r *PostgresRepository) ListTrackedUsers(ctx context.Context) ([]domain.TrackedUser, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id, methodology_id, custom_nisab FROM hawl_tracking_users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.TrackedUser
	for rows.Next() {
		var u domain.TrackedUser
		var customNisab decimal.NullDecimal
		if err := rows.Scan(&u.UserID, &u.MethodologyID, &customNisab); err != nil {
			return nil, fmt.Errorf("failed to scan tracked user: %w", err)
		}
		if customNisab.Valid {
			u.CustomNisab = customNisab.Decimal
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
