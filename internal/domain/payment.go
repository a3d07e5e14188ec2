/**
 * @description
 * This file defines payment-side domain models. A PaymentRecord is always linked
 * to a nisab-year record; every payment mutation recomputes the parent record's
 * zakat_paid and outstanding_balance in the same database transaction.
 *
 * @notes
 * - The recipient category must be one of the 8 canonical classes of lawful
 *   zakat recipients enumerated below.
 * - Payment notes are stored as an encrypted blob and decrypted on read.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecipientCategory is one of the 8 canonical classes of lawful zakat recipients.
type RecipientCategory string

const (
	RecipientPoor          RecipientCategory = "poor"
	RecipientNeedy         RecipientCategory = "needy"
	RecipientAdministrator RecipientCategory = "administrator"
	RecipientReconciled    RecipientCategory = "reconciled_hearts"
	RecipientCaptive       RecipientCategory = "captives"
	RecipientDebtor        RecipientCategory = "debtors"
	RecipientCauseOfGod    RecipientCategory = "cause_of_god"
	RecipientTraveler      RecipientCategory = "stranded_travelers"
)

// RecipientCategories lists the canonical classes in their traditional order.
func RecipientCategories() []RecipientCategory {
	return []RecipientCategory{
		RecipientPoor,
		RecipientNeedy,
		RecipientAdministrator,
		RecipientReconciled,
		RecipientCaptive,
		RecipientDebtor,
		RecipientCauseOfGod,
		RecipientTraveler,
	}
}

// ValidRecipientCategory reports whether c is one of the canonical classes.
func ValidRecipientCategory(c RecipientCategory) bool {
	switch c {
	case RecipientPoor, RecipientNeedy, RecipientAdministrator, RecipientReconciled,
		RecipientCaptive, RecipientDebtor, RecipientCauseOfGod, RecipientTraveler:
		return true
	}
	return false
}

// PaymentRecord is a single zakat payment against a nisab-year record.
type PaymentRecord struct {
	ID                uuid.UUID         `json:"id"`
	NisabYearRecordID uuid.UUID         `json:"nisab_year_record_id"`
	Amount            decimal.Decimal   `json:"amount"`
	Date              time.Time         `json:"date"`
	RecipientCategory RecipientCategory `json:"recipient_category"`
	RecipientName     *string           `json:"recipient_name,omitempty"`
	Method            *string           `json:"method,omitempty"`
	Notes             *string           `json:"notes,omitempty"`
	EncryptedNotes    []byte            `json:"-"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// RecordPaymentPayload is the DTO for creating a payment.
type RecordPaymentPayload struct {
	NisabYearRecordID uuid.UUID         `json:"nisab_year_record_id"`
	Amount            decimal.Decimal   `json:"amount"`
	Date              time.Time         `json:"date"`
	RecipientCategory RecipientCategory `json:"recipient_category"`
	RecipientName     *string           `json:"recipient_name,omitempty"`
	Method            *string           `json:"method,omitempty"`
	Notes             *string           `json:"notes,omitempty"`
}

// EditPaymentPayload is the DTO for editing an existing payment.
type EditPaymentPayload struct {
	Amount            decimal.Decimal   `json:"amount"`
	Date              time.Time         `json:"date"`
	RecipientCategory RecipientCategory `json:"recipient_category"`
	RecipientName     *string           `json:"recipient_name,omitempty"`
	Method            *string           `json:"method,omitempty"`
	Notes             *string           `json:"notes,omitempty"`
}

// PaymentMutationResult carries the mutated payment together with the parent
// record's recomputed balances, so callers observe both atomically.
type PaymentMutationResult struct {
	Payment            *PaymentRecord  `json:"payment,omitempty"`
	ZakatDue           decimal.Decimal `json:"zakat_due"`
	ZakatPaid          decimal.Decimal `json:"zakat_paid"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	Overpaid           bool            `json:"overpaid"`
}
