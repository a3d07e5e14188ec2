/**
 * @description
 * This file defines the NisabYearRecord, the central entity of the zakat-service.
 * A record tracks one hawl (Islamic lunar year, 354 days) of continuous wealth
 * above the nisab threshold and carries the locked asset snapshot from which the
 * obligation is computed.
 *
 * @notes
 * - Status transitions are owned by the record service; the hawl tracker requests
 *   transitions but never edits the snapshot directly.
 * - The asset breakdown is persisted as an encrypted blob; the decrypted form is
 *   populated on the struct after load and is never stored in plaintext.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HawlDays is the length of the Islamic lunar year in days.
const HawlDays = 354

// RecordStatus is the lifecycle state of a nisab-year record.
type RecordStatus string

const (
	// RecordStatusDraft is an in-progress hawl still being tracked.
	RecordStatusDraft RecordStatus = "DRAFT"
	// RecordStatusFinalized locks the snapshot and the computed obligation.
	RecordStatusFinalized RecordStatus = "FINALIZED"
	// RecordStatusUnlocked permits one corrective refresh before re-finalizing.
	RecordStatusUnlocked RecordStatus = "UNLOCKED"
	// RecordStatusInterrupted marks a hawl broken by wealth falling below nisab.
	// Interrupted records are kept as historical attempts; the clock restarts
	// from zero with a fresh record once nisab is re-achieved.
	RecordStatusInterrupted RecordStatus = "INTERRUPTED"
)

// Terminal reports whether the status ends hawl tracking for its user.
// Only a DRAFT record blocks creation of a new one.
func (s RecordStatus) Terminal() bool {
	return s != RecordStatusDraft
}

// NisabYearRecord tracks one hawl attempt for a user.
type NisabYearRecord struct {
	ID                      uuid.UUID               `json:"id"`
	UserID                  uuid.UUID               `json:"user_id"`
	MethodologyID           MethodologyID           `json:"methodology_id"`
	CustomNisab             decimal.Decimal         `json:"custom_nisab,omitempty"`
	HawlStartDate           time.Time               `json:"hawl_start_date"`
	HawlEndDate             time.Time               `json:"hawl_end_date"`
	Status                  RecordStatus            `json:"status"`
	AssetBreakdown          *AssetBreakdownSnapshot `json:"asset_breakdown,omitempty"`
	EncryptedSnapshot       []byte                  `json:"-"`
	SnapshotUnreadable      bool                    `json:"snapshot_unreadable,omitempty"`
	// CorrectionApplied marks that the single corrective refresh permitted
	// while UNLOCKED has been used; re-finalizing clears it.
	CorrectionApplied       bool                    `json:"correction_applied,omitempty"`
	NisabThresholdAtCapture decimal.Decimal         `json:"nisab_threshold_at_capture"`
	ZakatDue                decimal.Decimal         `json:"zakat_due"`
	ZakatPaid               decimal.Decimal         `json:"zakat_paid"`
	OutstandingBalance      decimal.Decimal         `json:"outstanding_balance"`
	Version                 int64                   `json:"version"`
	CreatedAt               time.Time               `json:"created_at"`
	UpdatedAt               time.Time               `json:"updated_at"`
	FinalizedAt             *time.Time              `json:"finalized_at,omitempty"`
}

// Methodology reconstructs the record's calculation methodology.
func (r *NisabYearRecord) Methodology() Methodology {
	if r.MethodologyID == MethodologyCustom {
		return NewCustomMethodology(r.CustomNisab)
	}
	return NewMethodology(r.MethodologyID)
}

// HawlEnd returns the end of the hawl period for a given start.
func HawlEnd(start time.Time) time.Time {
	return start.AddDate(0, 0, HawlDays)
}

// TrackedUser is a user enrolled in scheduled hawl tracking, with the
// methodology their obligations are evaluated under.
type TrackedUser struct {
	UserID        uuid.UUID       `json:"user_id"`
	MethodologyID MethodologyID   `json:"methodology_id"`
	CustomNisab   decimal.Decimal `json:"custom_nisab,omitempty"`
}

// Methodology reconstructs the tracked user's calculation methodology.
func (u TrackedUser) Methodology() Methodology {
	if u.MethodologyID == MethodologyCustom {
		return NewCustomMethodology(u.CustomNisab)
	}
	return NewMethodology(u.MethodologyID)
}

// CreateRecordPayload is the DTO for user-initiated record creation. When
// SelectedAssetIDs is empty, all currently zakat-eligible assets are captured.
type CreateRecordPayload struct {
	UserID           uuid.UUID       `json:"user_id"`
	MethodologyID    MethodologyID   `json:"methodology_id"`
	CustomNisab      decimal.Decimal `json:"custom_nisab,omitempty"`
	SelectedAssetIDs []uuid.UUID     `json:"selected_asset_ids,omitempty"`
}

// ApplyRefreshPayload is the DTO for persisting a reviewed asset selection.
type ApplyRefreshPayload struct {
	SelectedAssetIDs []uuid.UUID `json:"selected_asset_ids"`
}

// RefreshCandidates is returned by the refresh operation for user review; no
// snapshot is persisted until the selection is applied.
type RefreshCandidates struct {
	RecordID uuid.UUID  `json:"record_id"`
	Assets   []AssetRef `json:"assets"`
}
