/**
 * @description
 * This file defines the asset-facing domain models. AssetRef is a read-only view
 * of an asset owned by the external asset-management service; this service never
 * mutates it. Snapshot types are immutable copies captured at a point in time and
 * are always rendered from the stored values, never recalculated retroactively.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetRef is a read-only reference to an asset held by the asset-management
// service, pre-normalized to a single currency.
type AssetRef struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	SubCategory   string          `json:"sub_category,omitempty"`
	Value         decimal.Decimal `json:"value"`
	ZakatEligible bool            `json:"zakat_eligible"`
}

// AssetSnapshotEntry is an immutable copy of an AssetRef at capture time.
type AssetSnapshotEntry struct {
	AssetID     uuid.UUID       `json:"asset_id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Value       decimal.Decimal `json:"value"`
	IsZakatable bool            `json:"is_zakatable"`
	CapturedAt  time.Time       `json:"captured_at"`
}

// AssetBreakdownSnapshot is the full set of asset entries captured for a
// nisab-year record, with aggregate wealth figures.
type AssetBreakdownSnapshot struct {
	Entries         []AssetSnapshotEntry `json:"entries"`
	CapturedAt      time.Time            `json:"captured_at"`
	TotalWealth     decimal.Decimal      `json:"total_wealth"`
	ZakatableWealth decimal.Decimal      `json:"zakatable_wealth"`
}

// BuildAssetBreakdownSnapshot captures the given assets at capturedAt.
// TotalWealth sums every entry; ZakatableWealth sums only zakatable entries.
func BuildAssetBreakdownSnapshot(assets []AssetRef, capturedAt time.Time) AssetBreakdownSnapshot {
	snapshot := AssetBreakdownSnapshot{
		Entries:         make([]AssetSnapshotEntry, 0, len(assets)),
		CapturedAt:      capturedAt,
		TotalWealth:     decimal.Zero,
		ZakatableWealth: decimal.Zero,
	}
	for _, asset := range assets {
		entry := AssetSnapshotEntry{
			AssetID:     asset.ID,
			Name:        asset.Name,
			Category:    asset.Category,
			Value:       asset.Value,
			IsZakatable: asset.ZakatEligible,
			CapturedAt:  capturedAt,
		}
		snapshot.Entries = append(snapshot.Entries, entry)
		snapshot.TotalWealth = snapshot.TotalWealth.Add(asset.Value)
		if asset.ZakatEligible {
			snapshot.ZakatableWealth = snapshot.ZakatableWealth.Add(asset.Value)
		}
	}
	return snapshot
}

// MetalPrices carries current gold and silver spot prices per gram.
type MetalPrices struct {
	GoldPerGram   decimal.Decimal `json:"gold_per_gram"`
	SilverPerGram decimal.Decimal `json:"silver_per_gram"`
}
