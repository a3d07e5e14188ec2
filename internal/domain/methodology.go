/**
 * @description
 * This file defines the calculation methodologies supported by the zakat-service.
 * Each methodology corresponds to a school of Islamic jurisprudence and determines
 * how the nisab (minimum wealth threshold) is derived from gold and silver spot
 * prices. The set of methodologies is closed: adding one is a compile-time change.
 *
 * @notes
 * - Monetary values use shopspring/decimal throughout; floats are never used in
 *   money paths to avoid precision drift in obligation amounts.
 */

package domain

import (
	"github.com/shopspring/decimal"
)

// MethodologyID identifies a supported calculation methodology.
type MethodologyID string

const (
	MethodologyStandard MethodologyID = "standard"
	MethodologyHanafi   MethodologyID = "hanafi"
	MethodologyShafii   MethodologyID = "shafii"
	MethodologyCustom   MethodologyID = "custom"
)

// NisabBasis labels which rule produced the effective nisab threshold.
type NisabBasis string

const (
	NisabBasisGold        NisabBasis = "gold"
	NisabBasisSilver      NisabBasis = "silver"
	NisabBasisDualMinimum NisabBasis = "dual_minimum"
	NisabBasisCustom      NisabBasis = "custom"
)

// DefaultZakatRatePercent is the canonical 2.5% obligation rate.
var DefaultZakatRatePercent = decimal.RequireFromString("2.5")

// Methodology is the user-selected calculation rule applied by the engine.
// CustomNisab is only meaningful when ID is MethodologyCustom, where it must
// be a positive threshold amount.
type Methodology struct {
	ID               MethodologyID   `json:"id"`
	ZakatRatePercent decimal.Decimal `json:"zakat_rate_percent"`
	CustomNisab      decimal.Decimal `json:"custom_nisab,omitempty"`
}

// NewMethodology returns a methodology with the default 2.5% rate.
func NewMethodology(id MethodologyID) Methodology {
	return Methodology{ID: id, ZakatRatePercent: DefaultZakatRatePercent}
}

// NewCustomMethodology returns a custom methodology with a fixed nisab threshold.
func NewCustomMethodology(customNisab decimal.Decimal) Methodology {
	return Methodology{
		ID:               MethodologyCustom,
		ZakatRatePercent: DefaultZakatRatePercent,
		CustomNisab:      customNisab,
	}
}

// MethodologyInfo is a static catalog entry describing a supported methodology.
type MethodologyInfo struct {
	ID               MethodologyID   `json:"id"`
	Name             string          `json:"name"`
	NisabBasis       NisabBasis      `json:"nisab_basis"`
	ZakatRatePercent decimal.Decimal `json:"zakat_rate_percent"`
	Description      string          `json:"description"`
}

// MethodologyCatalog returns the static table of supported methodologies.
// The standard and shafii methodologies yield the same numeric threshold; they
// differ only in how the governing basis is reported.
func MethodologyCatalog() []MethodologyInfo {
	return []MethodologyInfo{
		{
			ID:               MethodologyStandard,
			Name:             "Standard (AAOIFI)",
			NisabBasis:       NisabBasisSilver,
			ZakatRatePercent: DefaultZakatRatePercent,
			Description:      "Lower of the gold and silver thresholds; reports which metal governed.",
		},
		{
			ID:               MethodologyHanafi,
			Name:             "Hanafi",
			NisabBasis:       NisabBasisSilver,
			ZakatRatePercent: DefaultZakatRatePercent,
			Description:      "Always the silver threshold, the more inclusive basis.",
		},
		{
			ID:               MethodologyShafii,
			Name:             "Shafi'i",
			NisabBasis:       NisabBasisDualMinimum,
			ZakatRatePercent: DefaultZakatRatePercent,
			Description:      "Lower of the gold and silver thresholds.",
		},
		{
			ID:               MethodologyCustom,
			Name:             "Custom",
			NisabBasis:       NisabBasisCustom,
			ZakatRatePercent: DefaultZakatRatePercent,
			Description:      "Caller-supplied fixed threshold amount.",
		},
	}
}

// KnownMethodologyID reports whether id names a supported methodology.
func KnownMethodologyID(id MethodologyID) bool {
	switch id {
	case MethodologyStandard, MethodologyHanafi, MethodologyShafii, MethodologyCustom:
		return true
	}
	return false
}
