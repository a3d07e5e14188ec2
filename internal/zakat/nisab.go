/**
 * @description
 * Nisab threshold calculation. Given gold and silver spot prices per gram and a
 * methodology, this computes the effective minimum-wealth threshold below which
 * no zakat is due. Pure functions of their inputs; no I/O and no side effects.
 *
 * @notes
 * - The gold and silver weight thresholds (87.48 g and 612.36 g) are canonical
 *   jurisprudential constants, not configuration.
 */

package zakat

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/zakatech/zakat-service/internal/domain"
)

var (
	// ErrInvalidMethodology is returned for an unrecognized methodology or a
	// custom methodology without a positive threshold amount.
	ErrInvalidMethodology = errors.New("invalid methodology")
)

var (
	// GoldNisabGrams is the canonical gold weight threshold.
	GoldNisabGrams = decimal.RequireFromString("87.48")
	// SilverNisabGrams is the canonical silver weight threshold.
	SilverNisabGrams = decimal.RequireFromString("612.36")
)

// Nisab is the computed threshold set for one price pair and methodology.
type Nisab struct {
	GoldNisab      decimal.Decimal   `json:"gold_nisab"`
	SilverNisab    decimal.Decimal   `json:"silver_nisab"`
	EffectiveNisab decimal.Decimal   `json:"effective_nisab"`
	NisabBasis     domain.NisabBasis `json:"nisab_basis"`
}

// ComputeNisab derives the effective nisab threshold for the given spot prices
// and methodology.
//
// Hanafi always takes the silver threshold regardless of which metal is cheaper.
// Shafi'i takes the lower of the two and reports the dual-minimum basis. The
// standard methodology yields the same number as Shafi'i but tags which metal
// actually governed, for explanatory display. Custom overrides both thresholds
// with a caller-supplied amount.
func ComputeNisab(goldPerGram, silverPerGram decimal.Decimal, m domain.Methodology) (Nisab, error) {
	goldNisab := GoldNisabGrams.Mul(goldPerGram)
	silverNisab := SilverNisabGrams.Mul(silverPerGram)

	n := Nisab{GoldNisab: goldNisab, SilverNisab: silverNisab}

	switch m.ID {
	case domain.MethodologyHanafi:
		n.EffectiveNisab = silverNisab
		n.NisabBasis = domain.NisabBasisSilver
	case domain.MethodologyShafii:
		n.EffectiveNisab = decimal.Min(goldNisab, silverNisab)
		n.NisabBasis = domain.NisabBasisDualMinimum
	case domain.MethodologyStandard:
		n.EffectiveNisab = decimal.Min(goldNisab, silverNisab)
		if silverNisab.LessThanOrEqual(goldNisab) {
			n.NisabBasis = domain.NisabBasisSilver
		} else {
			n.NisabBasis = domain.NisabBasisGold
		}
	case domain.MethodologyCustom:
		if !m.CustomNisab.IsPositive() {
			return Nisab{}, ErrInvalidMethodology
		}
		n.EffectiveNisab = m.CustomNisab
		n.NisabBasis = domain.NisabBasisCustom
	default:
		return Nisab{}, ErrInvalidMethodology
	}

	return n, nil
}
