/**
 * @description
 * The zakat calculation engine. Given a set of asset references, a methodology
 * and current metal prices, it computes eligibility against the nisab threshold,
 * per-asset and aggregate obligations, and a step-by-step audit breakdown that
 * lets a caller replay the calculation.
 *
 * Rate application is all-or-nothing: wealth below the threshold incurs no
 * obligation at all, never a partial one.
 *
 * @dependencies
 * - github.com/shopspring/decimal: precision-safe monetary arithmetic.
 * - internal/domain: asset and methodology models.
 */

package zakat

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zakatech/zakat-service/internal/domain"
)

// ErrInvalidRequest is returned when the input asset list is empty before
// eligibility filtering.
var ErrInvalidRequest = errors.New("invalid calculation request")

var oneHundred = decimal.NewFromInt(100)

// AssetCalculation is the per-asset outcome of a calculation.
type AssetCalculation struct {
	AssetID  uuid.UUID       `json:"asset_id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Value    decimal.Decimal `json:"value"`
	ZakatDue decimal.Decimal `json:"zakat_due"`
}

// BreakdownStep is one step of the audit breakdown. Inputs and outputs carry
// the step's numeric values as strings so the calculation can be replayed and
// displayed without precision loss.
type BreakdownStep struct {
	Step    int               `json:"step"`
	Name    string            `json:"name"`
	Inputs  map[string]string `json:"inputs"`
	Outputs map[string]string `json:"outputs"`
}

// CalculationResult is the full outcome of a calculation run.
type CalculationResult struct {
	MethodologyID        domain.MethodologyID `json:"methodology_id"`
	Nisab                Nisab                `json:"nisab"`
	TotalZakatableWealth decimal.Decimal      `json:"total_zakatable_wealth"`
	MeetsNisab           bool                 `json:"meets_nisab"`
	TotalZakatDue        decimal.Decimal      `json:"total_zakat_due"`
	Assets               []AssetCalculation   `json:"assets"`
	Breakdown            []BreakdownStep      `json:"breakdown"`
}

// Calculate runs the zakat calculation over the given assets.
//
// An empty input list is rejected with ErrInvalidRequest. An asset list that
// becomes empty after filtering out non-eligible assets is legal and yields a
// below-threshold result with zero obligation.
func Calculate(assets []domain.AssetRef, m domain.Methodology, prices domain.MetalPrices) (*CalculationResult, error) {
	if len(assets) == 0 {
		return nil, ErrInvalidRequest
	}

	// Step 1: nisab threshold.
	nisab, err := ComputeNisab(prices.GoldPerGram, prices.SilverPerGram, m)
	if err != nil {
		return nil, err
	}

	// Step 2: aggregate eligible wealth.
	eligible := make([]domain.AssetRef, 0, len(assets))
	total := decimal.Zero
	for _, asset := range assets {
		if asset.ZakatEligible {
			eligible = append(eligible, asset)
			total = total.Add(asset.Value)
		}
	}

	// Step 3: eligibility.
	meetsNisab := total.GreaterThanOrEqual(nisab.EffectiveNisab)

	// Step 4: rate application.
	result := &CalculationResult{
		MethodologyID:        m.ID,
		Nisab:                nisab,
		TotalZakatableWealth: total,
		MeetsNisab:           meetsNisab,
		TotalZakatDue:        decimal.Zero,
		Assets:               make([]AssetCalculation, 0, len(eligible)),
	}
	for _, asset := range eligible {
		due := decimal.Zero
		if meetsNisab {
			due = asset.Value.Mul(m.ZakatRatePercent).Div(oneHundred)
		}
		result.Assets = append(result.Assets, AssetCalculation{
			AssetID:  asset.ID,
			Name:     asset.Name,
			Category: asset.Category,
			Value:    asset.Value,
			ZakatDue: due,
		})
		result.TotalZakatDue = result.TotalZakatDue.Add(due)
	}

	result.Breakdown = buildBreakdown(m, prices, nisab, len(assets), len(eligible), total, meetsNisab, result.TotalZakatDue)
	return result, nil
}

func buildBreakdown(
	m domain.Methodology,
	prices domain.MetalPrices,
	nisab Nisab,
	assetCount, eligibleCount int,
	total decimal.Decimal,
	meetsNisab bool,
	totalDue decimal.Decimal,
) []BreakdownStep {
	appliedRate := decimal.Zero
	if meetsNisab {
		appliedRate = m.ZakatRatePercent
	}
	return []BreakdownStep{
		{
			Step: 1,
			Name: "nisab_calculation",
			Inputs: map[string]string{
				"gold_price_per_gram":   prices.GoldPerGram.String(),
				"silver_price_per_gram": prices.SilverPerGram.String(),
				"methodology":           string(m.ID),
			},
			Outputs: map[string]string{
				"gold_nisab":      nisab.GoldNisab.String(),
				"silver_nisab":    nisab.SilverNisab.String(),
				"effective_nisab": nisab.EffectiveNisab.String(),
				"nisab_basis":     string(nisab.NisabBasis),
			},
		},
		{
			Step: 2,
			Name: "asset_aggregation",
			Inputs: map[string]string{
				"asset_count": decimal.NewFromInt(int64(assetCount)).String(),
			},
			Outputs: map[string]string{
				"eligible_asset_count":   decimal.NewFromInt(int64(eligibleCount)).String(),
				"total_zakatable_wealth": total.String(),
			},
		},
		{
			Step: 3,
			Name: "eligibility_check",
			Inputs: map[string]string{
				"total_zakatable_wealth": total.String(),
				"effective_nisab":        nisab.EffectiveNisab.String(),
			},
			Outputs: map[string]string{
				"meets_nisab": boolString(meetsNisab),
			},
		},
		{
			Step: 4,
			Name: "rate_application",
			Inputs: map[string]string{
				"zakat_rate_percent": m.ZakatRatePercent.String(),
				"meets_nisab":        boolString(meetsNisab),
			},
			Outputs: map[string]string{
				"applied_rate_percent": appliedRate.String(),
			},
		},
		{
			Step: 5,
			Name: "totals",
			Inputs: map[string]string{
				"total_zakatable_wealth": total.String(),
				"applied_rate_percent":   appliedRate.String(),
			},
			Outputs: map[string]string{
				"total_zakat_due": totalDue.String(),
			},
		},
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
