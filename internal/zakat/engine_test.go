package zakat

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zakatech/zakat-service/internal/domain"
)

func testPrices() domain.MetalPrices {
	return domain.MetalPrices{
		GoldPerGram:   decimal.RequireFromString("65"),
		SilverPerGram: decimal.RequireFromString("0.80"),
	}
}

func eligibleAsset(name, value string) domain.AssetRef {
	return domain.AssetRef{
		ID:            uuid.New(),
		Name:          name,
		Category:      "cash",
		Value:         decimal.RequireFromString(value),
		ZakatEligible: true,
	}
}

func TestCalculate_AboveNisabAppliesStandardRate(t *testing.T) {
	assets := []domain.AssetRef{eligibleAsset("savings", "100000")}

	result, err := Calculate(assets, domain.NewMethodology(domain.MethodologyStandard), testPrices())
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}

	if !result.MeetsNisab {
		t.Fatal("expected wealth above nisab to meet the threshold")
	}
	if want := decimal.RequireFromString("2500"); !result.TotalZakatDue.Equal(want) {
		t.Fatalf("expected total zakat due %s, got %s", want, result.TotalZakatDue)
	}
	if len(result.Assets) != 1 {
		t.Fatalf("expected 1 asset calculation, got %d", len(result.Assets))
	}
	if !result.Assets[0].ZakatDue.Equal(decimal.RequireFromString("2500")) {
		t.Fatalf("expected per-asset due 2500, got %s", result.Assets[0].ZakatDue)
	}
}

func TestCalculate_BelowNisabOwesNothing(t *testing.T) {
	// Effective nisab at these prices is 489.888; 100 is well below it.
	assets := []domain.AssetRef{eligibleAsset("savings", "100")}

	result, err := Calculate(assets, domain.NewMethodology(domain.MethodologyStandard), testPrices())
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}

	if result.MeetsNisab {
		t.Fatal("expected wealth below nisab to miss the threshold")
	}
	if !result.TotalZakatDue.IsZero() {
		t.Fatalf("expected zero obligation below nisab, got %s", result.TotalZakatDue)
	}
	for _, asset := range result.Assets {
		if !asset.ZakatDue.IsZero() {
			t.Fatalf("expected per-asset due of zero below nisab, got %s for %s", asset.ZakatDue, asset.Name)
		}
	}
}

func TestCalculate_EmptyAssetListRejected(t *testing.T) {
	_, err := Calculate(nil, domain.NewMethodology(domain.MethodologyStandard), testPrices())
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestCalculate_IgnoresIneligibleAssets(t *testing.T) {
	primaryHome := domain.AssetRef{
		ID:            uuid.New(),
		Name:          "primary residence",
		Category:      "property",
		Value:         decimal.RequireFromString("500000"),
		ZakatEligible: false,
	}
	assets := []domain.AssetRef{eligibleAsset("savings", "10000"), primaryHome}

	result, err := Calculate(assets, domain.NewMethodology(domain.MethodologyStandard), testPrices())
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}

	if want := decimal.RequireFromString("10000"); !result.TotalZakatableWealth.Equal(want) {
		t.Fatalf("expected zakatable wealth %s, got %s", want, result.TotalZakatableWealth)
	}
	if len(result.Assets) != 1 {
		t.Fatalf("expected only the eligible asset in the result, got %d", len(result.Assets))
	}
	if want := decimal.RequireFromString("250"); !result.TotalZakatDue.Equal(want) {
		t.Fatalf("expected total zakat due %s, got %s", want, result.TotalZakatDue)
	}
}

func TestCalculate_AllAssetsIneligibleYieldsZeroWealthResult(t *testing.T) {
	assets := []domain.AssetRef{{
		ID:            uuid.New(),
		Name:          "primary residence",
		Category:      "property",
		Value:         decimal.RequireFromString("500000"),
		ZakatEligible: false,
	}}

	result, err := Calculate(assets, domain.NewMethodology(domain.MethodologyStandard), testPrices())
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	if result.MeetsNisab {
		t.Fatal("expected zero zakatable wealth to miss the threshold")
	}
	if !result.TotalZakatableWealth.IsZero() || !result.TotalZakatDue.IsZero() {
		t.Fatalf("expected zero wealth and zero due, got %s / %s", result.TotalZakatableWealth, result.TotalZakatDue)
	}
}

func TestCalculate_BreakdownReplaysTheCalculation(t *testing.T) {
	assets := []domain.AssetRef{eligibleAsset("savings", "100000")}

	result, err := Calculate(assets, domain.NewMethodology(domain.MethodologyStandard), testPrices())
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}

	if len(result.Breakdown) != 5 {
		t.Fatalf("expected 5 breakdown steps, got %d", len(result.Breakdown))
	}
	names := []string{"nisab_calculation", "asset_aggregation", "eligibility_check", "rate_application", "totals"}
	for i, step := range result.Breakdown {
		if step.Step != i+1 {
			t.Fatalf("expected step %d to be numbered %d, got %d", i, i+1, step.Step)
		}
		if step.Name != names[i] {
			t.Fatalf("expected step %d to be %q, got %q", i+1, names[i], step.Name)
		}
	}

	nisabStep := result.Breakdown[0]
	if nisabStep.Outputs["effective_nisab"] != "489.888" {
		t.Fatalf("expected effective nisab output 489.888, got %q", nisabStep.Outputs["effective_nisab"])
	}
	rateStep := result.Breakdown[3]
	if rateStep.Outputs["applied_rate_percent"] != "2.5" {
		t.Fatalf("expected applied rate 2.5, got %q", rateStep.Outputs["applied_rate_percent"])
	}
	totalsStep := result.Breakdown[4]
	if totalsStep.Outputs["total_zakat_due"] != "2500" {
		t.Fatalf("expected total zakat due 2500, got %q", totalsStep.Outputs["total_zakat_due"])
	}
}

func TestCalculate_RateApplicationStepReportsZeroBelowNisab(t *testing.T) {
	assets := []domain.AssetRef{eligibleAsset("savings", "100")}

	result, err := Calculate(assets, domain.NewMethodology(domain.MethodologyStandard), testPrices())
	if err != nil {
		t.Fatalf("Calculate returned error: %v", err)
	}
	rateStep := result.Breakdown[3]
	if rateStep.Outputs["applied_rate_percent"] != "0" {
		t.Fatalf("expected applied rate 0 below nisab, got %q", rateStep.Outputs["applied_rate_percent"])
	}
}
