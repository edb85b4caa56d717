package usecase

import (
	"math"

	"story-ai-billing/internal/domain"
)

// Compile-time check
var _ PricingUseCase = (*pricingUC)(nil)

type PricingUseCase interface {
	// Convert turns a KZT minor-unit amount into the target currency's minor
	// units, rounding up to the currency's display step so converted prices
	// never undercut the KZT base price.
	Convert(amountMinorKZT int64, currency string) (int64, error)
}

// Rate describes a supported settlement currency. Rates are fixed
// merchant-side values, not market rates; ops adjust them via config
// overrides when they drift.
type Rate struct {
	PerKZT float64 // KZT per one major unit
	Step   int64   // rounding step in major units
}

var defaultRates = map[string]Rate{
	"KZT": {PerKZT: 1, Step: 10},
	"USD": {PerKZT: 470, Step: 1},
	"EUR": {PerKZT: 510, Step: 1},
}

type pricingUC struct {
	rates map[string]Rate
}

func NewPricingUseCase(overrides map[string]Rate) *pricingUC {
	rates := make(map[string]Rate, len(defaultRates))
	for k, v := range defaultRates {
		rates[k] = v
	}
	for k, v := range overrides {
		rates[k] = v
	}
	return &pricingUC{rates: rates}
}

func (u *pricingUC) Convert(amountMinorKZT int64, currency string) (int64, error) {
	rate, ok := u.rates[currency]
	if !ok {
		return 0, domain.ErrInvalidArgument
	}
	major := float64(amountMinorKZT) / 100 / rate.PerKZT
	stepped := int64(math.Ceil(major/float64(rate.Step))) * rate.Step
	return stepped * 100, nil
}
