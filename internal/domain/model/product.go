package model

// Product is one purchasable SKU. The catalog is static configuration, not a
// persisted table; it is consulted by checkout (price) and settlement (credits).
type Product struct {
	SKU              string            `yaml:"sku"`
	Credits          int64             `yaml:"credits"`
	PriceKZT         int64             `yaml:"price_kzt"` // base price, major units
	Subscription     bool              `yaml:"subscription"`
	RecurringMonths  int               `yaml:"recurring_months"` // pg_recurring_lifetime, 1-156
	Names            map[string]string `yaml:"names"`            // language -> display name
}

// Name returns the display name for lang, falling back to English then SKU.
func (p Product) Name(lang string) string {
	if n, ok := p.Names[lang]; ok && n != "" {
		return n
	}
	if n, ok := p.Names["en"]; ok && n != "" {
		return n
	}
	return p.SKU
}

// Catalog maps SKU to product. Credits for an unknown SKU are zero, which
// settlement treats as a no-op.
type Catalog map[string]Product

func (c Catalog) CreditsFor(sku string) int64 {
	return c[sku].Credits
}

// DefaultCatalog mirrors the production credit map.
func DefaultCatalog() Catalog {
	return Catalog{
		"1_chapter": {
			SKU: "1_chapter", Credits: 7, PriceKZT: 1000,
			Names: map[string]string{"en": "7 chapters", "ru": "7 глав", "kz": "7 тарау"},
		},
		"5_chapters": {
			SKU: "5_chapters", Credits: 20, PriceKZT: 2000,
			Names: map[string]string{"en": "20 chapters", "ru": "20 глав", "kz": "20 тарау"},
		},
		"10_chapters": {
			SKU: "10_chapters", Credits: 40, PriceKZT: 3900,
			Names: map[string]string{"en": "40 chapters", "ru": "40 глав", "kz": "40 тарау"},
		},
		"subscription_100": {
			SKU: "subscription_100", Credits: 100, PriceKZT: 6000,
			Subscription: true, RecurringMonths: 12,
			Names: map[string]string{
				"en": "Monthly subscription - 100 chapters",
				"ru": "Месячная подписка - 100 глав",
				"kz": "Айлық жазылым - 100 тарау",
			},
		},
	}
}
