package shipping

import (
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
)

// Option ids are stable across calls; the order history references them.
const (
	OptionFreeShipping = "free-shipping"
	OptionPTStandard   = "pt-standard"
	OptionPTIslands    = "pt-islands"
	OptionDHLGround    = "dhl-ground"
	OptionDHLAir       = "dhl-air"
)

var freeShippingThreshold = decimal.NewFromInt(500)

var (
	ptStandardPrice = decimal.RequireFromString("4.90")
	ptIslandsPrice  = decimal.RequireFromString("9.90")
	dhlGroundPrice  = decimal.RequireFromString("19.90")
	dhlAirPrice     = decimal.RequireFromString("39.90")
)

// EU-27 minus Portugal. Portugal is fully handled by the PT/BR blanket rule.
var euCountries = map[string]bool{
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true, "CZ": true,
	"DK": true, "EE": true, "FI": true, "FR": true, "DE": true, "GR": true,
	"HU": true, "IE": true, "IT": true, "LV": true, "LT": true, "LU": true,
	"MT": true, "NL": true, "PL": true, "RO": true, "SK": true, "SI": true,
	"ES": true, "SE": true,
}

// ComputeOptions maps (country, region, subtotal) to the ordered list of
// available shipping options. Pure and deterministic: same inputs always
// yield the same list, sorted by ascending SortOrder, no duplicate ids.
// An empty result means checkout proceeds with zero shipping cost.
func ComputeOptions(countryCode, region string, subtotal decimal.Decimal) []domain.ShippingOption {
	country := strings.ToUpper(strings.TrimSpace(countryCode))

	// PT and BR get blanket free shipping, no threshold. This short-circuits
	// the region rules below, so the islands option is currently unreachable
	// for Portuguese addresses.
	if country == "PT" || country == "BR" {
		return []domain.ShippingOption{freeOption()}
	}

	var options []domain.ShippingOption

	if subtotal.GreaterThanOrEqual(freeShippingThreshold) {
		options = append(options, freeOption())
	}

	if country == "PT" {
		if isIslandsRegion(region) {
			options = append(options, domain.ShippingOption{
				ID:            OptionPTIslands,
				Name:          "Envio Ilhas",
				Description:   "Entrega Madeira e Açores",
				Price:         ptIslandsPrice,
				EstimatedDays: "2-5",
				SortOrder:     1,
			})
		} else {
			options = append(options, domain.ShippingOption{
				ID:            OptionPTStandard,
				Name:          "Envio Standard",
				Description:   "Entrega Portugal continental",
				Price:         ptStandardPrice,
				EstimatedDays: "1-2",
				SortOrder:     1,
			})
		}
	}

	if euCountries[country] {
		options = append(options,
			domain.ShippingOption{
				ID:            OptionDHLGround,
				Name:          "DHL Ground",
				Description:   "DHL road delivery within the EU",
				Price:         dhlGroundPrice,
				EstimatedDays: "3-7",
				SortOrder:     2,
			},
			domain.ShippingOption{
				ID:            OptionDHLAir,
				Name:          "DHL Express",
				Description:   "DHL air delivery within the EU",
				Price:         dhlAirPrice,
				EstimatedDays: "1-3",
				SortOrder:     3,
			},
		)
	}

	sort.SliceStable(options, func(i, j int) bool {
		return options[i].SortOrder < options[j].SortOrder
	})
	return options
}

// Find returns the option with the given id from a computed set.
func Find(options []domain.ShippingOption, id string) (domain.ShippingOption, bool) {
	for _, o := range options {
		if o.ID == id {
			return o, true
		}
	}
	return domain.ShippingOption{}, false
}

func freeOption() domain.ShippingOption {
	return domain.ShippingOption{
		ID:            OptionFreeShipping,
		Name:          "Envio Grátis",
		Description:   "Portes oferecidos",
		Price:         decimal.Zero,
		EstimatedDays: "2-5",
		SortOrder:     -10,
	}
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and strips accents so "Açores" matches "acores".
func fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func isIslandsRegion(region string) bool {
	folded := fold(region)
	return strings.Contains(folded, "madeira") || strings.Contains(folded, "acores")
}
