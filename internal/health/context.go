package health

import (
	"strings"

	"lg/fitai-go-api/internal/model"
)

// EthnicityClass selects the BMI threshold table.
type EthnicityClass string

const (
	EthnicityStandard EthnicityClass = "standard"
	EthnicityAsian    EthnicityClass = "asian"
	EthnicityPacific  EthnicityClass = "pacific"
)

// ClimateClass adjusts TDEE and water intake.
type ClimateClass string

const (
	ClimateTemperate ClimateClass = "temperate"
	ClimateTropical  ClimateClass = "tropical"
	ClimateArid      ClimateClass = "arid"
	ClimateCold      ClimateClass = "cold"
)

// Context is the formula-selection context derived from coarse user attributes.
type Context struct {
	Ethnicity       EthnicityClass
	Climate         ClimateClass
	ProteinBoostPct float64 // relative boost to the protein share, e.g. 0.15
}

type region struct {
	ethnicity EthnicityClass
	climate   ClimateClass
}

// regions maps normalized country names and ISO alpha-2 codes to their class
// pair. Unknown countries fall back to standard/temperate.
var regions = map[string]region{}

func addRegion(e EthnicityClass, c ClimateClass, names ...string) {
	for _, n := range names {
		regions[n] = region{ethnicity: e, climate: c}
	}
}

func init() {
	addRegion(EthnicityAsian, ClimateTropical,
		"in", "india", "th", "thailand", "sg", "singapore", "my", "malaysia",
		"id", "indonesia", "ph", "philippines", "vn", "vietnam", "viet nam",
		"bd", "bangladesh", "lk", "sri lanka", "mm", "myanmar", "kh", "cambodia")
	addRegion(EthnicityAsian, ClimateTemperate,
		"cn", "china", "jp", "japan", "kr", "south korea", "korea", "tw", "taiwan",
		"hk", "hong kong", "np", "nepal")
	addRegion(EthnicityAsian, ClimateArid,
		"pk", "pakistan")
	addRegion(EthnicityAsian, ClimateCold,
		"mn", "mongolia")
	addRegion(EthnicityPacific, ClimateTropical,
		"ws", "samoa", "to", "tonga", "fj", "fiji", "pf", "french polynesia",
		"ck", "cook islands")
	addRegion(EthnicityStandard, ClimateTropical,
		"br", "brazil", "ng", "nigeria", "gh", "ghana", "ke", "kenya",
		"co", "colombia", "jm", "jamaica", "tz", "tanzania")
	addRegion(EthnicityStandard, ClimateArid,
		"sa", "saudi arabia", "ae", "uae", "united arab emirates", "qa", "qatar",
		"kw", "kuwait", "eg", "egypt", "om", "oman", "bh", "bahrain")
	addRegion(EthnicityStandard, ClimateCold,
		"ca", "canada", "no", "norway", "se", "sweden", "fi", "finland",
		"is", "iceland", "ru", "russia", "dk", "denmark")
}

func normalizeCountry(country string) string {
	c := strings.ToLower(strings.TrimSpace(country))
	c = strings.ReplaceAll(c, ".", "")
	return strings.Join(strings.Fields(c), " ")
}

// DetectContext maps country/region and diet type to the formula context.
func DetectContext(country string, diet model.DietType) Context {
	ctx := Context{Ethnicity: EthnicityStandard, Climate: ClimateTemperate}
	if r, ok := regions[normalizeCountry(country)]; ok {
		ctx.Ethnicity = r.ethnicity
		ctx.Climate = r.climate
	}
	ctx.ProteinBoostPct = dietProteinBoost[diet]
	return ctx
}

// dietProteinBoost compensates for lower plant-protein bioavailability.
var dietProteinBoost = map[model.DietType]float64{
	model.DietVegetarian: 0.10,
	model.DietVegan:      0.15,
}

// climateTDEEModifier is a fractional TDEE adjustment per climate class.
var climateTDEEModifier = map[ClimateClass]float64{
	ClimateTemperate: 0,
	ClimateTropical:  0.05,
	ClimateArid:      0.07,
	ClimateCold:      0.03,
}

// climateWaterBonusMLPerKG is added to the base water requirement.
var climateWaterBonusMLPerKG = map[ClimateClass]float64{
	ClimateTemperate: 0,
	ClimateTropical:  10,
	ClimateArid:      15,
	ClimateCold:      0,
}
