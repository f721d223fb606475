// pkg/validate/rules.go
package validate

import "regexp"

// ValidStates lists accepted state and territory abbreviations.
var ValidStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "DC": true, "PR": true, "VI": true, "GU": true,
	"AS": true, "MP": true,
}

// ValidTechnologies is the canonical technology vocabulary, in display order.
var ValidTechnologies = []string{
	"wireless_unlicensed", "wireless_gaa", "wireless_pal", "wireless_educational",
	"fiber", "cable", "adsl2", "ethernet", "voip",
}

// technologyCorrections maps known long-form mis-entries (lowercased, spaces
// already stripped by the caller) to canonical technology tokens.
var technologyCorrections = map[string]string{
	"licensedbyruleterrestrialfixedwireless": "wireless_gaa",
	"unlicensedterrestrialfixedwireless":     "wireless_unlicensed",
	"licensedterrestrialfixedwireless":       "wireless_pal",
}

// coordRange is an inclusive min/max envelope.
type coordRange struct {
	Min, Max float64
}

// StateLatRanges holds per-state latitude envelopes. American Samoa is the
// only negative-latitude territory.
var StateLatRanges = map[string]coordRange{
	"AL": {30.137521, 35.008028}, "AK": {51.214183, 71.538800}, "AZ": {31.332177, 37.004260},
	"AR": {33.004106, 36.499749}, "CA": {32.534156, 42.009518}, "CO": {36.993076, 41.003444},
	"CT": {40.980144, 42.050587}, "DE": {38.451013, 39.839007}, "FL": {24.396308, 31.001056},
	"GA": {30.355657, 35.001180}, "HI": {18.911680, 28.517269}, "ID": {41.988057, 49.001146},
	"IL": {36.970298, 42.508481}, "IN": {37.771743, 41.760592}, "IA": {40.375437, 43.501196},
	"KS": {36.993016, 40.003166}, "KY": {36.496486, 39.147458}, "LA": {28.928609, 33.019543},
	"ME": {42.977764, 47.459686}, "MD": {37.911717, 39.723043}, "MA": {41.238100, 42.886589},
	"MI": {41.696118, 48.305884}, "MN": {43.499361, 49.384358}, "MS": {30.173943, 35.005002},
	"MO": {35.995683, 40.613639}, "MT": {44.358209, 49.001390}, "NE": {39.999932, 43.001708},
	"NV": {35.001857, 42.002207}, "NH": {42.697037, 45.305476}, "NJ": {38.928609, 41.357423},
	"NM": {31.332301, 37.000293}, "NY": {40.496103, 45.015850}, "NC": {33.840233, 36.588117},
	"ND": {45.935054, 49.000574}, "OH": {38.403202, 41.977523}, "OK": {33.615833, 37.002312},
	"OR": {41.991794, 46.299099}, "PA": {39.719799, 42.269314}, "RI": {41.146339, 42.018798},
	"SC": {32.034600, 35.215402}, "SD": {42.479635, 45.945450}, "TN": {34.982972, 36.678118},
	"TX": {25.837377, 36.500704}, "UT": {36.997968, 42.001567}, "VT": {42.726853, 45.016659},
	"VA": {36.540759, 39.466012}, "WA": {45.543541, 49.002494}, "WV": {37.201483, 40.638801},
	"WI": {42.491983, 47.080621}, "WY": {40.994746, 45.005904}, "DC": {38.791645, 38.995548},
	"PR": {17.926405, 18.516726}, "VI": {17.673976, 18.412655}, "GU": {13.234189, 13.654383},
	"AS": {-14.548699, -14.120151}, "MP": {14.093068, 20.553762},
}

// StateLonRanges holds per-state longitude envelopes. Guam and the Northern
// Marianas are the only positive-longitude territories.
var StateLonRanges = map[string]coordRange{
	"AL": {-88.473227, -84.889080}, "AK": {-179.148909, 179.778470}, "AZ": {-114.816510, -109.045223},
	"AR": {-94.617919, -89.644395}, "CA": {-124.409591, -114.131211}, "CO": {-109.060253, -102.041524},
	"CT": {-73.727775, -71.786994}, "DE": {-75.788658, -75.048939}, "FL": {-87.634896, -80.031056},
	"GA": {-85.605165, -80.840141}, "HI": {-178.334698, -154.806773}, "ID": {-117.243027, -111.043564},
	"IL": {-91.513079, -87.494756}, "IN": {-88.097892, -84.787981}, "IA": {-96.639704, -90.140061},
	"KS": {-102.051744, -94.588413}, "KY": {-89.571510, -81.964971}, "LA": {-94.043147, -88.817017},
	"ME": {-71.083924, -66.949895}, "MD": {-79.487651, -75.048939}, "MA": {-73.508142, -69.928393},
	"MI": {-90.418136, -82.413474}, "MN": {-97.239209, -89.483385}, "MS": {-91.655009, -88.097892},
	"MO": {-95.774704, -89.098843}, "MT": {-116.050002, -104.039138}, "NE": {-104.053514, -95.308290},
	"NV": {-120.005746, -114.039648}, "NH": {-72.557247, -70.610621}, "NJ": {-75.559614, -73.893979},
	"NM": {-109.050173, -103.001964}, "NY": {-79.762152, -71.856214}, "NC": {-84.321869, -75.460621},
	"ND": {-104.048900, -96.554507}, "OH": {-84.820159, -80.518693}, "OK": {-103.002455, -94.430662},
	"OR": {-124.566244, -116.463262}, "PA": {-80.519891, -74.689516}, "RI": {-71.886819, -71.120557},
	"SC": {-83.353910, -78.541138}, "SD": {-104.057698, -96.436589}, "TN": {-90.310298, -81.646900},
	"TX": {-106.645646, -93.508292}, "UT": {-114.052998, -109.041058}, "VT": {-73.437740, -71.464555},
	"VA": {-83.675395, -75.242266}, "WA": {-124.763068, -116.915989}, "WV": {-82.644739, -77.719519},
	"WI": {-92.889433, -86.763983}, "WY": {-111.056888, -104.052160}, "DC": {-77.119759, -76.909393},
	"PR": {-67.945404, -65.220703}, "VI": {-65.013029, -64.564907}, "GU": {144.618068, 144.956706},
	"AS": {-170.841600, -169.406622}, "MP": {145.128345, 145.853700},
}

// zipPrefixRange maps an inclusive range of 3-digit ZIP prefixes to a state.
type zipPrefixRange struct {
	Lo, Hi string
	State  string
}

// zipPrefixRanges is the USPS 3-digit prefix table used to infer a state from
// a ZIP code. Gaps between ranges are unassigned prefixes.
var zipPrefixRanges = []zipPrefixRange{
	{"006", "007", "PR"}, {"008", "008", "VI"}, {"009", "009", "PR"},
	{"010", "027", "MA"}, {"028", "029", "RI"}, {"030", "038", "NH"},
	{"039", "049", "ME"}, {"050", "054", "VT"}, {"056", "059", "VT"},
	{"060", "069", "CT"}, {"070", "089", "NJ"}, {"100", "149", "NY"},
	{"150", "191", "PA"}, {"193", "196", "PA"}, {"197", "199", "DE"},
	{"200", "205", "DC"}, {"206", "212", "MD"}, {"214", "219", "MD"},
	{"220", "246", "VA"}, {"247", "268", "WV"}, {"270", "289", "NC"},
	{"290", "299", "SC"}, {"300", "319", "GA"}, {"320", "342", "FL"},
	{"344", "344", "FL"}, {"346", "347", "FL"}, {"349", "349", "FL"},
	{"350", "369", "AL"}, {"370", "385", "TN"}, {"386", "397", "MS"},
	{"400", "418", "KY"}, {"420", "427", "KY"}, {"430", "458", "OH"},
	{"460", "479", "IN"}, {"480", "499", "MI"}, {"500", "508", "IA"},
	{"510", "516", "IA"}, {"520", "528", "IA"}, {"530", "535", "WI"},
	{"537", "549", "WI"}, {"550", "551", "MN"}, {"553", "567", "MN"},
	{"570", "577", "SD"}, {"580", "588", "ND"}, {"590", "599", "MT"},
	{"600", "629", "IL"}, {"630", "631", "MO"}, {"633", "641", "MO"},
	{"644", "658", "MO"}, {"660", "662", "KS"}, {"664", "679", "KS"},
	{"680", "681", "NE"}, {"683", "693", "NE"}, {"700", "701", "LA"},
	{"703", "708", "LA"}, {"710", "714", "LA"}, {"716", "729", "AR"},
	{"730", "731", "OK"}, {"734", "741", "OK"}, {"743", "749", "OK"},
	{"750", "799", "TX"}, {"800", "816", "CO"}, {"820", "831", "WY"},
	{"832", "838", "ID"}, {"840", "847", "UT"}, {"850", "857", "AZ"},
	{"859", "860", "AZ"}, {"863", "865", "AZ"}, {"870", "875", "NM"},
	{"877", "884", "NM"}, {"889", "891", "NV"}, {"893", "895", "NV"},
	{"897", "898", "NV"}, {"900", "908", "CA"}, {"910", "928", "CA"},
	{"930", "961", "CA"}, {"967", "968", "HI"}, {"969", "969", "GU"},
	{"970", "975", "OR"}, {"977", "979", "OR"}, {"980", "986", "WA"},
	{"988", "994", "WA"}, {"995", "999", "AK"},
}

// zipFormatRe matches a 5-digit or ZIP+4 code.
var zipFormatRe = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// StateFromZip infers a state abbreviation from the 3-digit ZIP prefix.
// Returns "" when the ZIP is malformed or the prefix is unassigned.
func StateFromZip(zip string) string {
	if !zipFormatRe.MatchString(zip) {
		return ""
	}
	prefix := zip[:3]
	for _, r := range zipPrefixRanges {
		if prefix >= r.Lo && prefix <= r.Hi {
			return r.State
		}
	}
	return ""
}

// Street ending vocabulary. Longer forms sort before their abbreviations so
// alternation prefers the full word.
const (
	multiWordEndings = `US Highway|US Hwy|Private Road|County Road|County Rd|Co Rd|State Route|` +
		`Farm to Market|County Hwy \d+|County FM \d+|FM Road \d+|` +
		`Fire District \d+ Rd|State Hwy \d+|Kamehameha Hwy|Mamalahoa Hwy|` +
		`Route C-\d+|Route [A-Z]{2}|[A-Z]{2} Road|RS \d+|KY RS \d+|` +
		`Loop \d+(?: (?:N|S|E|W|NE|NW|SE|SW))?`
	singleWordEndings = `Alley|Aly|Avenue|Ave|Av|Boulevard|Blvd|Circle|Cir|Cr|` +
		`Court|Ct|Drive|Dr|Expressway|Expy|Lane|Ln|Loop|` +
		`Parkway|Pkwy|Place|Pl|Road|Rd|Square|Sq|Street|St|` +
		`Terrace|Ter|Trail|Trl|Way|Wy|Shores|Creek|Crk`
	streetEndings = `(?:` + multiWordEndings + `|` + singleWordEndings + `)`

	stateNames = `Alabama|Alaska|Arizona|Arkansas|California|Colorado|Connecticut|Delaware|` +
		`Florida|Georgia|Hawaii|Idaho|Illinois|Indiana|Iowa|Kansas|Kentucky|Louisiana|` +
		`Maine|Maryland|Massachusetts|Michigan|Minnesota|Mississippi|Missouri|Montana|` +
		`Nebraska|Nevada|New\sHampshire|New\sJersey|New\sMexico|New\sYork|` +
		`North\sCarolina|North\sDakota|Ohio|Oklahoma|Oregon|Pennsylvania|Rhode\sIsland|` +
		`South\sCarolina|South\sDakota|Tennessee|Texas|Utah|Vermont|Virginia|Washington|` +
		`West\sVirginia|Wisconsin|Wyoming|District\sof\sColumbia|Puerto\sRico|` +
		`Virgin\sIslands|Guam|American\sSamoa|Northern\sMariana\sIslands`
	stateAbbrevs = `AL|AK|AZ|AR|CA|CO|CT|DE|FL|GA|HI|ID|IL|IN|IA|KS|KY|LA|ME|MD|MA|MI|MN|MS|` +
		`MO|MT|NE|NV|NH|NJ|NM|NY|NC|ND|OH|OK|OR|PA|RI|SC|SD|TN|TX|UT|VT|VA|WA|WV|WI|WY|` +
		`DC|PR|VI|GU|AS|MP`
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Characters stripped silently from addresses before validation.
	forbiddenStripRe = regexp.MustCompile("[@$%*=<>|^~`\\\\\\[\\]{}()+\".;,]|[^\\w\\s.#&!/'\"]")

	// Characters never allowed to survive in address-family fields.
	forbiddenCharRe = regexp.MustCompile(`[!@#$%^&*()+={}[\]|"?:;<,>]`)

	nonAddressRe    = regexp.MustCompile(`(?i)\b(TBD|N/A|UNKNOWN)\b|\d{3}-\d{3}-\d{4}`)
	prInfixRe       = regexp.MustCompile(`(?i)\s+PR\s+`)
	farmToMarketRe  = regexp.MustCompile(`(?i)\bFarm\s*to\s*Market(?:\s*(?:Road|Rd))?\b`)
	countyRoadRe    = regexp.MustCompile(`(?i)\bCounty\s+(?:Road|Rd)\b`)
	privateRoadRe   = regexp.MustCompile(`(?i)\bPrivate\s+Road\b`)
	poBoxRe         = regexp.MustCompile(`(?i)\b(?:PO Box|P\.O\. Box|Post Office Box|P\s*O\s*Box|POBox|P\.O\.Box)\b`)
	ruralRouteRe    = regexp.MustCompile(`(?i)\bRR \d+ Box \d+\b|\bRural Route \d+ Box \d+\b|\bR\.R\. \d+ Box \d+\b|\bHC \d+ Box \d+\b`)
	leadingNumberRe = regexp.MustCompile(`(?i)^(?:(N|S|E|W|NE|NW|SE|SW)\s?)?[0-9]+[A-Z]?`)
	streetNameRe    = regexp.MustCompile(`(?i)^(?:(N|S|E|W|NE|NW|SE|SW)\s?)?\d+[A-Z]?\s+[\w\s'-]+`)

	// specificRoadRe recognizes numbered highways, county roads, state routes
	// and named state highway forms that carry no standard street suffix.
	specificRoadRe = regexp.MustCompile(`(?i)(?:\d+\s+)?(?:County\s*(?:Road|Rd|CR)|Private\s*Road|Us\s*Hwy|Hwy\s*\d+|` +
		`Highway\s*\d+|Farm\s*to\s*Market|Farm\s*Road|Farm\s*to\s*Market\s*Road|` +
		`FM\s*Rd|FM\s+\d+|State\s*(?:Road|Rd|Route)|Old\s*State\s*(?:Road|Rd)|` +
		`\b(?:FM|CR|SH|TX|HWY|US)-\d+\b|` +
		`(?:` + stateAbbrevs + `)-\d+|` +
		`(?:` + stateNames + `)\s*(?:Hwy|Highway|Route|Rte|Rt)\s*\d+)` +
		`\s*(?:\d+\s*(?:North|South|East|West|Northeast|Northwest|Southeast|Southwest|N|S|E|W|NE|NW|SE|SW)\b)?\b`)

	streetEndingRe      = regexp.MustCompile(`(?i)\s` + streetEndings + `\b`)
	compassPairRe       = regexp.MustCompile(`(?i)\b(?:N|NE|E|SE|S|SW|W|NW)\s+\d+\s+(?:N|NE|E|SE|S|SW|W|NW)\b$`)
	numberNumCompassRe  = regexp.MustCompile(`(?i)\b\d+\s+\d+\s+(?:N|NE|E|SE|S|SW|W|NW)\b$`)
	permittedExtRe      = regexp.MustCompile(`(?i)^(?:` +
		`\b(?:N|S|E|W|NE|NW|SE|SW|North|South|East|West|Northeast|Northwest|Southeast|Southwest)\b` +
		`|(?:US|STATE)\s+(?:HWY|HIGHWAY|ROUTE|RT)\s+\d+` +
		`|(?:US|STATE)\s+(?:HWY|HIGHWAY|ROUTE|RT)\s+\d+\s+(?:N|S|E|W|NE|NW|SE|SW|North|South|East|West|Northeast|Northwest|Southeast|Southwest)` +
		`|\d+\s+(?:N|S|E|W|NE|NW|SE|SW|North|South|East|West|Northeast|Northwest|Southeast|Southwest)` +
		`|\d+` +
		`)(?:\s+(?:N|S|E|W|NE|NW|SE|SW|North|South|East|West|Northeast|Northwest|Southeast|Southwest))?$`)
	nonStandardEndingRe = regexp.MustCompile(`(?i)(?:^|\s)(Apt|Apartment|Suite|Ste|Unit|Room|Rm|Floor|Fl|Building|Bldg|Dept|Ofc|Lot|Slip|Space|Hangar|Box)(?:\s*[A-Z0-9][\w\-]*)?\s*$|(?:^|\s)(#|@)[\w\-]+\s*$`)

	zipNineDigitRe = regexp.MustCompile(`^\d{9}$`)

	// unitDesignatorRe matches unit tokens a verification service may append
	// to a delivery line.
	unitDesignatorRe = regexp.MustCompile(`(?i)(?:\.\s*)?(?:#|SPC|SPACE|APT|APARTMENT|UNIT|SUITE|STE|ROOM|RM|FLOOR|FL|OFFICE|OFC|DEPT|DEPARTMENT|BLDG|BUILDING)\s*[A-Z0-9]+(?:\s+[A-Z0-9]+)*\s*$`)
)

// compassConversion rewrites a full compass word to its abbreviation.
type compassConversion struct {
	re   *regexp.Regexp
	abbr string
}

// compassConversions run in order; the cardinal words go first and cannot
// touch the intercardinal forms because of the word boundaries.
var compassConversions = []compassConversion{
	{regexp.MustCompile(`(?i)\bNORTH\b`), "N"},
	{regexp.MustCompile(`(?i)\bSOUTH\b`), "S"},
	{regexp.MustCompile(`(?i)\bEAST\b`), "E"},
	{regexp.MustCompile(`(?i)\bWEST\b`), "W"},
	{regexp.MustCompile(`(?i)\bNORTHEAST\b`), "NE"},
	{regexp.MustCompile(`(?i)\bNORTHWEST\b`), "NW"},
	{regexp.MustCompile(`(?i)\bSOUTHEAST\b`), "SE"},
	{regexp.MustCompile(`(?i)\bSOUTHWEST\b`), "SW"},
}

// normalizeCompassDirections converts full compass words to single letters.
func normalizeCompassDirections(address string) string {
	if address == "" {
		return address
	}
	for _, c := range compassConversions {
		address = c.re.ReplaceAllString(address, c.abbr)
	}
	return address
}
