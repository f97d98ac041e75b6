package carrier

import (
	"regexp"
	"strings"
)

type ID string

const (
	Unknown     ID = "UNKNOWN"
	Delhivery   ID = "DELHIVERY"
	BlueDart    ID = "BLUEDART"
	DTDC        ID = "DTDC"
	EcomExpress ID = "ECOM_EXPRESS"
	Xpressbees  ID = "XPRESSBEES"
	Shadowfax   ID = "SHADOWFAX"
	Ekart       ID = "EKART"
	IndiaPost   ID = "INDIA_POST"
	DHL         ID = "DHL"
	FedEx       ID = "FEDEX"
)

type pattern struct {
	id ID
	re *regexp.Regexp
}

// namePatterns are tried in order against the free-text carrier name.
var namePatterns = []pattern{
	{id: Delhivery, re: regexp.MustCompile(`(?i)delhivery`)},
	{id: BlueDart, re: regexp.MustCompile(`(?i)blue\s*dart`)},
	{id: DTDC, re: regexp.MustCompile(`(?i)\bdtdc\b`)},
	{id: EcomExpress, re: regexp.MustCompile(`(?i)ecom\s*express`)},
	{id: Xpressbees, re: regexp.MustCompile(`(?i)xpress\s*bees`)},
	{id: Shadowfax, re: regexp.MustCompile(`(?i)shadow\s*fax`)},
	{id: Ekart, re: regexp.MustCompile(`(?i)e-?kart`)},
	{id: IndiaPost, re: regexp.MustCompile(`(?i)india\s*post|speed\s*post`)},
	{id: DHL, re: regexp.MustCompile(`(?i)\bdhl\b`)},
	{id: FedEx, re: regexp.MustCompile(`(?i)fed\s*ex`)},
}

// numberPatterns encode the tracking number conventions of each carrier.
// Earlier entries are more specific.
var numberPatterns = []pattern{
	{id: IndiaPost, re: regexp.MustCompile(`^[A-Z]{2}\d{9}IN$`)},
	{id: Ekart, re: regexp.MustCompile(`^(FMPP|FMPC|MYNT?)[A-Z0-9]+$`)},
	{id: Shadowfax, re: regexp.MustCompile(`^SF\d{9,12}[A-Z]{0,3}$`)},
	{id: DTDC, re: regexp.MustCompile(`^[A-Z]\d{8}$`)},
	{id: BlueDart, re: regexp.MustCompile(`^\d{11}$`)},
	{id: Xpressbees, re: regexp.MustCompile(`^\d{15}$`)},
	{id: Delhivery, re: regexp.MustCompile(`^\d{13,14}$`)},
}

// DetectCarrier identifies the carrier from its display name, falling back to
// the shape of the tracking number.
func DetectCarrier(companyName, trackingNumber string) ID {
	if name := strings.TrimSpace(companyName); name != "" {
		for _, p := range namePatterns {
			if p.re.MatchString(name) {
				return p.id
			}
		}
	}

	number := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(trackingNumber), " ", ""))
	if number == "" {
		return Unknown
	}
	for _, p := range numberPatterns {
		if p.re.MatchString(number) {
			return p.id
		}
	}
	return Unknown
}
