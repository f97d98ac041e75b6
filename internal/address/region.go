package address

import "strings"

// regionCodes maps Indian state and union territory names to the two-letter
// province codes the commerce platform accepts.
var regionCodes = map[string]string{
	"andaman and nicobar islands":              "AN",
	"andhra pradesh":                           "AP",
	"arunachal pradesh":                        "AR",
	"assam":                                    "AS",
	"bihar":                                    "BR",
	"chandigarh":                               "CH",
	"chhattisgarh":                             "CG",
	"dadra and nagar haveli":                   "DN",
	"dadra and nagar haveli and daman and diu": "DN",
	"daman and diu":                            "DD",
	"delhi":                                    "DL",
	"nct of delhi":                             "DL",
	"goa":                                      "GA",
	"gujarat":                                  "GJ",
	"haryana":                                  "HR",
	"himachal pradesh":                         "HP",
	"jammu and kashmir":                        "JK",
	"jharkhand":                                "JH",
	"karnataka":                                "KA",
	"kerala":                                   "KL",
	"ladakh":                                   "LA",
	"lakshadweep":                              "LD",
	"madhya pradesh":                           "MP",
	"maharashtra":                              "MH",
	"manipur":                                  "MN",
	"meghalaya":                                "ML",
	"mizoram":                                  "MZ",
	"nagaland":                                 "NL",
	"odisha":                                   "OR",
	"orissa":                                   "OR",
	"puducherry":                               "PY",
	"pondicherry":                              "PY",
	"punjab":                                   "PB",
	"rajasthan":                                "RJ",
	"sikkim":                                   "SK",
	"tamil nadu":                               "TN",
	"telangana":                                "TS",
	"tripura":                                  "TR",
	"uttar pradesh":                            "UP",
	"uttarakhand":                              "UK",
	"uttaranchal":                              "UK",
	"west bengal":                              "WB",
}

// RegionCode returns the platform code for a region name, or "" when the
// name is not in the table.
func RegionCode(name string) string {
	key := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	key = strings.ReplaceAll(key, "&", "and")
	return regionCodes[key]
}
