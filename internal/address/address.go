package address

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
)

const CountryIndia = "India"

var indiaPostalCode = regexp.MustCompile(`^\d{6}$`)

type Address struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name"`
	Address1   string `json:"address1" validate:"required"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city" validate:"required"`
	Region     string `json:"region"`
	RegionCode string `json:"region_code,omitempty"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Phone      string `json:"phone,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// IsIndia accepts the common spellings platforms use for the country.
func (a Address) IsIndia() bool {
	switch strings.ToUpper(strings.TrimSpace(a.Country)) {
	case "INDIA", "IN", "IND":
		return true
	}
	return false
}

// Validate checks required fields and, for Indian addresses, that the postal
// code is exactly six digits.
func (a Address) Validate() error {
	fields := make([]string, 0)

	if err := validate.Struct(a); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range validationErrors {
				fields = append(fields, fe.Field())
			}
		} else {
			return err
		}
	}

	if a.IsIndia() && a.PostalCode != "" && !indiaPostalCode.MatchString(strings.TrimSpace(a.PostalCode)) {
		fields = append(fields, "postal_code")
	}

	if len(fields) > 0 {
		return apperror.Validation("address.validate", fields...)
	}
	return nil
}

// Normalized trims every field and fills RegionCode from Region when known.
func (a Address) Normalized() Address {
	out := Address{
		FirstName:  strings.TrimSpace(a.FirstName),
		LastName:   strings.TrimSpace(a.LastName),
		Address1:   strings.TrimSpace(a.Address1),
		Address2:   strings.TrimSpace(a.Address2),
		City:       strings.TrimSpace(a.City),
		Region:     strings.TrimSpace(a.Region),
		RegionCode: strings.TrimSpace(a.RegionCode),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
		Phone:      strings.TrimSpace(a.Phone),
	}
	if out.RegionCode == "" {
		out.RegionCode = RegionCode(out.Region)
	}
	return out
}

// ValidIndiaPostalCode reports whether code has the six-digit Indian format.
func ValidIndiaPostalCode(code string) bool {
	return indiaPostalCode.MatchString(code)
}
