package address_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/storefront-checkout/internal/address"
	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
)

func TestRegionCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "maharashtra", in: "Maharashtra", want: "MH"},
		{name: "case_and_spacing", in: "  tamil   NADU ", want: "TN"},
		{name: "ampersand", in: "Jammu & Kashmir", want: "JK"},
		{name: "legacy_name", in: "Orissa", want: "OR"},
		{name: "unknown", in: "Atlantis", want: ""},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, address.RegionCode(tt.in))
		})
	}
}

func validAddress() address.Address {
	return address.Address{
		FirstName:  "Asha",
		LastName:   "Rao",
		Address1:   "12 MG Road",
		City:       "Pune",
		Region:     "Maharashtra",
		PostalCode: "411001",
		Country:    "India",
		Phone:      "+919800000000",
	}
}

func TestAddress_Validate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(a *address.Address)
		wantFields []string
	}{
		{name: "valid", mutate: func(a *address.Address) {}},
		{name: "india_five_digits", mutate: func(a *address.Address) { a.PostalCode = "41100" }, wantFields: []string{"postal_code"}},
		{name: "india_letters", mutate: func(a *address.Address) { a.PostalCode = "41100A" }, wantFields: []string{"postal_code"}},
		{name: "other_country_free_form", mutate: func(a *address.Address) { a.Country = "United Kingdom"; a.PostalCode = "SW1A 1AA" }},
		{name: "missing_required", mutate: func(a *address.Address) { a.FirstName = ""; a.City = "" }, wantFields: []string{"first_name", "city"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAddress()
			tt.mutate(&a)

			err := a.Validate()
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindValidation))
			var appErr *apperror.Error
			require.ErrorAs(t, err, &appErr)
			assert.ElementsMatch(t, tt.wantFields, appErr.Fields)
		})
	}
}

func TestAddress_Normalized(t *testing.T) {
	a := validAddress()
	a.City = "  Pune "
	a.RegionCode = ""

	got := a.Normalized()
	assert.Equal(t, "Pune", got.City)
	assert.Equal(t, "MH", got.RegionCode)
}

func TestPostalLookup_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pincode/411001":
			_, _ = w.Write([]byte(`[{"Message":"Number of pincode(s) found:1","Status":"Success","PostOffice":[{"Name":"Pune City","District":"Pune","State":"Maharashtra","Country":"India"}]}]`))
		case "/pincode/999999":
			_, _ = w.Write([]byte(`[{"Message":"No records found","Status":"Error","PostOffice":null}]`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	lookup := address.NewPostalLookup(srv.URL, srv.Client())
	ctx := context.Background()

	got, err := lookup.Lookup(ctx, "411001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, address.Suggestion{PostalCode: "411001", City: "Pune", Region: "Maharashtra", RegionCode: "MH", Country: "India"}, *got)

	got, err = lookup.Lookup(ctx, "999999")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = lookup.Lookup(ctx, "123456")
	require.NoError(t, err, "upstream failure is not fatal")
	assert.Nil(t, got)

	_, err = lookup.Lookup(ctx, "12345")
	assert.Error(t, err)
}
