package guard

import (
	"strings"

	"github.com/agrilink/storefront/internal/client"
)

type requiredField struct {
	name  string
	value func(*client.Profile) string
}

var farmerFields = []requiredField{
	{"fullName", func(p *client.Profile) string { return p.FullName }},
	{"phone", func(p *client.Profile) string { return p.Phone }},
	{"farmName", func(p *client.Profile) string { return p.FarmName }},
	{"farmLocation", func(p *client.Profile) string {
		if p.FarmLocation != "" {
			return p.FarmLocation
		}
		return p.Address
	}},
	{"pincode", func(p *client.Profile) string { return p.Pincode }},
	{"aadhaarNumber", func(p *client.Profile) string { return p.AadhaarNumber }},
}

var customerFields = []requiredField{
	{"fullName", func(p *client.Profile) string { return p.FullName }},
	{"phone", func(p *client.Profile) string { return p.Phone }},
}

// MissingFields lists the onboarding fields of p that are still blank.
func MissingFields(kind client.ProfileKind, p *client.Profile) []string {
	var fields []requiredField
	switch kind {
	case client.ProfileFarmer:
		fields = farmerFields
	case client.ProfileCustomer:
		fields = customerFields
	default:
		return nil
	}

	var missing []string
	for _, f := range fields {
		if p == nil || strings.TrimSpace(f.value(p)) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// IsComplete reports whether every onboarding field of p is filled.
func IsComplete(kind client.ProfileKind, p *client.Profile) bool {
	return len(MissingFields(kind, p)) == 0
}
