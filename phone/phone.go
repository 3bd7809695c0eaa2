// ABOUTME: Phone number normalization to canonical E.164
// ABOUTME: Wraps libphonenumber parsing with a per-cell default region fallback
package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegionCode is used when a cell has no parseable phone number of its own.
const DefaultRegionCode = "US"

// ErrInvalidPhone marks a raw value that cannot be turned into a valid E.164 number.
var ErrInvalidPhone = errors.New("invalid phone number")

// Normalize converts raw into canonical E.164 form ("+15149791879").
// region is only consulted for numbers written without a country code.
// Every failure is reported as an error wrapping ErrInvalidPhone.
func Normalize(raw, region string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidPhone)
	}

	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegionCode
	}

	num, err := phonenumbers.Parse(value, region)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidPhone, value, err)
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %q is not a valid number", ErrInvalidPhone, value)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// RegionOf returns the ISO 3166 region of a number, or "" when it cannot be determined.
func RegionOf(number string) string {
	value := strings.TrimSpace(number)
	if value == "" {
		return ""
	}

	num, err := phonenumbers.Parse(value, DefaultRegionCode)
	if err != nil {
		return ""
	}

	region := phonenumbers.GetRegionCodeForNumber(num)
	if region == "" || region == "ZZ" {
		return ""
	}
	return region
}

// DefaultRegion derives the parsing hint for a cell from its own phone number.
func DefaultRegion(cellPhone *string) string {
	if cellPhone == nil {
		return DefaultRegionCode
	}
	if region := RegionOf(*cellPhone); region != "" {
		return region
	}
	return DefaultRegionCode
}
