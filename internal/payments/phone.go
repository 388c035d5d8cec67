package payments

import (
	"errors"
	"strings"
)

var (
	ErrInvalidPhoneNumber  = errors.New("invalid phone number format")
	ErrUnsupportedProvider = errors.New("phone number not supported by any mobile money provider")
)

const countryCode = "250"

// Recognized Rwandan mobile prefixes per provider, in selection priority
// order: when a number matches more than one table the first provider wins.
var providerPrefixes = []struct {
	name     string
	prefixes []string
}{
	{ProviderMTN, []string{"788", "789", "782", "783"}},
	{ProviderAirtel, []string{"728", "729", "738", "739"}},
}

// NormalizePhone reduces a raw phone number to full international form.
// Local numbers, with or without the trunk zero, are assumed Rwandan and
// get the country code prepended; any other length is rejected.
func NormalizePhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	switch {
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:], nil
	case len(digits) == 9:
		return countryCode + digits, nil
	case len(digits) == 12 && strings.HasPrefix(digits, countryCode):
		return digits, nil
	default:
		return "", ErrInvalidPhoneNumber
	}
}

// ClassifyProvider picks the provider for a normalized number by its prefix
// after the country code.
func ClassifyProvider(msisdn string) (string, error) {
	if len(msisdn) != 12 {
		return "", ErrInvalidPhoneNumber
	}
	prefix := msisdn[3:6]

	for _, entry := range providerPrefixes {
		for _, p := range entry.prefixes {
			if p == prefix {
				return entry.name, nil
			}
		}
	}

	return "", ErrUnsupportedProvider
}

// AvailableProviders lists every provider whose prefix table matches the
// number, in priority order.
func AvailableProviders(raw string) []string {
	msisdn, err := NormalizePhone(raw)
	if err != nil {
		return nil
	}
	prefix := msisdn[3:6]

	var names []string
	for _, entry := range providerPrefixes {
		for _, p := range entry.prefixes {
			if p == prefix {
				names = append(names, entry.name)
				break
			}
		}
	}
	return names
}
