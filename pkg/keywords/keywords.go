// Package keywords is the built-in keyword library shipped with the agent:
// calculator, string and demo keywords. RegisterAll is the loader that
// populates a registry with all of them.
package keywords

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/petrijr/keycase/pkg/keyword"
)

// RegisterAll adds every keyword in this package to reg. It does not freeze
// the registry, so callers can add their own keywords afterwards.
func RegisterAll(reg *keyword.Registry) error {
	var errs []error
	for _, register := range []func(*keyword.Registry) error{
		registerCalculator,
		registerStrings,
		registerAdvanced,
		registerPostman,
	} {
		if err := register(reg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// parseNumber parses a decimal param value.
func parseNumber(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", name, v)
	}
	return f, nil
}

// formatNumber renders f without a trailing ".0", so 5+3 yields "8".
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func numbers(in keyword.Values, a, b string) (float64, float64, error) {
	x, err := parseNumber(a, in[a])
	if err != nil {
		return 0, 0, err
	}
	y, err := parseNumber(b, in[b])
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
