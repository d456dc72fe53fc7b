package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

var unavailableCodes = map[string]struct{}{
	"AuthFailure":           {},
	"UnauthorizedOperation": {},
	"RequestExpired":        {},
	"RequestLimitExceeded":  {},
	"ServiceUnavailable":    {},
	"Unavailable":           {},
	"InternalError":         {},
	"InternalFailure":       {},
}

// classify maps an AWS error onto the domain taxonomy. Errors that never
// reached the API, and API errors about auth, throttling or service health,
// mean the provider is unavailable. Everything else is a rejection.
func classify(op string, err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrProviderUnavailable, err)
	}

	code := apiErr.ErrorCode()
	if _, ok := unavailableCodes[code]; ok || strings.HasPrefix(code, "Throttling") {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrProviderUnavailable, code)
	}
	return &domain.ProviderRejectedError{Reason: reason(apiErr)}
}

func reason(apiErr smithy.APIError) string {
	if msg := apiErr.ErrorMessage(); msg != "" {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), msg)
	}
	return apiErr.ErrorCode()
}
