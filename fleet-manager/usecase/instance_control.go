package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

type InstanceController struct {
	power  domain.PowerSwitch
	logger *slog.Logger
}

func NewInstanceController(power domain.PowerSwitch, logger *slog.Logger) *InstanceController {
	if logger == nil {
		logger = slog.Default()
	}
	return &InstanceController{
		power:  power,
		logger: logger,
	}
}

// SetPower asks the provider to start or stop an instance and returns once
// the request is accepted. It does not wait for the transition, and requests
// that look redundant are still forwarded.
func (c *InstanceController) SetPower(ctx context.Context, instanceID string, action domain.Action) error {
	if !action.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidAction, action)
	}

	if err := c.power.ChangePowerState(ctx, instanceID, action); err != nil {
		c.logger.Warn("power change failed",
			slog.String("instance_id", instanceID),
			slog.String("action", string(action)),
			slog.Any("error", err),
		)
		return providerError(err)
	}

	c.logger.Info("power change accepted",
		slog.String("instance_id", instanceID),
		slog.String("action", string(action)),
	)
	return nil
}

// providerError keeps classified provider errors as they are and treats
// anything else as a rejection.
func providerError(err error) error {
	switch {
	case errors.Is(err, domain.ErrProviderUnavailable),
		errors.Is(err, domain.ErrProviderRejected),
		errors.Is(err, domain.ErrInstanceNotFound):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	default:
		return &domain.ProviderRejectedError{Reason: err.Error()}
	}
}
