package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	logx "cadence/pkg/logx"
)

const (
	OpStart   = "start"
	OpStop    = "stop"
	OpRestart = "restart"
	// OpRecover starts the unit only when it is not active.
	OpRecover = "recover"
)

// UnitController is the part of a systemd D-Bus connection used by systemd actions.
type UnitController interface {
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
	ActiveState(ctx context.Context, unit string) (string, error)
	Close()
}

// UnitDialer opens a UnitController. Each run dials and closes its own
// connection, so payloads hold nothing between ticks.
type UnitDialer func(ctx context.Context) (UnitController, error)

// WithUnitDialer replaces the system bus dialer.
func WithUnitDialer(d UnitDialer) FactoryOption {
	return func(f *Factory) { f.dialUnits = d }
}

func unitName(u string) string {
	u = strings.TrimSpace(u)
	if u != "" && !strings.Contains(u, ".") {
		u += ".service"
	}
	return u
}

func validateSystemd(spec Spec) error {
	if strings.TrimSpace(spec.Unit) == "" {
		return errors.New("unit required")
	}
	switch normalizeOp(spec.Operation) {
	case OpStart, OpStop, OpRestart, OpRecover:
		return nil
	default:
		return fmt.Errorf("unknown systemd operation %q", spec.Operation)
	}
}

func normalizeOp(op string) string {
	op = strings.ToLower(strings.TrimSpace(op))
	if op == "" {
		return OpRecover
	}
	return op
}

func systemdRunner(log logx.Logger, dial UnitDialer, spec Spec) func() error {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	unit := unitName(spec.Unit)
	op := normalizeOp(spec.Operation)

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		uc, err := dial(ctx)
		if err != nil {
			return fmt.Errorf("systemd connect: %w", err)
		}
		defer uc.Close()

		switch op {
		case OpStart:
			err = uc.Start(ctx, unit)
		case OpStop:
			err = uc.Stop(ctx, unit)
		case OpRestart:
			err = uc.Restart(ctx, unit)
		case OpRecover:
			var state string
			state, err = uc.ActiveState(ctx, unit)
			if err != nil || state == "active" || state == "activating" || state == "reloading" {
				break
			}
			log.Warn("unit not active; starting", logx.String("unit", unit), logx.String("state", state))
			err = uc.Start(ctx, unit)
		}
		if err != nil {
			return fmt.Errorf("systemd %s %s: %w", op, unit, err)
		}
		return nil
	}
}
