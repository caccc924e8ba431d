//go:build linux

package action

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

type dbusUnits struct {
	conn *dbus.Conn
}

func dialSystemBus(ctx context.Context) (UnitController, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	return &dbusUnits{conn: conn}, nil
}

// wait blocks until systemd reports the job result.
func wait(ctx context.Context, ch <-chan string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res != "done" {
			return fmt.Errorf("job %s", res)
		}
		return nil
	}
}

func (u *dbusUnits) Start(ctx context.Context, unit string) error {
	ch := make(chan string, 1)
	if _, err := u.conn.StartUnitContext(ctx, unit, "replace", ch); err != nil {
		return err
	}
	return wait(ctx, ch)
}

func (u *dbusUnits) Stop(ctx context.Context, unit string) error {
	ch := make(chan string, 1)
	if _, err := u.conn.StopUnitContext(ctx, unit, "replace", ch); err != nil {
		return err
	}
	return wait(ctx, ch)
}

func (u *dbusUnits) Restart(ctx context.Context, unit string) error {
	ch := make(chan string, 1)
	if _, err := u.conn.RestartUnitContext(ctx, unit, "replace", ch); err != nil {
		return err
	}
	return wait(ctx, ch)
}

func (u *dbusUnits) ActiveState(ctx context.Context, unit string) (string, error) {
	units, err := u.conn.ListUnitsByNamesContext(ctx, []string{unit})
	if err != nil {
		return "", err
	}
	if len(units) == 0 || units[0].LoadState == "not-found" {
		return "", fmt.Errorf("unit %s not found", unit)
	}
	return units[0].ActiveState, nil
}

func (u *dbusUnits) Close() { u.conn.Close() }
