//go:build !linux

package action

import (
	"context"
	"errors"
)

func dialSystemBus(context.Context) (UnitController, error) {
	return nil, errors.New("systemd actions are only supported on linux")
}
