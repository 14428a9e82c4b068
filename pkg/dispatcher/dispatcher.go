package dispatcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/homehub/devicehub/pkg/log"
	"github.com/homehub/devicehub/pkg/sentinel"
)

// Dispatcher is the single entry point an external control surface calls
// into. It never talks to a socket or an HTTP request directly.
type Dispatcher struct {
	registry Registry
	macros   MacroRunner
	disabled atomic.Bool
	logger   log.Logger
}

// New builds a Dispatcher over registry and macros. logger may be nil.
func New(registry Registry, macros MacroRunner, logger log.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, macros: macros, logger: logger}
}

// IsDisabled reports the current kill-switch state.
func (d *Dispatcher) IsDisabled() bool { return d.disabled.Load() }

// ToggleDisabled flips the kill switch and returns the new state. It is
// exempt from the disabled check itself, as is ListDevices.
func (d *Dispatcher) ToggleDisabled() bool {
	for {
		old := d.disabled.Load()
		newState := !old
		if d.disabled.CompareAndSwap(old, newState) {
			d.logState(stateName(old), stateName(newState), "toggled by operator")
			return newState
		}
	}
}

// ListDevices returns the currently registered device ids. Exempt from
// the disabled check.
func (d *Dispatcher) ListDevices() []string {
	return d.registry.IDs()
}

// SendCommand sends command to deviceID's session and returns its result,
// or NO_DEVICE_FOUND if deviceID has no registered session, or DISABLED
// if the kill switch is set.
func (d *Dispatcher) SendCommand(ctx context.Context, deviceID, command string) (string, error) {
	if d.disabled.Load() {
		d.logRefused(deviceID, "sendCommand")
		return string(sentinel.Disabled), nil
	}
	session, ok := d.registry.Get(deviceID)
	if !ok {
		return string(sentinel.NoDeviceFound), nil
	}
	return session.SendCommand(ctx, command)
}

// GetUnsolicited waits for deviceID's next unsolicited line, or returns
// NO_DEVICE_FOUND / DISABLED as above.
func (d *Dispatcher) GetUnsolicited(ctx context.Context, deviceID string) (string, error) {
	if d.disabled.Load() {
		d.logRefused(deviceID, "getUnsolicited")
		return string(sentinel.Disabled), nil
	}
	session, ok := d.registry.Get(deviceID)
	if !ok {
		return string(sentinel.NoDeviceFound), nil
	}
	return session.GetUnsolicited(ctx)
}

// RunMacro runs the named macro, or returns DISABLED if the kill switch
// is set.
func (d *Dispatcher) RunMacro(ctx context.Context, name string) (string, error) {
	if d.disabled.Load() {
		d.logRefused("", "runMacro("+name+")")
		return string(sentinel.Disabled), nil
	}
	return d.macros.RunMacro(ctx, name)
}

func stateName(disabled bool) string {
	if disabled {
		return "DISABLED"
	}
	return "ENABLED"
}

func (d *Dispatcher) logState(oldState, newState, reason string) {
	if d.logger == nil {
		return
	}
	d.logger.Log(log.Event{
		Timestamp: time.Now(),
		Category:  log.CategoryDispatch,
		State: &log.StateEvent{
			Entity:   "dispatcher",
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (d *Dispatcher) logRefused(deviceID, operation string) {
	if d.logger == nil {
		return
	}
	d.logger.Log(log.Event{
		Timestamp: time.Now(),
		DeviceID:  deviceID,
		Category:  log.CategoryDispatch,
		Error:     &log.ErrorEvent{Context: operation, Message: "refused: dispatcher is disabled"},
	})
}
