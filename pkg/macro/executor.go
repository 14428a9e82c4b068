package macro

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/homehub/devicehub/pkg/log"
	"github.com/homehub/devicehub/pkg/sentinel"
)

// DeviceSession is the narrow capability the executor needs from a
// registered device: the ability to run one command to completion.
type DeviceSession interface {
	SendCommand(ctx context.Context, command string) (string, error)
}

// LookupFunc resolves a device id to its live session, if one is
// registered. Implementations are expected to wrap a *devicesession.Registry.
type LookupFunc func(deviceID string) (DeviceSession, bool)

// Executor runs macro definitions against device sessions resolved
// through a LookupFunc (C5).
type Executor struct {
	definitions Definitions
	lookup      LookupFunc
	sleep       func(ctx context.Context, d time.Duration) error
	logger      log.Logger
}

// Option configures an Executor at construction.
type Option func(*Executor)

// WithLogger attaches a protocol logger for macro step events.
func WithLogger(logger log.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// withSleepFunc overrides the delay implementation; used by tests to avoid
// real wall-clock waits while still exercising cancellation.
func withSleepFunc(f func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = f }
}

// NewExecutor builds an Executor over definitions, resolving each step's
// device through lookup.
func NewExecutor(definitions Definitions, lookup LookupFunc, opts ...Option) *Executor {
	e := &Executor{
		definitions: definitions,
		lookup:      lookup,
		sleep:       contextSleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunMacro executes the named macro's steps strictly in order, returning
// SUCCESS if every step completed, NO_DEVICE_FOUND if a step named an
// unregistered device, or a step's own terminal-failure result (spec.md
// §4.5). It never retries and never unwinds steps that already ran.
func (e *Executor) RunMacro(ctx context.Context, name string) (string, error) {
	def, ok := e.definitions[name]
	if !ok {
		return "", fmt.Errorf("macro: unknown macro %q", name)
	}

	for i, step := range def.Commands {
		if step.Device == string(sentinel.Delay) {
			seconds, err := parseDelay(step.Command)
			if err != nil {
				return "", fmt.Errorf("macro: step %d: %w", i, err)
			}
			e.logStep(name, i, step, "", false)
			if err := e.sleep(ctx, time.Duration(seconds)*time.Second); err != nil {
				return "", err
			}
			continue
		}

		session, ok := e.lookup(step.Device)
		if !ok {
			e.logStep(name, i, step, string(sentinel.NoDeviceFound), true)
			return string(sentinel.NoDeviceFound), nil
		}

		result, err := session.SendCommand(ctx, step.Command)
		if err != nil {
			return "", fmt.Errorf("macro: step %d: %w", i, err)
		}

		if sentinel.IsTerminalFailure(sentinel.Value(result)) {
			e.logStep(name, i, step, result, true)
			return result, nil
		}
		e.logStep(name, i, step, result, false)
	}

	return string(sentinel.Success), nil
}

func parseDelay(command string) (int, error) {
	n, err := strconv.Atoi(command)
	if err != nil {
		return 0, fmt.Errorf("invalid DELAY command %q: %w", command, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid DELAY command %q: must not be negative", command)
	}
	return n, nil
}

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) logStep(macroID string, index int, step Step, result string, shortCircuited bool) {
	if e.logger == nil {
		return
	}
	e.logger.Log(log.Event{
		Timestamp: time.Now(),
		Category:  log.CategoryMacroStep,
		MacroStep: &log.MacroStepEvent{
			MacroID:        macroID,
			Index:          index,
			Device:         step.Device,
			Command:        step.Command,
			Result:         result,
			ShortCircuited: shortCircuited,
		},
	})
}
