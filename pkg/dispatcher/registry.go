package dispatcher

import (
	"context"

	"github.com/homehub/devicehub/pkg/devicesession"
)

// DeviceSession is the narrow capability the Dispatcher needs from a
// registered device session.
type DeviceSession interface {
	SendCommand(ctx context.Context, command string) (string, error)
	GetUnsolicited(ctx context.Context) (string, error)
}

// Registry resolves device ids to their live sessions and lists the
// current roster.
type Registry interface {
	Get(deviceID string) (DeviceSession, bool)
	IsRegistered(deviceID string) bool
	IDs() []string
}

// MacroRunner runs a named macro to completion.
type MacroRunner interface {
	RunMacro(ctx context.Context, name string) (string, error)
}

type registryAdapter struct {
	r *devicesession.Registry
}

// NewRegistryAdapter wraps a *devicesession.Registry as a Registry. Go
// cannot satisfy the Registry interface's Get signature directly from
// *devicesession.Registry's concrete return type, so this is a thin
// conversion shim rather than additional logic.
func NewRegistryAdapter(r *devicesession.Registry) Registry {
	return &registryAdapter{r: r}
}

func (a *registryAdapter) Get(deviceID string) (DeviceSession, bool) {
	s, ok := a.r.Get(deviceID)
	if !ok {
		return nil, false
	}
	return s, true
}

func (a *registryAdapter) IsRegistered(deviceID string) bool { return a.r.IsRegistered(deviceID) }

func (a *registryAdapter) IDs() []string { return a.r.IDs() }
