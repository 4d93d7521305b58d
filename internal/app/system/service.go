package system

import "context"

// Service is a lifecycle-managed component. Long-running parts of the client
// layer (watchers, pollers) implement this so the host process can start and
// stop them deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
