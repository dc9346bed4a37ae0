package system

import "context"

// Service is a long-running component owned by the Manager: the HTTP
// listener, the cron scheduler and the janitor.
type Service interface {
	// Name identifies the service in logs and must be unique per manager.
	Name() string
	// Start must not block; background work runs until Stop.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
