// Package lifecycle starts and stops the application's components in
// dependency order.
package lifecycle

import "context"

// Component defines the lifecycle interface that all managed components must
// implement. The manager starts components after their dependencies and stops
// them before their dependents.
type Component interface {
	// Start initializes and starts the component. Must be idempotent.
	Start(ctx context.Context) error

	// Stop gracefully stops the component, respecting the context deadline
	// for in-flight work.
	Stop(ctx context.Context) error

	// Name returns the human-readable name of the component.
	Name() string
}
