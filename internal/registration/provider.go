package registration

import "context"

// DefaultCollection is the cloud collection holding registrations.
const DefaultCollection = "reg_table"

// ConnectionStatus describes provider reachability for /api/db-status.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
	DataCount int    `json:"dataCount,omitempty"`
	Env       string `json:"env,omitempty"`
}

// Subscription is a handle to a running change feed.
type Subscription interface {
	// Stop halts future callback invocations. An in-flight poll still
	// completes; it is a guard, not a hard cancel.
	Stop()
}

// Provider is the data source contract shared by the cloud client and
// the mock dataset. The implementation is chosen once at startup.
type Provider interface {
	Query(ctx context.Context, collection string, filters Filters, opts Options) ([]Record, error)
	Count(ctx context.Context, collection string, filters Filters) (int, error)
	Update(ctx context.Context, collection, id string, patch Patch) error
	Delete(ctx context.Context, collection, id string) error
	MajorDistribution(ctx context.Context, collection string) (map[string]int, error)
	Subscribe(collection string, fn func([]Record)) Subscription
	CheckConnection(ctx context.Context) ConnectionStatus
}
