package registration

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"regadmin/internal/metrics"
)

// ListResult is the uniform shape returned to the web layer for reads.
type ListResult struct {
	Success   bool      `json:"success"`
	Data      []Record  `json:"data"`
	Total     int       `json:"total"`
	Page      int       `json:"page"`
	PageSize  int       `json:"pageSize"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Stats aggregates per-status counts for the dashboard header cards.
type Stats struct {
	Total       int       `json:"total"`
	Pending     int       `json:"pending"`
	Approved    int       `json:"approved"`
	Rejected    int       `json:"rejected"`
	Today       int       `json:"today"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// StatsResult wraps Stats; unlike reads this path reports failure.
type StatsResult struct {
	Success bool   `json:"success"`
	Data    *Stats `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OpResult acknowledges a status update or delete.
type OpResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	// NotFound lets the HTTP layer answer 404 instead of 500.
	NotFound bool `json:"-"`
}

// Service is the facade between HTTP handlers and whichever provider
// was selected at startup. With failSoft set (the default), reads never
// fail the caller: provider outages degrade to a placeholder record so
// the dashboard never renders a blank error screen.
type Service struct {
	provider   Provider
	collection string
	source     string
	failSoft   bool
}

// NewService builds a facade over p. source labels responses ("cloud"
// or "mock"); failSoft selects the degradation policy for reads.
func NewService(p Provider, source string, failSoft bool) *Service {
	return &Service{
		provider:   p,
		collection: DefaultCollection,
		source:     source,
		failSoft:   failSoft,
	}
}

// Source returns the label of the active provider.
func (s *Service) Source() string { return s.source }

// placeholder is what a degraded read returns instead of an error.
func placeholder() Record {
	now := time.Now().UTC()
	return Record{
		ID:         "mock_" + uuid.NewString()[:8],
		Name:       "示例用户",
		Phone:      "13900000000",
		Status:     StatusPending,
		CreateTime: now,
		UpdateTime: now,
	}
}

// GetRegistrations lists records matching filters, paginated per opts.
// Under failSoft any provider error is logged and replaced by a single
// placeholder record with a degraded source label.
func (s *Service) GetRegistrations(ctx context.Context, filters Filters, opts Options) (ListResult, error) {
	opts = opts.Normalize()

	data, err := s.provider.Query(ctx, s.collection, filters, opts)
	if err != nil {
		if !s.failSoft {
			return ListResult{}, &ProviderError{Op: "query", Err: err}
		}
		log.Printf("registrations query failed, serving placeholder: %v", err)
		metrics.ProviderFallbacks.Inc()
		return ListResult{
			Success:   true,
			Data:      []Record{placeholder()},
			Total:     1,
			Page:      opts.Page,
			PageSize:  opts.PageSize,
			Timestamp: time.Now().UTC(),
			Source:    s.source + " (provider unavailable)",
		}, nil
	}

	total, err := s.provider.Count(ctx, s.collection, filters)
	if err != nil {
		// The page itself loaded; fall back to what we can see.
		log.Printf("registrations count failed: %v", err)
		total = len(data)
	}
	if data == nil {
		data = []Record{}
	}

	return ListResult{
		Success:   true,
		Data:      data,
		Total:     total,
		Page:      opts.Page,
		PageSize:  opts.PageSize,
		Timestamp: time.Now().UTC(),
		Source:    s.source,
	}, nil
}

// GetRegistrationStats issues four independent counts. Any failure is
// surfaced as Success=false; stats intentionally do not fail soft.
func (s *Service) GetRegistrationStats(ctx context.Context) StatsResult {
	total, err := s.provider.Count(ctx, s.collection, Filters{})
	if err != nil {
		return StatsResult{Success: false, Error: err.Error()}
	}
	pending, err := s.provider.Count(ctx, s.collection, Filters{Status: StatusPending})
	if err != nil {
		return StatsResult{Success: false, Error: err.Error()}
	}
	approved, err := s.provider.Count(ctx, s.collection, Filters{Status: StatusApproved})
	if err != nil {
		return StatsResult{Success: false, Error: err.Error()}
	}
	rejected, err := s.provider.Count(ctx, s.collection, Filters{Status: StatusRejected})
	if err != nil {
		return StatsResult{Success: false, Error: err.Error()}
	}

	return StatsResult{
		Success: true,
		Data: &Stats{
			Total:    total,
			Pending:  pending,
			Approved: approved,
			Rejected: rejected,
			// The cloud query API cannot express a same-day range
			// filter, so today stays zero for both providers.
			Today:       0,
			LastUpdated: time.Now().UTC(),
		},
	}
}

// UpdateRegistrationStatus moves a record to status with an optional
// review reason. The HTTP layer already rejects unknown statuses; this
// check is the backstop for non-HTTP callers.
func (s *Service) UpdateRegistrationStatus(ctx context.Context, id string, status Status, reason string) OpResult {
	if !ValidStatus(status) {
		return OpResult{Success: false, Error: "status must be pending, approved or rejected"}
	}
	patch := Patch{
		Status:       status,
		ReviewReason: reason,
		UpdateTime:   time.Now().UTC(),
	}
	if err := s.provider.Update(ctx, s.collection, id, patch); err != nil {
		log.Printf("status update failed for %s: %v", id, err)
		return OpResult{Success: false, ID: id, Error: err.Error(), NotFound: errors.Is(err, ErrNotFound)}
	}
	return OpResult{Success: true, ID: id, Message: "status updated"}
}

// DeleteRegistration removes a record. Not-found errors from the
// provider propagate as a failure result.
func (s *Service) DeleteRegistration(ctx context.Context, id string) OpResult {
	if err := s.provider.Delete(ctx, s.collection, id); err != nil {
		log.Printf("delete failed for %s: %v", id, err)
		return OpResult{Success: false, ID: id, Error: err.Error(), NotFound: errors.Is(err, ErrNotFound)}
	}
	return OpResult{Success: true, ID: id, Message: "registration deleted"}
}

// MajorDistribution groups registrations by declared major for the
// dashboard chart. Like stats, failures surface to the caller.
func (s *Service) MajorDistribution(ctx context.Context) (map[string]int, error) {
	return s.provider.MajorDistribution(ctx, s.collection)
}

// Watch subscribes fn to the provider's change feed.
func (s *Service) Watch(fn func([]Record)) Subscription {
	return s.provider.Subscribe(s.collection, fn)
}

// CheckConnection proxies the provider's reachability probe.
func (s *Service) CheckConnection(ctx context.Context) ConnectionStatus {
	return s.provider.CheckConnection(ctx)
}
