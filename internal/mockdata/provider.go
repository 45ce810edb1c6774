package mockdata

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"regadmin/internal/registration"
)

const (
	datasetSize = 50

	// simulatedLatency mimics a network round trip on writes.
	simulatedLatency = 100 * time.Millisecond

	// heartbeatInterval drives the demo change feed.
	heartbeatInterval = 10 * time.Second
)

var (
	names     = []string{"张三", "李四", "王五", "赵六", "钱七", "孙八", "周九", "吴十"}
	companies = []string{"清华大学", "北京大学", "中国科学院", "腾讯科技", "阿里巴巴", "华为技术", "字节跳动", "百度"}
	majors    = []string{"计算机科学与技术", "软件工程", "人工智能", "数据科学", "网络安全"}
	statuses  = []registration.Status{registration.StatusPending, registration.StatusApproved, registration.StatusRejected}
)

// Provider serves a fixed synthetic dataset from memory. It implements
// the same contract as the cloud client and is the drop-in substitute
// when cloud credentials are absent.
type Provider struct {
	mu      sync.Mutex
	records []registration.Record
	rng     *rand.Rand
	latency time.Duration
}

// New generates the dataset once. seed fixes the data for tests; pass 0
// for time-based randomness.
func New(seed int64) *Provider {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	p := &Provider{rng: rng, latency: simulatedLatency}
	p.records = generate(rng)
	return p
}

func generate(rng *rand.Rand) []registration.Record {
	now := time.Now().UTC()
	records := make([]registration.Record, 0, datasetSize)
	for i := 0; i < datasetSize; i++ {
		name := names[rng.Intn(len(names))]
		created := now.Add(-time.Duration(rng.Int63n(int64(30 * 24 * time.Hour))))
		records = append(records, registration.Record{
			ID:         fmt.Sprintf("mock_%d", i+1),
			Name:       name,
			Phone:      fmt.Sprintf("138%08d", rng.Intn(100000000)),
			Email:      fmt.Sprintf("user%d@example.com", i+1),
			WorkUnit:   companies[rng.Intn(len(companies))],
			Major:      majors[rng.Intn(len(majors))],
			Status:     statuses[rng.Intn(len(statuses))],
			CreateTime: created,
			UpdateTime: now,
		})
	}
	return records
}

// SetLatency overrides the simulated write delay; tests set it to zero.
func (p *Provider) SetLatency(d time.Duration) { p.latency = d }

// Query filters, sorts newest first and paginates the dataset.
func (p *Provider) Query(ctx context.Context, collection string, filters registration.Filters, opts registration.Options) ([]registration.Record, error) {
	p.mu.Lock()
	var results []registration.Record
	for _, r := range p.records {
		if filters.Match(r) {
			results = append(results, r)
		}
	}
	p.mu.Unlock()

	registration.SortRecords(results, opts)
	return registration.Page(results, opts), nil
}

// Count returns how many records pass the filters.
func (p *Provider) Count(ctx context.Context, collection string, filters registration.Filters) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, r := range p.records {
		if filters.Match(r) {
			n++
		}
	}
	return n, nil
}

func (p *Provider) sleep(ctx context.Context) error {
	if p.latency <= 0 {
		return nil
	}
	select {
	case <-time.After(p.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Update patches a record in place; unknown ids fail with ErrNotFound.
func (p *Provider) Update(ctx context.Context, collection, id string, patch registration.Patch) error {
	if err := p.sleep(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.records {
		if p.records[i].ID == id {
			p.records[i].Status = patch.Status
			p.records[i].ReviewReason = patch.ReviewReason
			if patch.UpdateTime.IsZero() {
				p.records[i].UpdateTime = time.Now().UTC()
			} else {
				p.records[i].UpdateTime = patch.UpdateTime
			}
			return nil
		}
	}
	return registration.ErrNotFound
}

// Delete removes a record; unknown ids fail with ErrNotFound.
func (p *Provider) Delete(ctx context.Context, collection, id string) error {
	if err := p.sleep(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.records {
		if p.records[i].ID == id {
			p.records = append(p.records[:i], p.records[i+1:]...)
			return nil
		}
	}
	return registration.ErrNotFound
}

// MajorDistribution counts records per declared major.
func (p *Provider) MajorDistribution(ctx context.Context, collection string) (map[string]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dist := make(map[string]int)
	for _, r := range p.records {
		key := r.Major
		if key == "" {
			key = "unspecified"
		}
		dist[key]++
	}
	return dist, nil
}

type heartbeatSubscription struct {
	stop chan struct{}
	once sync.Once
}

func (s *heartbeatSubscription) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// Subscribe emits a random subset of up to three records every ten
// seconds regardless of real change. It is a demo heartbeat, not a
// change feed.
func (p *Provider) Subscribe(collection string, fn func([]registration.Record)) registration.Subscription {
	sub := &heartbeatSubscription{stop: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sub.stop:
				return
			case <-ticker.C:
				batch := p.randomBatch(3)
				if len(batch) > 0 {
					fn(batch)
				}
			}
		}
	}()

	return sub
}

func (p *Provider) randomBatch(n int) []registration.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.records) == 0 {
		return nil
	}
	if n > len(p.records) {
		n = len(p.records)
	}
	batch := make([]registration.Record, 0, n)
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		r := p.records[p.rng.Intn(len(p.records))]
		r.UpdateTime = now
		batch = append(batch, r)
	}
	return batch
}

// CheckConnection always reports healthy; the data lives in memory.
func (p *Provider) CheckConnection(ctx context.Context) registration.ConnectionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return registration.ConnectionStatus{
		Connected: true,
		Message:   "mock dataset ready",
		DataCount: len(p.records),
	}
}
