package wxcloud

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"regadmin/internal/metrics"
	"regadmin/internal/registration"
)

// pollInterval is how often the change poller rescans the collection.
const pollInterval = 30 * time.Second

type pollSubscription struct {
	stopped atomic.Bool
}

// Stop prevents further polls from being scheduled. An in-flight query
// still completes; its batch is discarded.
func (s *pollSubscription) Stop() { s.stopped.Store(true) }

// Subscribe simulates a change feed by polling every 30 seconds for
// records whose update time exceeds the last-seen watermark. fn is
// invoked only with non-empty batches.
func (c *Client) Subscribe(collection string, fn func([]registration.Record)) registration.Subscription {
	sub := &pollSubscription{}
	watermark := time.Now().UTC()

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for range ticker.C {
			if sub.stopped.Load() {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), pollInterval)
			records, err := c.fetch(ctx, collection, registration.Filters{})
			cancel()
			if err != nil {
				log.Printf("change poll failed: %v", err)
				continue
			}

			var batch []registration.Record
			maxSeen := watermark
			for _, r := range records {
				if r.UpdateTime.After(watermark) {
					batch = append(batch, r)
					if r.UpdateTime.After(maxSeen) {
						maxSeen = r.UpdateTime
					}
				}
			}
			watermark = maxSeen

			if len(batch) > 0 && !sub.stopped.Load() {
				metrics.PollBatches.Inc()
				fn(batch)
			}
		}
	}()

	return sub
}
