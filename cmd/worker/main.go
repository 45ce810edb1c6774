package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"regadmin/internal/config"
	"regadmin/internal/mockdata"
	"regadmin/internal/queue"
	"regadmin/internal/registration"
	"regadmin/internal/store"
	"regadmin/internal/wxcloud"
)

// Worker bridges the registration change feed to notification logging:
// the poller's batches go through a queue so a future notifier (email,
// WeChat template message) can consume them out of process.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	var provider registration.Provider
	if cfg.UseCloud() {
		provider = wxcloud.New("", cfg.WxAppID, cfg.WxSecret, cfg.WxCloudEnv, cfg.CacheTTL)
		log.Printf("watching cloud registrations (env %s)", cfg.WxCloudEnv)
	} else {
		provider = mockdata.New(0)
		log.Println("watching mock registrations (demo heartbeat)")
	}

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		redisClient := store.NewRedis(cfg.RedisAddr)
		q = queue.NewRedisQueue(redisClient.Client, "regadmin:changes")
	} else {
		q = queue.NewInMemory(64)
	}

	sub := provider.Subscribe(registration.DefaultCollection, func(batch []registration.Record) {
		evt := queue.ChangeEvent{
			Collection: registration.DefaultCollection,
			Records:    batch,
			EmittedAt:  time.Now().UTC(),
		}
		pubCtx, pubCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pubCancel()
		if err := q.Publish(pubCtx, evt); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	})
	defer sub.Stop()

	events, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for change batches...")
	for evt := range events {
		log.Printf("%d changed registration(s) in %s", len(evt.Records), evt.Collection)
		for _, r := range evt.Records {
			log.Printf("  %s: %s -> %s (updated %s)", r.ID, r.Name, r.Status, r.UpdateTime.Format(time.RFC3339))
		}
	}

	log.Println("worker exited")
}
