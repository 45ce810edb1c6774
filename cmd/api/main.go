package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"regadmin/internal/auth"
	"regadmin/internal/config"
	"regadmin/internal/mockdata"
	"regadmin/internal/registration"
	"regadmin/internal/session"
	"regadmin/internal/store"
	"regadmin/internal/wxcloud"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	var provider registration.Provider
	var source string
	if cfg.UseCloud() {
		provider = wxcloud.New("", cfg.WxAppID, cfg.WxSecret, cfg.WxCloudEnv, cfg.CacheTTL)
		source = "cloud"
		log.Printf("cloud provider selected (env %s)", cfg.WxCloudEnv)
	} else {
		provider = mockdata.New(0)
		source = "mock"
		log.Println("mock provider selected (WX_APPID / WX_SECRET / WX_CLOUD_ENV not set)")
	}
	svc := registration.NewService(provider, source, cfg.FailSoft)

	var sessions session.Store
	if cfg.SessionBackend == "redis" {
		redisClient := store.NewRedis(cfg.RedisAddr)
		if !redisClient.Healthy(context.Background()) {
			log.Printf("warning: redis at %s not reachable", cfg.RedisAddr)
		}
		sessions = session.NewRedis(redisClient.Client)
		log.Println("redis session store selected")
	} else {
		sessions = session.NewMemory()
	}

	r := newRouter(cfg, svc, sessions, auth.DefaultAccounts())

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}
