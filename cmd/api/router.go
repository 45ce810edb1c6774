package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"regadmin/internal/auth"
	"regadmin/internal/config"
	"regadmin/internal/httpmiddleware"
	"regadmin/internal/metrics"
	"regadmin/internal/registration"
	"regadmin/internal/session"
)

// newRouter wires every route of the consolidated dashboard API.
func newRouter(cfg config.App, svc *registration.Service, sessions session.Store, accounts *auth.Accounts) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(requestMetrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"source":    svc.Source(),
		})
	})

	loginLimit := httpmiddleware.NewLoginLimiter(cfg.LoginRatePerMin, cfg.LoginRatePerMin)

	r.POST("/api/login", loginLimit.GinMiddleware(), func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
			return
		}

		acct, ok := accounts.Verify(req.Username, req.Password)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}

		now := time.Now().UTC()
		sess := session.Session{
			ID:        uuid.NewString(),
			Username:  acct.Username,
			Role:      acct.Role,
			LoginTime: now,
			ExpiresAt: now.Add(cfg.SessionTTL),
		}
		if err := sessions.Create(c.Request.Context(), sess); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session creation failed"})
			return
		}

		token, err := auth.IssueSessionToken(sess.ID, sess.Username, sess.Role, cfg.SessionSecret, cfg.SessionTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session token issue failed"})
			return
		}
		c.SetCookie(auth.CookieName, token, int(cfg.SessionTTL.Seconds()), "/", "", false, true)

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "login successful",
			"user":    userJSON(sess),
		})
	})

	// Optional-session probe: reports login state without demanding it.
	r.GET("/api/session", func(c *gin.Context) {
		sess, ok := resolveSession(c, cfg.SessionSecret, sessions)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"loggedIn": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"loggedIn": true, "user": userJSON(sess)})
	})

	r.POST("/api/logout", func(c *gin.Context) {
		if sess, ok := resolveSession(c, cfg.SessionSecret, sessions); ok {
			_ = sessions.Delete(c.Request.Context(), sess.ID)
		}
		c.SetCookie(auth.CookieName, "", -1, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out"})
	})

	api := r.Group("/api", auth.RequireSession(cfg.SessionSecret, sessions))

	api.GET("/check-session", func(c *gin.Context) {
		sess, _ := auth.SessionFrom(c)
		c.JSON(http.StatusOK, gin.H{"success": true, "loggedIn": true, "user": userJSON(sess)})
	})

	api.GET("/registrations", func(c *gin.Context) {
		opts := registration.Options{
			Page:     intQuery(c, "page", 1),
			PageSize: intQuery(c, "pageSize", 10),
		}
		filters := registration.Filters{
			Search: c.Query("search"),
			Status: registration.Status(c.Query("status")),
		}

		res, err := svc.GetRegistrations(c.Request.Context(), filters, opts)
		if err != nil {
			// fail-hard mode only
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registrations unavailable"})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	api.GET("/stats", func(c *gin.Context) {
		res := svc.GetRegistrationStats(c.Request.Context())
		if !res.Success {
			c.JSON(http.StatusInternalServerError, res)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	api.GET("/stats/majors", func(c *gin.Context) {
		dist, err := svc.MajorDistribution(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": dist})
	})

	api.PUT("/registrations/:id/status", func(c *gin.Context) {
		var req struct {
			Status string `json:"status"`
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status := registration.Status(req.Status)
		if !registration.ValidStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be pending, approved or rejected"})
			return
		}

		res := svc.UpdateRegistrationStatus(c.Request.Context(), c.Param("id"), status, req.Reason)
		if !res.Success {
			if res.NotFound {
				c.JSON(http.StatusNotFound, res)
				return
			}
			c.JSON(http.StatusInternalServerError, res)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	api.DELETE("/registrations/:id", func(c *gin.Context) {
		res := svc.DeleteRegistration(c.Request.Context(), c.Param("id"))
		if !res.Success {
			if res.NotFound {
				c.JSON(http.StatusNotFound, res)
				return
			}
			c.JSON(http.StatusInternalServerError, res)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	api.GET("/db-status", func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.CheckConnection(c.Request.Context()))
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}

func userJSON(sess session.Session) gin.H {
	return gin.H{
		"username":  sess.Username,
		"role":      sess.Role,
		"loginTime": sess.LoginTime,
	}
}

// resolveSession reads the cookie without aborting on failure; used by
// the probe and logout routes where anonymous access is fine.
func resolveSession(c *gin.Context, signingKey string, sessions session.Store) (session.Session, bool) {
	tokenStr, err := c.Cookie(auth.CookieName)
	if err != nil || tokenStr == "" {
		return session.Session{}, false
	}
	claims, err := auth.ParseSessionToken(tokenStr, signingKey)
	if err != nil {
		return session.Session{}, false
	}
	sess, err := sessions.Get(c.Request.Context(), claims.ID)
	if err != nil {
		return session.Session{}, false
	}
	return sess, true
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
