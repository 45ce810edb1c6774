package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"regadmin/internal/session"
)

// ContextKey is where the middleware stores the resolved session.
const ContextKey = "session"

// RequireSession enforces a valid session cookie on protected routes.
// The cookie token must verify and its session must still exist in the
// store; either failure yields a 401.
func RequireSession(signingKey string, store session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := c.Cookie(CookieName)
		if err != nil || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		claims, err := ParseSessionToken(tokenStr, signingKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}
		sess, err := store.Get(c.Request.Context(), claims.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		c.Set(ContextKey, sess)
		c.Next()
	}
}

// SessionFrom extracts the session the middleware stored, if any.
func SessionFrom(c *gin.Context) (session.Session, bool) {
	val, ok := c.Get(ContextKey)
	if !ok {
		return session.Session{}, false
	}
	sess, ok := val.(session.Session)
	return sess, ok
}
