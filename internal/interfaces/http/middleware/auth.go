package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prostor/erpsync/internal/interfaces/http/dto"
)

// HeaderAPIKey carries the shared internal secret
const HeaderAPIKey = "x-api-key"

// TriggerAuthConfig configures trigger authorization
type TriggerAuthConfig struct {
	// APIKey is the shared secret; an empty key matches nothing
	APIKey string
	// CronHeader marks requests from the trusted scheduler
	CronHeader string
	// Enforce disables the check entirely when false
	Enforce bool
}

// APIKey rejects requests whose x-api-key does not match key
func APIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !validAPIKey(c, key) {
			abortUnauthorized(c)
			return
		}
		c.Next()
	}
}

// CronOrAPIKey admits the trusted scheduler or a caller holding the API key.
// Nothing is checked unless cfg.Enforce is set.
func CronOrAPIKey(cfg TriggerAuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enforce {
			c.Next()
			return
		}
		if cfg.CronHeader != "" && c.GetHeader(cfg.CronHeader) != "" {
			c.Next()
			return
		}
		if !validAPIKey(c, cfg.APIKey) {
			abortUnauthorized(c)
			return
		}
		c.Next()
	}
}

func validAPIKey(c *gin.Context, key string) bool {
	if key == "" {
		return false
	}
	given := c.GetHeader(HeaderAPIKey)
	return subtle.ConstantTimeCompare([]byte(given), []byte(key)) == 1
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(dto.MessageUnauthorized, nil))
}
