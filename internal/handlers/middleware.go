package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	operatorCtxKey = "operator"

	// wsTokenParam carries the token on websocket upgrades, which browsers
	// cannot send with an Authorization header.
	wsTokenParam = "access_token"

	errMissingAuth   = "missing Authorization header"
	errMalformedAuth = "invalid Authorization header format"
	errBadToken      = "invalid or expired token"
)

// bearerToken extracts the token from an Authorization header value.
// The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// operatorMiddleware admits requests carrying a valid operator token and
// records every state-changing request against the operator who made it.
func (h *Handler) operatorMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	var token string
	switch {
	case header != "":
		t, ok := bearerToken(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMalformedAuth})
			return
		}
		token = t
	case isWebsocketUpgrade(c.Request) && c.Query(wsTokenParam) != "":
		token = c.Query(wsTokenParam)
	default:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMissingAuth})
		return
	}

	operator, err := h.services.ParseToken(token)
	if err != nil {
		if h.log != nil {
			h.log.Infow("operator_token_rejected", "err", err, "path", c.FullPath(), "remote", c.ClientIP())
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errBadToken})
		return
	}

	c.Set(operatorCtxKey, operator)
	c.Next()

	if c.Request.Method != http.MethodGet && h.log != nil {
		h.log.Infow("operator_action",
			"operator", operator,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
		)
	}
}
