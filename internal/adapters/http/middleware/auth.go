package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

// ContextKeyClaims is the gin context key of the caller's Claims.
const ContextKeyClaims = "claims"

// Claims identify the caller. A gateway in front of the service validates
// the token and forwards subject and scopes as headers.
type Claims struct {
	Subject string
	Scopes  []string
}

// HasScope reports whether the caller was granted scope.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// ExtractClaims reads the claims headers named in cfg. Scopes are space
// separated as in OAuth2.
func ExtractClaims(c *gin.Context, cfg *config.AuthConfig) *Claims {
	return &Claims{
		Subject: strings.TrimSpace(c.GetHeader(cfg.SubjectHeader)),
		Scopes:  strings.Fields(c.GetHeader(cfg.ScopesHeader)),
	}
}

// GetClaims returns the claims stored by RequireWriteScope, or nil.
func GetClaims(c *gin.Context) *Claims {
	v, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil
	}

	claims, _ := v.(*Claims)

	return claims
}

// RequireWriteScope guards mutating routes. With auth disabled it is a
// pass-through. Otherwise a missing subject is 401 and a missing write
// scope is 403.
func RequireWriteScope(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || !cfg.Enabled {
			c.Next()
			return
		}

		claims := ExtractClaims(c, cfg)

		if claims.Subject == "" {
			abortWithCode(c, http.StatusUnauthorized, dto.ErrorCodeUnauthorized, "authentication required")
			return
		}

		if !claims.HasScope(cfg.WriteScope) {
			abortWithCode(c, http.StatusForbidden, dto.ErrorCodeForbidden,
				"insufficient permissions: scope "+cfg.WriteScope+" required")
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Request = c.Request.WithContext(
			logging.WithAttrs(c.Request.Context(), slog.String("subject", claims.Subject)))

		c.Next()
	}
}

func abortWithCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, message).WithTraceID(dto.GetTraceID(c)))
}
