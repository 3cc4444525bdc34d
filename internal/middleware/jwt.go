package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/repocerti-api/internal/models"
	appErrors "github.com/noah-isme/repocerti-api/pkg/errors"
	"github.com/noah-isme/repocerti-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing JWT claims.
	ContextUserKey = "currentUser"
	// ContextViewerKey is the gin context key storing the live account behind the session.
	ContextViewerKey = "currentViewer"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

type viewerResolver interface {
	CurrentViewer(ctx context.Context, accountID string) (*models.Account, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// Viewer loads the live account for the authenticated session. Role and
// designation checks downstream read this account, never the token claims,
// so a designation change applies to existing sessions immediately.
func Viewer(resolver viewerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		viewer, err := resolver.CurrentViewer(c.Request.Context(), claims.AccountID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextViewerKey, viewer)
		c.Next()
	}
}

// Claims returns the token claims stored by JWT.
func Claims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

// CurrentViewer returns the account stored by Viewer.
func CurrentViewer(c *gin.Context) *models.Account {
	value, exists := c.Get(ContextViewerKey)
	if !exists {
		return nil
	}
	viewer, _ := value.(*models.Account)
	return viewer
}

// AccessLogFields tags request log lines with the authenticated account.
func AccessLogFields(c *gin.Context) []zap.Field {
	claims := Claims(c)
	if claims == nil {
		return nil
	}
	return []zap.Field{zap.String("account_id", claims.AccountID), zap.String("role", string(claims.Role))}
}
