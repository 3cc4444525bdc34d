package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/repocerti-api/internal/middleware"
	"github.com/noah-isme/repocerti-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func viewerIDFromContext(c *gin.Context) string {
	if viewer := middleware.CurrentViewer(c); viewer != nil {
		return viewer.ID
	}
	if claims := claimsFromContext(c); claims != nil {
		return claims.AccountID
	}
	return ""
}
