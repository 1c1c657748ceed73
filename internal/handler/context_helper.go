package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/seating-api/internal/middleware"
	"github.com/noah-isme/seating-api/internal/models"
)

const anonymousActor = "anonymous"

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext names the caller. Without auth every request is anonymous
// and carries no role.
func actorFromContext(c *gin.Context) (string, models.UserRole) {
	claims := claimsFromContext(c)
	if claims == nil {
		return anonymousActor, ""
	}
	return claims.UserID, claims.Role
}
