package middleware

import (
	"net/http"
	"strings"

	"schedcore/internal/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ctxBookingIDKey = "booking_id"

// TokenValidator checks a per-booking manage token.
type TokenValidator interface {
	ValidateManageToken(tokenString string) (*token.Claims, error)
}

// ManageAuthMiddleware guards cancel/reschedule: the bearer token must have
// been minted for exactly the booking named in the path.
type ManageAuthMiddleware struct {
	validator TokenValidator
}

func NewManageAuthMiddleware(validator TokenValidator) *ManageAuthMiddleware {
	return &ManageAuthMiddleware{validator: validator}
}

func (m *ManageAuthMiddleware) RequireManageToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "Manage token required"},
			})
			return
		}

		claims, err := m.validator.ValidateManageToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "Invalid or expired manage token"},
			})
			return
		}

		pathID, err := uuid.Parse(c.Param("id"))
		if err != nil || claims.BookingID != pathID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{"message": "Token does not match booking"},
			})
			return
		}

		c.Set(ctxBookingIDKey, claims.BookingID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	// Token links in emails carry it as a query parameter instead.
	return c.Query("manage_token")
}
