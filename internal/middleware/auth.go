package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// courierIDKey is the gin context key the extracted identity lives under.
const courierIDKey = "courier_id"

// CourierIdentity extracts the courier id issued by the auth collaborator.
// With a configured secret it expects a signed HS256 bearer token and
// reads the subject claim; without one (dev mode) it accepts the
// X-Courier-ID header. It performs no session management of its own.
func CourierIdentity(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSecret == "" {
			if id := c.GetHeader("X-Courier-ID"); id != "" {
				c.Set(courierIDKey, id)
			}
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.Next()
			return
		}

		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "),
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
		if err != nil || !token.Valid {
			c.Next()
			return
		}

		if sub, err := token.Claims.GetSubject(); err == nil && sub != "" {
			c.Set(courierIDKey, sub)
		}
		c.Next()
	}
}

// RequireCourier aborts with 401 when the request carries no identity.
// Mounted on endpoints that attribute actions to a courier.
func RequireCourier() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CourierID(c) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "Courier identity required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CourierID returns the authenticated courier id, or "".
func CourierID(c *gin.Context) string {
	return c.GetString(courierIDKey)
}
