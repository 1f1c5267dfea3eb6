package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"groupchat-service/internal/models"
)

// Context keys set by the auth middleware.
const (
	PrincipalKey = "principal"
	UserIDKey    = "userID"
)

// Claims is the bearer token payload issued by the identity provider.
type Claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// AuthRequired validates the Authorization header and stores the resolved
// principal in the request context.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := principalFromHeader(c.GetHeader("Authorization"), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "error": "missing or invalid token"})
			return
		}
		c.Set(PrincipalKey, principal)
		c.Set(UserIDKey, principal.ID)
		c.Next()
	}
}

// AuthOptional resolves the principal when a token is present and lets the
// request through anonymously otherwise. Used by the public group listing.
func AuthOptional(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			if principal, err := principalFromHeader(header, secret); err == nil {
				c.Set(PrincipalKey, principal)
				c.Set(UserIDKey, principal.ID)
			}
		}
		c.Next()
	}
}

// Principal returns the authenticated principal, if any.
func Principal(c *gin.Context) (models.Principal, bool) {
	val, ok := c.Get(PrincipalKey)
	if !ok {
		return models.Principal{}, false
	}
	principal, ok := val.(models.Principal)
	return principal, ok
}

func principalFromHeader(header, secret string) (models.Principal, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return models.Principal{}, errors.New("malformed authorization header")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || claims.UserID == 0 {
		return models.Principal{}, errors.New("invalid token")
	}

	return models.Principal{ID: claims.UserID, Username: claims.Username, Avatar: claims.Avatar}, nil
}
