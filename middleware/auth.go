// Package middleware carries the HTTP cross-cutting layers: authentication,
// request identity and panic recovery.
package middleware

import (
	"net/http"
	"strings"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/common/ctxkey"
	"github.com/makehub/llm-gateway/model"
)

var apiKeyPrefixes = []string{"sk_", "ak_", "api_", "key_"}

// looksLikeApiKey classifies a bearer token: anything with a known key prefix,
// or without the three dot-separated segments of a JWT, is an API key.
func looksLikeApiKey(token string) bool {
	for _, prefix := range apiKeyPrefixes {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return strings.Count(token, ".") != 2
}

// Auth authenticates via X-API-Key or an Authorization bearer token and stores
// the caller identity on the context.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := gmw.GetLogger(c)

		token := c.GetHeader("X-API-Key")
		if token == "" {
			bearer := c.GetHeader("Authorization")
			token = strings.TrimPrefix(bearer, "Bearer ")
			token = strings.TrimSpace(token)
		}
		if token == "" {
			abortUnauthorized(c, "missing credentials: provide X-API-Key or Authorization")
			return
		}

		if looksLikeApiKey(token) {
			apiKey, err := model.CacheValidateApiKey(token)
			if err != nil {
				lg.Warn("api key rejected", zap.Error(err))
				abortUnauthorized(c, "invalid api key")
				return
			}
			c.Set(ctxkey.UserId, apiKey.UserId)
			c.Set(ctxkey.ApiKeyId, apiKey.Id)
			c.Next()
			return
		}

		userId, err := validateJWT(token)
		if err != nil {
			lg.Warn("jwt rejected", zap.Error(err))
			abortUnauthorized(c, "invalid token")
			return
		}
		c.Set(ctxkey.UserId, userId)
		c.Next()
	}
}

type gatewayClaims struct {
	UserId int `json:"user_id"`
	jwt.RegisteredClaims
}

func validateJWT(token string) (int, error) {
	if config.JWTSecret == "" {
		return 0, jwt.ErrTokenUnverifiable
	}
	claims := &gatewayClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(config.JWTSecret), nil
	})
	if err != nil {
		return 0, err
	}
	if !parsed.Valid || claims.UserId <= 0 {
		return 0, jwt.ErrTokenInvalidClaims
	}
	return claims.UserId, nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"message": message,
			"type":    "gateway_error",
			"code":    "AUTHENTICATION_ERROR",
		},
	})
}
