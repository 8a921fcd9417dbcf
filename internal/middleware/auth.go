package middleware

import (
  "fmt"
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/golang-jwt/jwt/v5"

  "github.com/essayband/essayband-backend/internal/logger"
)

type AuthMiddleware struct {
  log       *logger.Logger
  secretKey string
  required  bool
}

func NewAuthMiddleware(log *logger.Logger, secretKey string, required bool) *AuthMiddleware {
  return &AuthMiddleware{
    log:       log.With("middleware", "AuthMiddleware"),
    secretKey: secretKey,
    required:  required,
  }
}

// RequireAuth validates a bearer token when auth is enabled. SSE clients
// cannot set headers, so the token is also accepted as a query parameter.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    if !am.required {
      c.Next()
      return
    }
    tokenString := extractToken(c)
    if tokenString == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
      return
    }
    token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
      if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
        return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
      }
      return []byte(am.secretKey), nil
    })
    if err != nil || !token.Valid {
      am.log.Debug("Rejected request with invalid token", "error", err)
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
      return
    }
    c.Next()
  }
}

func extractToken(c *gin.Context) string {
  if qToken := c.Query("token"); qToken != "" {
    return qToken
  }
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return authHeader[7:]
  }
  return ""
}
