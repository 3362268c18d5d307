package middleware

import (
	"net/http"
	"strings"

	"portfolio_backend/internal/model"
	"portfolio_backend/internal/util"
	"portfolio_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware resolves the bearer token into a model.Principal. On GET
// requests to one of queryTokenRoutes (gin route patterns) the token may also
// arrive as ?token= so file links work in a browser.
func AuthMiddleware(secret string, queryTokenRoutes ...string) gin.HandlerFunc {
	queryRoutes := make(map[string]bool, len(queryTokenRoutes))
	for _, route := range queryTokenRoutes {
		queryRoutes[route] = true
	}

	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			tokenString = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		}

		if tokenString == "" && c.Request.Method == http.MethodGet && queryRoutes[c.FullPath()] {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, secret)
		if err != nil {
			logger.Log.Debug("JWT rejected", zap.Error(err), zap.String("path", c.FullPath()))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		principal := claims.Principal()
		if principal.ID == 0 || !principal.Role.IsValid() {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		util.SetPrincipal(c, principal)
		c.Next()
	}
}

// RoleMiddleware admits the listed roles. Admins pass every gate.
func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := util.GetPrincipal(c)
		if !ok {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		if principal.Role == model.Admin {
			c.Next()
			return
		}
		for _, role := range roles {
			if principal.Role == role {
				c.Next()
				return
			}
		}

		util.Forbidden(c)
		c.Abort()
	}
}
