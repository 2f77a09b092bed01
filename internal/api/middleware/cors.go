package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"galera-cd/internal/pkg/config"
	"galera-cd/pkg/constants"
)

// CORSMiddleware 跨域配置, allow_origins 含 "*" 时放开全部来源
func CORSMiddleware(cfg *config.CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			constants.HeaderAuthorization,
			constants.HeaderRequestID,
			constants.HeaderCallbackToken,
		},
		ExposeHeaders: []string{constants.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}

	origins := lo.Compact(cfg.AllowOrigins)
	if len(origins) == 0 || lo.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return cors.New(c)
}
