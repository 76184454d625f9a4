package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RegisterDocs serves a short route index at /docs and the swagger UI. The
// swagger spec itself is registered by importing the generated docs package.
func RegisterDocs(r *gin.Engine) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, routeIndex)
	})
}

const routeIndex = `# solsniper

## Auth

When auth.jwt_secret is set every /api/* route requires an HS256 Bearer token.
Health, metrics and docs are public.

## Routes

- GET  /healthz, /readyz, /metrics, /swagger/index.html
- GET  /api/v1/engine/loops
- POST /api/v1/engine/loops/{scan|monitor|volume}/{start|stop}
- POST /api/v1/engine/scan
- GET  /api/v1/engine/admission?priority=&subject=
- GET  /api/v1/targets?min_priority=
- GET  /api/v1/positions?state=open,closing
- GET  /api/v1/positions/history?state=&subject=&limit=&offset=
- GET  /api/v1/positions/{id}
- POST /api/v1/positions/{id}/close
- GET  /api/v1/performance
- GET  /api/v1/strategy
- PUT  /api/v1/strategy
- PUT  /api/v1/strategy/volume/{name}
- GET  /api/v1/fees, /api/v1/fees/tiers
- POST /api/v1/fees/refresh
- GET  /api/v1/volume/observations, /api/v1/volume/stats, /api/v1/volume/trades?strategy=
- GET  /api/v1/wallets
- POST /api/v1/wallets
- GET  /api/v1/wallets/{name}
- DELETE /api/v1/wallets/{name}
- GET  /api/v1/wallets/{name}/balances
- POST /api/v1/wallets/{name}/{fund|buy|sell|sweep}
`
