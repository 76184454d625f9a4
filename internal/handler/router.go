package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solsniper/internal/engine"
	"solsniper/internal/execution"
	"solsniper/internal/metrics"
	"solsniper/internal/repository"
	"solsniper/internal/wallet"
)

// RouterOptions carries everything the HTTP surface serves. Nil components
// leave their routes unregistered.
type RouterOptions struct {
	Env        string
	JWT        JWT
	Audit      AuditLogger
	AuditAgent string
	Logger     *zap.Logger
	Metrics    *metrics.Registry
	DB         Pinger
	Repo       repository.Repository

	Engine  *engine.Engine
	Wallets *wallet.Coordinator
	Funder  execution.Account
}

func NewRouter(o RouterOptions) *gin.Engine {
	if strings.EqualFold(o.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORS())
	r.Use(BearerAuth(o.JWT))
	r.Use(WriteAudit(o.Audit, o.AuditAgent, o.Logger))

	(&HealthHandler{DB: o.DB, Engine: o.Engine}).Register(r)
	r.GET("/metrics", gin.WrapH(o.Metrics.Handler()))
	RegisterDocs(r)

	if e := o.Engine; e != nil {
		(&EngineHandler{Engine: e}).Register(r)
		if e.Positions != nil {
			(&PositionsHandler{Manager: e.Positions, Repo: o.Repo}).Register(r)
		}
		if e.Strategy != nil {
			(&StrategyHandler{Store: e.Strategy}).Register(r)
		}
		if e.Fees != nil {
			(&FeesHandler{Fees: e.Fees}).Register(r)
		}
		if e.Volume != nil {
			(&VolumeHandler{Trader: e.Volume, Repo: o.Repo}).Register(r)
		}
	}
	if o.Wallets != nil {
		slippage := 3.0
		if o.Engine != nil && o.Engine.Strategy != nil {
			slippage = o.Engine.Strategy.Current().MaxSlippage
		}
		(&WalletsHandler{Coordinator: o.Wallets, Funder: o.Funder, DefaultSlippage: slippage}).Register(r)
	}
	return r
}
