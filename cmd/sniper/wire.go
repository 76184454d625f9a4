package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solsniper/internal/admission"
	"solsniper/internal/cache"
	"solsniper/internal/config"
	"solsniper/internal/db"
	"solsniper/internal/engine"
	"solsniper/internal/execution"
	"solsniper/internal/fees"
	"solsniper/internal/marketdata"
	"solsniper/internal/metrics"
	"solsniper/internal/notify"
	"solsniper/internal/position"
	"solsniper/internal/repository"
	gormrepository "solsniper/internal/repository/gorm"
	memoryrepository "solsniper/internal/repository/memory"
	"solsniper/internal/signal"
	"solsniper/internal/strategy"
	"solsniper/internal/target"
	"solsniper/internal/volume"
	"solsniper/internal/wallet"
)

// openRepo connects to Postgres when a DSN is configured and falls back to
// the in-memory store otherwise.
func openRepo(cfg config.Config, logger *zap.Logger) (repository.Repository, *db.DB, error) {
	conn, err := db.Open(cfg.DB)
	if errors.Is(err, db.ErrNoDSN) {
		logger.Warn("no db dsn configured, state will not survive a restart")
		return memoryrepository.New(), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.SetTimezone(conn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(conn); err != nil {
		_ = db.Close(conn)
		return nil, nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return gormrepository.New(conn.Gorm), conn, nil
}

func openCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) cache.Store {
	if !strings.EqualFold(cfg.Backend, "redis") {
		return cache.NewMemoryStore()
	}
	rs := cache.NewRedisStore(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, "sniper:")
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rs.Ping(pctx); err != nil {
		logger.Warn("redis unreachable, using memory cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		return cache.NewMemoryStore()
	}
	return rs
}

// mainAccount returns the configured trading account. A missing key yields
// the zero account, which only the paper executor accepts.
func mainAccount(cfg config.SolanaConfig) (execution.Account, error) {
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return execution.Account{}, nil
	}
	return execution.AccountFromKey("main", cfg.PrivateKey)
}

func newExecutor(cfg config.Config, acct execution.Account) (execution.Executor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Executor.Mode)) {
	case "", "paper":
		return &execution.Paper{}, nil
	case "jupiter", "live":
		if acct.Secret == "" {
			return nil, errors.New("executor mode jupiter needs solana.private_key")
		}
		return execution.NewJupiter(cfg.Solana.RPCURL, cfg.Executor.JupiterURL, cfg.Solana.Commitment, cfg.Executor.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown executor mode %q", cfg.Executor.Mode)
	}
}

// newNotifier fans events out to the log plus any configured Telegram chat and
// PaaS gateway. The PaaS client is returned separately for request auditing.
func newNotifier(ctx context.Context, cfg config.NotifyConfig, logger *zap.Logger) (notify.Notifier, *notify.PaaSClient) {
	out := notify.Multi{notify.Log{Logger: logger}}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logger.Warn("telegram disabled", zap.Error(err))
		} else {
			out = append(out, tg)
		}
	}
	var paas *notify.PaaSClient
	if strings.TrimSpace(cfg.PaaSBaseURL) != "" && strings.TrimSpace(cfg.PaaSAPIKey) != "" {
		p := &notify.PaaSClient{BaseURL: cfg.PaaSBaseURL, APIKey: cfg.PaaSAPIKey, Agent: cfg.PaaSAgent}
		lctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := p.Login(lctx)
		cancel()
		if err != nil {
			logger.Warn("paas login failed (logs/notify disabled)", zap.Error(err))
		} else {
			logger.Info("paas login ok")
			paas = p
			out = append(out, p)
		}
	}
	return out, paas
}

// newMarket builds the provider chains: DexScreener first for its pair
// depth, then pump.fun. The scan chain also drains the PumpPortal stream
// buffer when enabled; the pairs chain never does, so the volume trader
// cannot steal fresh launches from discovery.
func newMarket(cfg config.MarketConfig, store cache.Store, m *metrics.Registry, logger *zap.Logger) (scan, pairs *marketdata.Chain, stream *marketdata.PumpPortalStream) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	guard := marketdata.GuardOptions{RatePerSec: cfg.RatePerSec, Burst: cfg.Burst, Metrics: m}
	sources := []marketdata.Source{
		marketdata.NewGuard(&marketdata.DexScreener{
			BaseURL: cfg.DexScreenerURL,
			Chain:   "solana",
			HTTP:    httpClient,
			Cache:   store,
			TTL:     30 * time.Second,
		}, guard),
		marketdata.NewGuard(&marketdata.PumpFun{BaseURL: cfg.PumpFunURL, HTTP: httpClient}, guard),
	}
	pairs = &marketdata.Chain{Sources: sources, Cache: store, TTL: cfg.CacheTTL, Logger: logger}
	scan = &marketdata.Chain{Sources: sources, Cache: store, TTL: cfg.CacheTTL, Logger: logger}
	if cfg.StreamEnabled {
		stream = &marketdata.PumpPortalStream{URL: cfg.PumpPortalWSURL, Logger: logger}
		scan.Sources = append(append([]marketdata.Source(nil), sources...), stream)
	}
	return scan, pairs, stream
}

func newFees(cfg config.SolanaConfig, m *metrics.Registry, logger *zap.Logger) *fees.Service {
	return &fees.Service{
		Source:  &fees.RPCSampleSource{Client: rpc.New(cfg.RPCURL)},
		Logger:  logger,
		Metrics: m,
	}
}

func newCoordinator(cfg config.Config, repo repository.Repository, exec execution.Executor, n notify.Notifier, m *metrics.Registry, logger *zap.Logger) *wallet.Coordinator {
	return &wallet.Coordinator{
		Repo:         repo,
		Ledger:       wallet.NewSolanaLedger(cfg.Solana.RPCURL, cfg.Solana.Commitment),
		Executor:     exec,
		Notifier:     n,
		Logger:       logger,
		Metrics:      m,
		FundPacing:   cfg.Wallet.FundPacing,
		MinJitter:    cfg.Wallet.MinJitter,
		MaxJitter:    cfg.Wallet.MaxJitter,
		MinRemaining: decimal.NewFromFloat(cfg.Wallet.MinRemaining),
	}
}

type engineDeps struct {
	Repo     repository.Repository
	Market   marketdata.Source
	Pairs    marketdata.Source
	Fees     *fees.Service
	Executor execution.Executor
	Account  execution.Account
	Wallets  *wallet.Coordinator
	Notifier notify.Notifier
	Metrics  *metrics.Registry
	Logger   *zap.Logger
}

func newEngine(cfg config.Config, d engineDeps) (*engine.Engine, error) {
	store, err := strategy.NewStore(strategy.FromSettings(cfg.Sniper), d.Repo, d.Logger)
	if err != nil {
		return nil, fmt.Errorf("strategy config: %w", err)
	}
	book := position.NewBook()
	positions := &position.Manager{
		Book:        book,
		Executor:    d.Executor,
		Market:      d.Market,
		Account:     d.Account,
		Notifier:    d.Notifier,
		Repo:        d.Repo,
		Logger:      d.Logger,
		Metrics:     d.Metrics,
		Thresholds:  func() position.Thresholds { return store.Current().Thresholds() },
		CallTimeout: cfg.Engine.CallTimeout,
		Concurrency: cfg.Engine.MonitorConcurrency,
	}
	pairs := d.Pairs
	if pairs == nil {
		pairs = d.Market
	}
	trader := &volume.Trader{
		Market:     pairs,
		Strategies: func() []strategy.VolumeStrategy { return store.Current().Volume },
		Executor:   d.Executor,
		Account:    d.Account,
		Repo:       d.Repo,
		Notifier:   d.Notifier,
		Logger:     d.Logger,
		Metrics:    d.Metrics,
		Query:      cfg.Market.SearchQuery,
		Limit:      cfg.Market.RecentLimit,
	}
	if cfg.Volume.Batch != "" && d.Wallets != nil {
		trader.Batches = d.Wallets
		trader.Batch = cfg.Volume.Batch
	}
	return &engine.Engine{
		Market:     d.Market,
		Normalizer: signal.NewNormalizer(),
		Hub:        signal.NewHub(d.Repo, d.Logger, d.Metrics),
		Fees:       d.Fees,
		Ranker:     target.NewRanker(cfg.Engine.RankerCapacity),
		Admission: &admission.Controller{
			Book:     book,
			Limits:   func() admission.Limits { return store.Current().Limits() },
			Notifier: d.Notifier,
			Logger:   d.Logger,
			Metrics:  d.Metrics,
		},
		Positions: positions,
		Volume:    trader,
		Strategy:  store,
		Settings:  &engine.Settings{Repo: d.Repo},
		Repo:      d.Repo,
		Logger:    d.Logger,
		Metrics:   d.Metrics,
		Intervals: engine.Intervals{
			Scan:    cfg.Engine.ScanInterval,
			Monitor: cfg.Engine.MonitorInterval,
			Volume:  cfg.Engine.VolumeInterval,
		},
		Autostart: engine.Autostart{
			Scan:    cfg.Engine.Autostart.Scan,
			Monitor: cfg.Engine.Autostart.Monitor,
			Volume:  cfg.Engine.Autostart.Volume,
		},
		CallTimeout: cfg.Engine.CallTimeout,
		TargetTTL:   cfg.Engine.TargetTTL,
		Query:       cfg.Market.SearchQuery,
		RecentLimit: cfg.Market.RecentLimit,
	}, nil
}
