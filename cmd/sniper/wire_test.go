package main

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solsniper/internal/cache"
	"solsniper/internal/config"
	"solsniper/internal/execution"
	memoryrepository "solsniper/internal/repository/memory"
)

func TestNewExecutorModes(t *testing.T) {
	var cfg config.Config

	exec, err := newExecutor(cfg, execution.Account{})
	require.NoError(t, err)
	assert.IsType(t, &execution.Paper{}, exec)

	cfg.Executor.Mode = "jupiter"
	_, err = newExecutor(cfg, execution.Account{})
	assert.Error(t, err, "live mode without a key")

	key := solana.NewWallet().PrivateKey
	acct, err := execution.AccountFromKey("main", key.String())
	require.NoError(t, err)
	exec, err = newExecutor(cfg, acct)
	require.NoError(t, err)
	assert.IsType(t, &execution.Jupiter{}, exec)

	cfg.Executor.Mode = "bogus"
	_, err = newExecutor(cfg, acct)
	assert.Error(t, err)
}

func TestMainAccount(t *testing.T) {
	acct, err := mainAccount(config.SolanaConfig{})
	require.NoError(t, err)
	assert.Empty(t, acct.Address)

	_, err = mainAccount(config.SolanaConfig{PrivateKey: "not-a-key"})
	assert.Error(t, err)

	w := solana.NewWallet()
	acct, err = mainAccount(config.SolanaConfig{PrivateKey: w.PrivateKey.String()})
	require.NoError(t, err)
	assert.Equal(t, w.PublicKey().String(), acct.Address)
}

func TestNewMarketKeepsStreamOffPairsChain(t *testing.T) {
	store := cache.NewMemoryStore()
	cfg := config.MarketConfig{StreamEnabled: true, Timeout: time.Second}
	scan, pairs, stream := newMarket(cfg, store, nil, zap.NewNop())
	require.NotNil(t, stream)
	assert.Len(t, scan.Sources, 3)
	assert.Len(t, pairs.Sources, 2)

	cfg.StreamEnabled = false
	scan, _, stream = newMarket(cfg, store, nil, zap.NewNop())
	assert.Nil(t, stream)
	assert.Len(t, scan.Sources, 2)
}

func TestNewEngineFromDefaults(t *testing.T) {
	cfg, err := config.Load("", true)
	require.NoError(t, err)
	repo := memoryrepository.New()
	exec := &execution.Paper{}
	scan, pairs, _ := newMarket(cfg.Market, cache.NewMemoryStore(), nil, zap.NewNop())

	eng, err := newEngine(cfg, engineDeps{
		Repo:     repo,
		Market:   scan,
		Pairs:    pairs,
		Fees:     newFees(cfg.Solana, nil, zap.NewNop()),
		Executor: exec,
		Wallets:  newCoordinator(cfg, repo, exec, nil, nil, zap.NewNop()),
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, eng.Strategy.Current().Volume)
	assert.Len(t, eng.Status(), 3)
}
