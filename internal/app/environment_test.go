package app

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/hlarb/hl/client"
	"github.com/betbot/hlarb/hl/types"
	"github.com/betbot/hlarb/internal/domain"
	"github.com/betbot/hlarb/internal/execution"
	"github.com/betbot/hlarb/internal/journal"
	"github.com/betbot/hlarb/pkg/config"
)

var testMaster = common.HexToAddress("0x2222222222222222222222222222222222222222")

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &config.Config{
		Network: types.NetworkTestnet,
		Key: config.KeyConfig{
			PrivateKeyHex: "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
		},
		AgentAddress:  crypto.PubkeyToAddress(key.PublicKey),
		MasterAddress: config.SomeAddress(testMaster),
		Trading: config.TradingConfig{
			PerpSymbol:        "HYPE",
			SpotSymbol:        "@107",
			BpsThreshold:      decimal.NewFromInt(5),
			PositionSizeUSD:   decimal.NewFromInt(12),
			SlippageTolerance: decimal.RequireFromString("0.05"),
		},
		Risk: config.RiskConfig{
			MaxPositionSizeUSD: decimal.NewFromInt(100),
			StopLossBps:        decimal.NewFromInt(50),
			Leverage:           2,
			BreakerMaxErrors:   3,
		},
		DryRun:      true,
		JournalPath: filepath.Join(t.TempDir(), "journal.db"),
	}
}

// venue 最小的 /info + /exchange 模拟
func venue(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == client.EndpointExchange {
			_, _ = w.Write([]byte(`{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"totalSz":"0.5","avgPx":"24.01","oid":9}}]}}}`))
			return
		}
		var req types.InfoRequest
		require.NoError(t, json.Unmarshal(body, &req))
		switch req.Type {
		case "meta":
			_, _ = w.Write([]byte(`{"universe":[{"name":"HYPE","szDecimals":2,"maxLeverage":10}]}`))
		case "spotMeta":
			_, _ = w.Write([]byte(`{"tokens":[],"universe":[]}`))
		case "l2Book":
			_, _ = w.Write([]byte(`{"coin":"HYPE","time":1,"levels":[[{"px":"23.9","sz":"10","n":1}],[{"px":"24.0","sz":"10","n":1}]]}`))
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewEnvironment_Wiring(t *testing.T) {
	cfg := testConfig(t)
	env, err := NewEnvironment(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { env.Shutdown(context.Background()) })

	assert.Equal(t, testMaster, env.Reconciler.Target())
	assert.Equal(t, testMaster, env.Exchange.Account())
	assert.Equal(t, cfg.AgentAddress, env.Client.Address())
	require.NotNil(t, env.Journal)
	assert.Same(t, env.Breaker, env.Engine.Breaker())
	assert.Equal(t, 2, env.Risk.Leverage())
}

func TestNewEnvironment_SignerMismatch(t *testing.T) {
	cfg := testConfig(t)
	cfg.AgentAddress = common.HexToAddress("0x1111111111111111111111111111111111111111")
	_, err := NewEnvironment(cfg)
	require.Error(t, err)
}

func TestNewEnvironment_WithoutJournal(t *testing.T) {
	cfg := testConfig(t)
	env, err := NewEnvironment(cfg, WithoutJournal())
	require.NoError(t, err)
	assert.Nil(t, env.Journal)

	var order []string
	env.ShutdownManager().OnShutdown("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	env.ShutdownManager().OnShutdown("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("boom")
	})
	assert.Equal(t, 1, env.Shutdown(context.Background()))
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestEnvironment_ExecuteEndToEnd(t *testing.T) {
	srv := venue(t)
	cfg := testConfig(t)
	cfg.DryRun = false

	env, err := NewEnvironment(cfg, WithClientOptions(client.WithHost(srv.URL)))
	require.NoError(t, err)
	t.Cleanup(func() { env.Shutdown(context.Background()) })

	exec, err := env.Engine.Execute(context.Background(), execution.TradeRequest{
		Symbol:      "HYPE",
		Side:        domain.SideBuy,
		NotionalUSD: cfg.Trading.PositionSizeUSD,
		TimeInForce: domain.TifIoc,
	})
	require.NoError(t, err)
	assert.True(t, exec.Sizing.LotSize.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, exec.Sizing.RoundedQuantity.Equal(decimal.RequireFromString("0.5")))
	accepted, ok := exec.Outcome().(domain.Accepted)
	require.True(t, ok)
	assert.True(t, accepted.FilledQuantity().Equal(decimal.RequireFromString("0.5")))

	recs, err := env.Journal.List(context.Background(), journal.ListOptions{Symbol: "HYPE"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "accepted", recs[0].Outcome)
	assert.Equal(t, int64(9), recs[0].ExchangeOID)

	got, err := env.Metrics.Gather()
	require.NoError(t, err)
	assert.Equal(t, 1.0, got["hlarb_orders_total|outcome=accepted|side=buy|symbol=HYPE"])
}
