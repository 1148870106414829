package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/hlarb/internal/domain"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "sub", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func record(symbol, outcome string) domain.ExecutionRecord {
	return domain.ExecutionRecord{
		At:             time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC),
		Symbol:         symbol,
		Side:           domain.SideBuy,
		TimeInForce:    domain.TifIoc,
		NotionalUSD:    decimal.RequireFromString("12"),
		ReferencePrice: decimal.RequireFromString("24.0"),
		Quantity:       decimal.RequireFromString("0.5"),
		LimitPrice:     decimal.RequireFromString("25.2"),
		Cloid:          "0x0123456789abcdef0123456789abcdef",
		Outcome:        outcome,
		FilledQuantity: decimal.Zero,
	}
}

func TestJournal_AppendAndList(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	filled := record("@107", "accepted")
	filled.ExchangeOID = 77
	filled.FilledQuantity = decimal.RequireFromString("0.5")
	filled.AvgFillPrice = decimal.NewNullDecimal(decimal.RequireFromString("24.01"))
	id1, err := j.Append(ctx, filled)
	require.NoError(t, err)

	rejected := record("HYPE", "rejected")
	rejected.Reason = "Insufficient margin"
	id2, err := j.Append(ctx, rejected)
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	all, err := j.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, id2, all[0].ID, "按 id 倒序")

	got := all[1]
	assert.Equal(t, "@107", got.Symbol)
	assert.Equal(t, domain.SideBuy, got.Side)
	assert.Equal(t, domain.TifIoc, got.TimeInForce)
	assert.True(t, got.At.Equal(filled.At))
	assert.True(t, got.LimitPrice.Equal(decimal.RequireFromString("25.2")))
	assert.Equal(t, int64(77), got.ExchangeOID)
	require.True(t, got.AvgFillPrice.Valid)
	assert.True(t, got.AvgFillPrice.Decimal.Equal(decimal.RequireFromString("24.01")))
	assert.Equal(t, filled.Cloid, got.Cloid)

	assert.Equal(t, "Insufficient margin", all[0].Reason)
	assert.False(t, all[0].AvgFillPrice.Valid)
	assert.Zero(t, all[0].ExchangeOID)
}

func TestJournal_ListFilterAndLimit(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := j.Append(ctx, record("HYPE", "accepted"))
		require.NoError(t, err)
	}
	dry := record("@107", "dry_run")
	dry.DryRun = true
	_, err := j.Append(ctx, dry)
	require.NoError(t, err)

	hype, err := j.List(ctx, ListOptions{Symbol: "HYPE", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, hype, 3)

	spot, err := j.List(ctx, ListOptions{Symbol: "@107"})
	require.NoError(t, err)
	require.Len(t, spot, 1)
	assert.True(t, spot[0].DryRun)
}

func TestJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.Append(context.Background(), record("HYPE", "accepted"))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	recs, err := j.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestJournal_RequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
