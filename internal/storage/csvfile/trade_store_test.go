package csvfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clmm-swap-collector/internal/domain"
	"clmm-swap-collector/internal/storage"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestTradeStore_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "trades.csv")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(ctx, &domain.Trade{
		Timestamp: 1737444136,
		Symbol:    "SOL/USDC",
		Price:     236.6370042076378,
		Quantity:  2.608897681,
		Side:      domain.SideBuy,
	}))
	require.NoError(t, store.Append(ctx, &domain.Trade{
		Timestamp: 1737444137,
		Symbol:    "SOL/USDC",
		Price:     1e-7,
		Quantity:  617.359418,
		Side:      domain.SideSell,
	}))

	lines := readLines(t, path)
	assert.Equal(t, []string{
		"timestamp,symbol,trade_price,trade_quantity,trade_side",
		"1737444136,SOL/USDC,236.6370042076378,2.608897681,BUY",
		"1737444137,SOL/USDC,0.0000001,617.359418,SELL",
	}, lines)
}

func TestTradeStore_HeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	ctx := context.Background()
	trade := &domain.Trade{Timestamp: 1, Symbol: "X", Price: 1, Quantity: 1, Side: domain.SideBuy}

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(ctx, trade))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Append(ctx, trade))
	require.NoError(t, second.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 3)

	headers := 0
	for _, l := range lines {
		if strings.HasPrefix(l, "timestamp,") {
			headers++
		}
	}
	assert.Equal(t, 1, headers)
}

func TestTradeStore_EmptyExistingFileGetsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.Equal(t, []string{strings.Join(Header, ",")}, readLines(t, path))
}

func TestTradeStore_SymbolQuoted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(context.Background(), &domain.Trade{
		Timestamp: 5, Symbol: "A,B", Price: 2, Quantity: 3, Side: domain.SideSell,
	}))

	lines := readLines(t, path)
	assert.Equal(t, `5,"A,B",2,3,SELL`, lines[1])
}

func TestTradeStore_InvalidAndClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)

	err = store.Append(ctx, nil)
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	err = store.Append(ctx, &domain.Trade{Timestamp: 1, Symbol: "X", Side: domain.SideBuy})
	assert.Error(t, err)
}
