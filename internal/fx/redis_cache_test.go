package fx

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/josh-kwaku/custody-ledger/internal/testutil"
)

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	client := testutil.SetupTestRedis(t)

	source := &stubOracle{rates: map[string]decimal.Decimal{
		"BTC": decimal.NewFromInt(85000),
		"ETH": decimal.NewFromInt(3000),
	}}
	c := NewRedisCache(client, source, time.Second, zap.NewNop().Sugar())

	t.Run("miss reads through and populates", func(t *testing.T) {
		rates, err := c.Rates(ctx)
		require.NoError(t, err)
		assert.Equal(t, "85000", rates["BTC"].String())
		assert.Equal(t, 1, source.calls)

		val, err := client.Get(ctx, "exchange_rate:ETH").Result()
		require.NoError(t, err)
		assert.Equal(t, "3000", val)
	})

	t.Run("hit skips source", func(t *testing.T) {
		rates, err := c.Rates(ctx)
		require.NoError(t, err)
		assert.Len(t, rates, 2)
		assert.Equal(t, 1, source.calls)
	})

	t.Run("entries expire", func(t *testing.T) {
		time.Sleep(2 * time.Second)
		_, err := c.Rates(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, source.calls)
	})

	t.Run("invalidate forces reload", func(t *testing.T) {
		require.NoError(t, c.Invalidate(ctx))
		_, err := c.Rates(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, source.calls)
	})
}
