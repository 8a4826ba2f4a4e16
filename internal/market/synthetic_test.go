package market

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthetic_Bounds(t *testing.T) {
	s := NewSynthetic(rand.New(rand.NewSource(42)), func() time.Time { return fixedNow })

	for _, symbol := range []string{"US30", "US100", "GER30", "UNKNOWN"} {
		base := BasePrice(symbol)
		for i := 0; i < 200; i++ {
			q := s.Quote(symbol)
			assert.GreaterOrEqual(t, q.Price, base*0.995-0.01, symbol)
			assert.LessOrEqual(t, q.Price, base*1.005+0.01, symbol)
			assert.GreaterOrEqual(t, q.Volume, int64(100000))
			assert.LessOrEqual(t, q.Volume, int64(500000))
			assert.Greater(t, q.High, q.Low)
			assert.InDelta(t, q.Price*1.002, q.High, 0.02)
			assert.InDelta(t, q.Price*0.998, q.Low, 0.02)
			assert.InDelta(t, q.Price*0.999, q.Open, 0.02)
		}
	}
}

func TestSynthetic_UnknownSymbolUsesDefaultBase(t *testing.T) {
	assert.Equal(t, 40000.0, BasePrice("SPX"))

	q, err := NewSynthetic(nil, nil).Fetch(context.Background(), "SPX")
	require.NoError(t, err)
	assert.Equal(t, "SPX", q.Symbol)
	assert.InDelta(t, 40000, q.Price, 40000*0.0051)
	assert.Equal(t, "synthetic", q.Source)
}

func TestSynthetic_RoundsToCents(t *testing.T) {
	s := NewSynthetic(rand.New(rand.NewSource(7)), nil)
	q := s.Quote("US30")

	for _, v := range []float64{q.Price, q.Change, q.ChangePercent, q.High, q.Low, q.Open} {
		assert.Equal(t, math.Round(v*100)/100, v)
	}
}
