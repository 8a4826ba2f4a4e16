package history

import (
	"math/rand"
	"sync"
	"time"

	"github.com/richgang/indice-killer/internal/models"
	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
)

const (
	// DefaultCandles is the number of one-minute candles in a chart
	DefaultCandles = 100
	// DefaultEMAPeriod is the window of the EMA overlay
	DefaultEMAPeriod = 20

	maxVariation = 0.002
	minVolume    = 10000
	maxVolume    = 50000
)

// Candle is one simulated one-minute bar with its EMA overlay value
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
	// EMA is nil until the overlay window is filled
	EMA *float64 `json:"ema,omitempty"`
}

// Builder synthesizes chart history around a reference price
type Builder struct {
	mu        sync.Mutex
	rng       *rand.Rand
	now       func() time.Time
	count     int
	emaPeriod int
}

// NewBuilder creates a builder. A nil rng is seeded from the clock and a nil
// now uses time.Now.
func NewBuilder(rng *rand.Rand, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Builder{
		rng:       rng,
		now:       now,
		count:     DefaultCandles,
		emaPeriod: DefaultEMAPeriod,
	}
}

// Build returns count candles ending one minute before now, oldest first.
// Candle i drifts from price by a uniform variation scaled by i/count.
func (b *Builder) Build(price float64) []Candle {
	b.mu.Lock()
	defer b.mu.Unlock()

	end := b.now().UTC()
	candles := make([]Candle, 0, b.count)
	series := techan.NewTimeSeries()

	for i := 0; i < b.count; i++ {
		ts := end.Add(-time.Duration(b.count-i) * time.Minute)
		variation := -maxVariation + b.rng.Float64()*2*maxVariation
		p := price * (1 + variation*float64(i)/float64(b.count))

		c := Candle{
			Time:   ts,
			Open:   models.Round2(p * 0.999),
			High:   models.Round2(p * 1.001),
			Low:    models.Round2(p * 0.998),
			Close:  models.Round2(p),
			Volume: minVolume + b.rng.Int63n(maxVolume-minVolume+1),
		}
		candles = append(candles, c)
		series.AddCandle(toTechan(c))
	}

	ema := techan.NewEMAIndicator(techan.NewClosePriceIndicator(series), b.emaPeriod)
	for i := b.emaPeriod - 1; i < len(candles); i++ {
		v := models.Round2(ema.Calculate(i).Float())
		candles[i].EMA = &v
	}
	return candles
}

func toTechan(c Candle) *techan.Candle {
	candle := techan.NewCandle(techan.NewTimePeriod(c.Time, time.Minute))
	candle.OpenPrice = big.NewDecimal(c.Open)
	candle.MaxPrice = big.NewDecimal(c.High)
	candle.MinPrice = big.NewDecimal(c.Low)
	candle.ClosePrice = big.NewDecimal(c.Close)
	candle.Volume = big.NewDecimal(float64(c.Volume))
	return candle
}
