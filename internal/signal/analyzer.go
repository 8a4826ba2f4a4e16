package signal

import (
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/richgang/indice-killer/internal/models"
)

// SeedFunc returns the random seed used to synthesize a symbol's structure at now
type SeedFunc func(symbol string, now time.Time) int64

// DefaultSeed mixes the second-of-epoch modulo 1000 with an FNV-1a hash of the
// symbol, so one symbol keeps the same structure for the whole second.
func DefaultSeed(symbol string, now time.Time) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return now.Unix()%1000 + int64(h.Sum32())
}

var structureTypes = []models.StructureType{
	models.StructureHigherHighs,
	models.StructureLowerLows,
	models.StructureRanging,
}

// Analyzer synthesizes a structure feature bundle from a seeded generator
type Analyzer struct {
	seed SeedFunc
	now  func() time.Time
}

// NewAnalyzer creates an analyzer. Nil arguments select DefaultSeed and time.Now.
func NewAnalyzer(seed SeedFunc, now func() time.Time) *Analyzer {
	if seed == nil {
		seed = DefaultSeed
	}
	if now == nil {
		now = time.Now
	}
	return &Analyzer{seed: seed, now: now}
}

// Analyze draws the features in a fixed order. SessionAligned is set to true
// and is expected to be overwritten by the caller.
func (a *Analyzer) Analyze(symbol string, price float64) models.StructureAnalysis {
	rng := rand.New(rand.NewSource(a.seed(symbol, a.now())))

	analysis := models.StructureAnalysis{
		HTFStructureClear:  rng.Float64() > 0.3,
		LiquiditySwept:     rng.Float64() > 0.4,
		StrongDisplacement: rng.Float64() > 0.35,
		CleanPullback:      rng.Float64() > 0.3,
		SessionAligned:     true,
		NoCounterPressure:  rng.Float64() > 0.25,
	}
	analysis.StructureType = structureTypes[rng.Intn(len(structureTypes))]
	analysis.KeyLevels = models.KeyLevels{
		Resistance: models.Round2(price * 1.005),
		Support:    models.Round2(price * 0.995),
		FVGZone:    models.Round2(price * 0.998),
	}
	return analysis
}
