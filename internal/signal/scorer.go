package signal

import "github.com/richgang/indice-killer/internal/models"

// Feature weights, summing to 100
const (
	WeightHTFStructure      = 25
	WeightLiquiditySwept    = 20
	WeightDisplacement      = 20
	WeightCleanPullback     = 15
	WeightSessionAligned    = 10
	WeightNoCounterPressure = 10
)

// Score maps an analysis to a confidence in [0, 100]
func Score(a models.StructureAnalysis) int {
	score := 0
	if a.HTFStructureClear {
		score += WeightHTFStructure
	}
	if a.LiquiditySwept {
		score += WeightLiquiditySwept
	}
	if a.StrongDisplacement {
		score += WeightDisplacement
	}
	if a.CleanPullback {
		score += WeightCleanPullback
	}
	if a.SessionAligned {
		score += WeightSessionAligned
	}
	if a.NoCounterPressure {
		score += WeightNoCounterPressure
	}
	if score > 100 {
		return 100
	}
	return score
}
