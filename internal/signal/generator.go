package signal

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/richgang/indice-killer/internal/models"
	"github.com/richgang/indice-killer/internal/session"
)

// Decline explains why no signal was produced
type Decline string

const (
	DeclineNone            Decline = ""
	DeclineSessionInactive Decline = "session_inactive"
	DeclineLowConfidence   Decline = "low_confidence"
	DeclineNoDirection     Decline = "no_direction"
)

// StructureSource produces the feature bundle for a symbol at a price
type StructureSource interface {
	Analyze(symbol string, price float64) models.StructureAnalysis
}

// Config holds generator thresholds and injectable sources
type Config struct {
	MinConfidence     int
	PendingConfidence int
	PendingDraw       float64

	// Draw returns a uniform value in [0, 1) for the pending decision
	Draw func() float64
	Now  func() time.Time
	// NewID returns a signal identifier
	NewID func() string
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		MinConfidence:     80,
		PendingConfidence: 90,
		PendingDraw:       0.6,
	}
}

// Generator turns a quote into a trade signal or a decline reason
type Generator struct {
	cfg       Config
	calendar  *session.Calendar
	structure StructureSource
	direction *DirectionMachine
}

// NewGenerator creates a generator
func NewGenerator(cfg Config, calendar *session.Calendar, structure StructureSource, direction *DirectionMachine) *Generator {
	if cfg.Now == nil {
		cfg.Now = calendar.Now
	}
	if cfg.Draw == nil {
		var mu sync.Mutex
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		cfg.Draw = func() float64 {
			mu.Lock()
			defer mu.Unlock()
			return rng.Float64()
		}
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	return &Generator{
		cfg:       cfg,
		calendar:  calendar,
		structure: structure,
		direction: direction,
	}
}

// Direction exposes the generator's direction state machine
func (g *Generator) Direction() *DirectionMachine {
	return g.direction
}

// Generate evaluates symbol at quote's price. An empty force lets the held
// lock or the market structure decide the direction. The returned state is
// the direction lock the signal was issued under.
func (g *Generator) Generate(symbol string, quote *models.Quote, force models.Direction) (*models.Signal, models.DirectionState, Decline) {
	now := g.cfg.Now()

	sess := g.calendar.Session(symbol, now)
	if !sess.Active {
		return g.decline(symbol, DeclineSessionInactive)
	}

	analysis := g.structure.Analyze(symbol, quote.Price)
	analysis.SessionAligned = sess.Active
	confidence := Score(analysis)
	if confidence < g.cfg.MinConfidence {
		return g.decline(symbol, DeclineLowConfidence)
	}

	derived := directionFor(analysis.StructureType)
	reason := fmt.Sprintf("%s structure on %s", analysis.StructureType, symbol)
	if force != "" {
		reason = fmt.Sprintf("forced %s on %s", force, symbol)
	}
	state, ok := g.direction.Resolve(force, derived, reason, now)
	if !ok {
		return g.decline(symbol, DeclineNoDirection)
	}

	sig := &models.Signal{
		ID:         g.cfg.NewID(),
		Symbol:     symbol,
		Direction:  state.CurrentDirection,
		Confidence: confidence,
		Status:     models.StatusActive,
		CreatedAt:  now.UTC(),
		Analysis:   analysis,
		Session:    sess.Name,
	}
	applyLevels(sig, quote.Price)

	if confidence >= g.cfg.PendingConfidence && g.cfg.Draw() > g.cfg.PendingDraw {
		sig.Status = models.StatusPending
		sig.IsPending = true
	}

	generationOutcomes.WithLabelValues(symbol, "generated").Inc()
	return sig, state, DeclineNone
}

func (g *Generator) decline(symbol string, reason Decline) (*models.Signal, models.DirectionState, Decline) {
	generationOutcomes.WithLabelValues(symbol, string(reason)).Inc()
	return nil, g.direction.Current(), reason
}

func directionFor(st models.StructureType) models.Direction {
	switch st {
	case models.StructureHigherHighs:
		return models.DirectionBuy
	case models.StructureLowerLows:
		return models.DirectionSell
	default:
		return ""
	}
}

// applyLevels sets entry, stop and targets around price
func applyLevels(sig *models.Signal, price float64) {
	if sig.Direction == models.DirectionBuy {
		sig.EntryPrice = models.Round2(price * 0.999)
		sig.StopLoss = models.Round2(price * 0.995)
		sig.TP1 = models.Round2(price * 1.003)
		sig.TP2 = models.Round2(price * 1.006)
		sig.TP3 = models.Round2(price * 1.012)
		return
	}
	sig.EntryPrice = models.Round2(price * 1.001)
	sig.StopLoss = models.Round2(price * 1.005)
	sig.TP1 = models.Round2(price * 0.997)
	sig.TP2 = models.Round2(price * 0.994)
	sig.TP3 = models.Round2(price * 0.988)
}
