package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/richgang/indice-killer/internal/models"
	"github.com/richgang/indice-killer/internal/signal"
	"github.com/richgang/indice-killer/internal/storage"
	"github.com/richgang/indice-killer/pkg/logger"
)

// Broadcaster fans a message out to real-time subscribers. Delivery is best
// effort; implementations log their own failures.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg models.BroadcastMessage)
}

// Fanout broadcasts to several sinks in order
type Fanout []Broadcaster

// Broadcast implements Broadcaster
func (f Fanout) Broadcast(ctx context.Context, msg models.BroadcastMessage) {
	for _, b := range f {
		if b != nil {
			b.Broadcast(ctx, msg)
		}
	}
}

// QuoteSource returns the current quote for a symbol and never fails
type QuoteSource interface {
	Get(ctx context.Context, symbol string) *models.Quote
}

// Service wires quote resolution, signal generation, persistence and
// broadcast together.
type Service struct {
	// gate serializes direction changes in this process; locker extends that
	// to every process sharing the direction store.
	gate   chan struct{}
	locker storage.DirectionLocker

	markets     *Markets
	quotes      QuoteSource
	generator   *signal.Generator
	signals     storage.SignalStorage
	directions  storage.DirectionStorage
	broadcaster Broadcaster
}

// NewService creates the signal service
func NewService(
	quotes QuoteSource,
	generator *signal.Generator,
	signals storage.SignalStorage,
	directions storage.DirectionStorage,
	broadcaster Broadcaster,
	symbols []string,
) *Service {
	if quotes == nil {
		panic("quotes cannot be nil")
	}
	if generator == nil {
		panic("generator cannot be nil")
	}
	if signals == nil {
		panic("signals cannot be nil")
	}
	if directions == nil {
		panic("directions cannot be nil")
	}
	if broadcaster == nil {
		broadcaster = Fanout(nil)
	}
	locker, _ := directions.(storage.DirectionLocker)
	return &Service{
		gate:        make(chan struct{}, 1),
		locker:      locker,
		markets:     NewMarkets(quotes, symbols),
		quotes:      quotes,
		generator:   generator,
		signals:     signals,
		directions:  directions,
		broadcaster: broadcaster,
	}
}

// Symbols returns the symbols served by the feed and the all-markets view
func (s *Service) Symbols() []string {
	return s.markets.Symbols()
}

// Restore loads the persisted direction state into the generator
func (s *Service) Restore(ctx context.Context) error {
	state, err := s.directions.LoadDirection(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load direction state: %w", err)
	}
	s.generator.Direction().Restore(state)
	logger.Info("Direction state restored",
		logger.String("direction", string(state.CurrentDirection)),
		logger.String("reason", state.Reason),
	)
	return nil
}

// Quote returns the cached quote for symbol
func (s *Service) Quote(ctx context.Context, symbol string) *models.Quote {
	return s.quotes.Get(ctx, symbol)
}

// MarketSnapshot returns a summary of every served symbol
func (s *Service) MarketSnapshot(ctx context.Context) map[string]models.Summary {
	return s.markets.MarketSnapshot(ctx)
}

// GenerateSignal evaluates symbol and, when a signal is produced, persists
// it, persists the direction lock and broadcasts it. A decline is not an
// error. The stored direction state is read before the direction is
// resolved, so a lock taken or released by another process is honored. When
// persistence fails the in-memory lock is rolled back.
func (s *Service) GenerateSignal(ctx context.Context, symbol string, force models.Direction) (*models.Signal, signal.Decline, error) {
	quote := s.quotes.Get(ctx, symbol)

	unlock, err := s.lockDirection(ctx)
	if err != nil {
		return nil, signal.DeclineNone, err
	}
	gen, err := s.generateLocked(ctx, symbol, quote, force)
	unlock()
	if err != nil {
		return nil, signal.DeclineNone, err
	}
	if gen.sig == nil {
		logger.WithContext(ctx).Info("No signal generated",
			logger.String("symbol", symbol),
			logger.String("reason", string(gen.decline)),
		)
		return nil, gen.decline, nil
	}

	logger.WithContext(ctx).Info("Signal generated",
		logger.String("signal_id", gen.sig.ID),
		logger.String("symbol", gen.sig.Symbol),
		logger.String("direction", string(gen.sig.Direction)),
		logger.Int("confidence", gen.sig.Confidence),
		logger.String("status", string(gen.sig.Status)),
	)

	s.broadcaster.Broadcast(ctx, models.NewSignalMessage(gen.sig))
	return gen.sig, signal.DeclineNone, nil
}

type generation struct {
	sig     *models.Signal
	decline signal.Decline
}

func (s *Service) generateLocked(ctx context.Context, symbol string, quote *models.Quote, force models.Direction) (generation, error) {
	machine := s.generator.Direction()
	prior, err := s.syncDirection(ctx)
	if err != nil {
		return generation{}, err
	}

	sig, state, decline := s.generator.Generate(symbol, quote, force)
	if sig == nil {
		return generation{decline: decline}, nil
	}

	if err := s.signals.WriteSignal(ctx, sig); err != nil {
		machine.Restore(prior)
		return generation{}, fmt.Errorf("failed to store signal: %w", err)
	}
	if err := s.directions.SaveDirection(ctx, state); err != nil {
		machine.Restore(prior)
		return generation{}, fmt.Errorf("failed to store direction state: %w", err)
	}
	return generation{sig: sig}, nil
}

// syncDirection loads the stored direction state into the generator and
// returns it. Nothing stored means NEUTRAL.
func (s *Service) syncDirection(ctx context.Context) (models.DirectionState, error) {
	machine := s.generator.Direction()
	state, err := s.directions.LoadDirection(ctx)
	switch {
	case err == nil:
		machine.Restore(state)
	case errors.Is(err, storage.ErrNotFound):
		machine.Restore(models.NeutralDirectionState())
	default:
		return models.DirectionState{}, fmt.Errorf("failed to load direction state: %w", err)
	}
	return machine.Current(), nil
}

// lockDirection takes the local gate and, with a shared store, its lease
func (s *Service) lockDirection(ctx context.Context) (func(), error) {
	select {
	case s.gate <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to acquire direction lock: %w", ctx.Err())
	}
	if s.locker == nil {
		return func() { <-s.gate }, nil
	}
	release, err := s.locker.LockDirection(ctx)
	if err != nil {
		<-s.gate
		return nil, err
	}
	return func() {
		release()
		<-s.gate
	}, nil
}

// Direction returns the stored direction state, falling back to the
// in-memory state when storage has none or fails.
func (s *Service) Direction(ctx context.Context) models.DirectionState {
	state, err := s.directions.LoadDirection(ctx)
	if err == nil {
		return state
	}
	if !errors.Is(err, storage.ErrNotFound) {
		logger.WithContext(ctx).Warn("Failed to load direction state, using in-memory state",
			logger.ErrorField(err),
		)
	}
	return s.generator.Direction().Current()
}

// ResetDirection returns the direction to NEUTRAL and persists it. Other
// processes pick the reset up on their next generation.
func (s *Service) ResetDirection(ctx context.Context) (models.DirectionState, error) {
	unlock, err := s.lockDirection(ctx)
	if err != nil {
		return models.DirectionState{}, err
	}
	defer unlock()

	machine := s.generator.Direction()
	prior := machine.Current()
	state := machine.Reset()
	if err := s.directions.SaveDirection(ctx, state); err != nil {
		machine.Restore(prior)
		return state, fmt.Errorf("failed to store direction state: %w", err)
	}
	logger.WithContext(ctx).Info("Direction reset to NEUTRAL")
	return state, nil
}

// ActiveSignals lists live signals, newest first
func (s *Service) ActiveSignals(ctx context.Context) ([]*models.Signal, error) {
	return s.signals.ListActiveSignals(ctx, storage.DefaultListLimit)
}

// PendingSignals lists pending signals, highest confidence first
func (s *Service) PendingSignals(ctx context.Context) ([]*models.Signal, error) {
	return s.signals.ListPendingSignals(ctx, storage.DefaultListLimit)
}
