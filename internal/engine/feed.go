package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/richgang/indice-killer/internal/models"
	"github.com/richgang/indice-killer/pkg/logger"
)

// Feed periodically pushes a market_update with every symbol's quote
// summary. It only reads quotes and never touches direction state.
type Feed struct {
	source      SnapshotSource
	broadcaster Broadcaster
	interval    time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewFeed creates a feed ticking every interval
func NewFeed(source SnapshotSource, broadcaster Broadcaster, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Feed{
		source:      source,
		broadcaster: broadcaster,
		interval:    interval,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the feed loop
func (f *Feed) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return fmt.Errorf("market feed is already running")
	}
	f.running = true

	logger.Info("Starting market feed",
		logger.Duration("interval", f.interval),
		logger.Int("symbols", len(f.source.Symbols())),
	)

	f.wg.Add(1)
	go f.run()
	return nil
}

// Stop stops the feed loop
func (f *Feed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.mu.Unlock()

	logger.Info("Stopping market feed")
	f.cancel()
	f.wg.Wait()
	logger.Info("Market feed stopped")
}

func (f *Feed) run() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.Tick(f.ctx)
		}
	}
}

// Tick resolves all quotes and broadcasts one market_update (exported for testing)
func (f *Feed) Tick(ctx context.Context) {
	snapshot := f.source.MarketSnapshot(ctx)
	f.broadcaster.Broadcast(ctx, models.MarketUpdateMessage(snapshot))
}
