package soa

import (
	"context"
	"time"

	"github.com/sourcegraph/conc"
)

// StartCompactor runs Compact every interval until ctx is done or stop is
// called. stop waits for the loop to exit.
func (t *Table) StartCompactor(ctx context.Context, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)

	var wg conc.WaitGroup
	wg.Go(func() {
		t.logger.Debug("soa: compactor started", "interval", interval)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				t.logger.Debug("soa: compactor stopped")
				return

			case <-ticker.C:
				if t.Compact() {
					stat := t.Stats()
					t.logger.Debug("soa: compacted",
						"rows", stat.NumIndices,
						"live", stat.Allocated,
						"moves", stat.Moves)
				}
			}
		}
	})

	return func() {
		cancel()
		wg.Wait()
	}
}
