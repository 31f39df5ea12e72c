// Package worker implements the background maintenance of the ledger
// state, currently the periodic purge of expired transactions.
package worker

import (
	"sync"
	"time"

	"github.com/tallychain/tally/foundation/ledger/state"
)

// purgeInterval represents how often the ledger sweeps received
// transactions whose expiry has passed.
const purgeInterval = time.Minute

// Worker manages the maintenance goroutines of the ledger.
type Worker struct {
	state     *state.State
	wg        sync.WaitGroup
	ticker    *time.Ticker
	shut      chan struct{}
	purge     chan bool
	evHandler state.EventHandler
}

// Run creates the worker and registers it with the state. During
// initialization the worker needs access to the state.
func Run(st *state.State, evHandler state.EventHandler) {
	w := Worker{
		state:     st,
		ticker:    time.NewTicker(purgeInterval),
		shut:      make(chan struct{}),
		purge:     make(chan bool, 1),
		evHandler: evHandler,
	}
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.purgeOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	for i := 0; i < g; i++ {
		<-hasStarted
	}
}

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// =============================================================================

// SignalPurge queues up a purge operation outside the regular cadence. If a
// signal is already pending the sweep will happen anyway, just return.
func (w *Worker) SignalPurge() {
	select {
	case w.purge <- true:
	default:
	}
	w.evHandler("worker: SignalPurge: purge signaled")
}

// purgeOperations handles dropping expired transactions on a cadence and on
// demand.
func (w *Worker) purgeOperations() {
	w.evHandler("worker: purgeOperations: G started")
	defer w.evHandler("worker: purgeOperations: G completed")

	for {
		select {
		case <-w.purge:
			if !w.isShutdown() {
				w.runPurgeOperation()
			}
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.runPurgeOperation()
			}
		case <-w.shut:
			w.evHandler("worker: purgeOperations: received shut signal")
			return
		}
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}

// =============================================================================

// runPurgeOperation sweeps the transaction table for expired transactions.
func (w *Worker) runPurgeOperation() {
	w.evHandler("worker: runPurgeOperation: started")
	defer w.evHandler("worker: runPurgeOperation: completed")

	purged := w.state.PurgeExpired(uint64(time.Now().Unix()))
	if len(purged) > 0 {
		w.evHandler("worker: runPurgeOperation: purged %d expired transactions", len(purged))
	}
}
