package updater

import (
	"log"
	"sync"
	"time"

	"github.com/zedmarley2/pars-tabela-sub000/internal/models"
)

// StaleRunTimeout is the age after which an IN_PROGRESS run is assumed
// abandoned (crashed process) and force-failed by the sweep.
const StaleRunTimeout = 10 * time.Minute

const staleRunError = "İşlem zaman aşımına uğradı (10 dakika) ve otomatik olarak başarısız sayıldı"

// Gate is the single-flight lock preventing concurrent update/rollback runs.
// It is advisory, in-process state: it does not coordinate across processes
// or hosts.
type Gate struct {
	mu      sync.Mutex
	running bool
}

// TryAcquire takes the lock if free. It never blocks or queues.
func (g *Gate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}
	g.running = true
	return true
}

// Release unconditionally clears the lock
func (g *Gate) Release() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}

// Held reports the current lock state (status endpoint only; racy by nature)
func (g *Gate) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// SweepStale force-fails IN_PROGRESS runs older than StaleRunTimeout and, if
// any were timed out, clears the gate as a safety net against a crashed run
// leaving it set. Safe to call repeatedly; a second sweep is a no-op.
func (o *Orchestrator) SweepStale() {
	cutoff := time.Now().Add(-StaleRunTimeout)
	now := time.Now()

	res := o.db.Model(&models.UpdateLog{}).
		Where("status = ? AND started_at < ?", models.RunInProgress, cutoff).
		Updates(map[string]interface{}{
			"status":       models.RunFailed,
			"error":        staleRunError,
			"completed_at": now,
		})
	if res.Error != nil {
		log.Printf("Stale run sweep failed: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("Stale run sweep: force-failed %d abandoned run(s)", res.RowsAffected)
		o.gate.Release()
	}
}
