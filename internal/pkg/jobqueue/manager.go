package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/internal/pkg/env"
)

// DefaultPromoteInterval is how often delayed retries are checked
const DefaultPromoteInterval = 5 * time.Second

// Manager manages the global job queue and background tasks
type Manager struct {
	queue           *Queue
	promoteInterval time.Duration
	promoteTicker   *time.Ticker
	stopCh          chan struct{}
	wg              sync.WaitGroup
	mu              sync.Mutex
	running         bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		queue := NewQueue(env.GetEnvInt("JOBQUEUE_WORKERS", DefaultWorkers))
		queue.SetStuckMaxAge(env.GetEnvDuration("JOBQUEUE_STUCK_MAX_AGE", DefaultStuckMaxAge))
		globalManager = NewManager(queue, env.GetEnvDuration("JOBQUEUE_PROMOTE_INTERVAL", DefaultPromoteInterval))
	})
	return globalManager
}

// NewManager wraps queue with the background tasks that keep it moving
func NewManager(queue *Queue, promoteInterval time.Duration) *Manager {
	if promoteInterval <= 0 {
		promoteInterval = DefaultPromoteInterval
	}
	return &Manager{
		queue:           queue,
		promoteInterval: promoteInterval,
		stopCh:          make(chan struct{}),
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	m.promoteTicker = time.NewTicker(m.promoteInterval)
	m.wg.Add(1)
	go m.promoteWorker(m.stopCh)

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.promoteTicker != nil {
		m.promoteTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// promoteWorker periodically moves due retries back into the pending queue
func (m *Manager) promoteWorker(stopCh <-chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started retry promoter (interval: %s)", m.promoteInterval)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Retry promoter stopping")
			return
		case <-m.promoteTicker.C:
			if _, err := m.PromoteDueOnce(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Error promoting delayed jobs: %v", err)
			}
		}
	}
}

// PromoteDueOnce runs a single promotion pass (admin use and tests).
func (m *Manager) PromoteDueOnce(ctx context.Context) (int, error) {
	n, err := m.queue.promoteDue(ctx, time.Now())
	if n > 0 {
		log.Debugf("[JobQueue Manager] Promoted %d delayed job(s)", n)
	}
	return n, err
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
