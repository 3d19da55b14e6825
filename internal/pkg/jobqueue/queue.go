package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PayFox/internal/pkg/billing"
	"github.com/ManuelReschke/PayFox/internal/pkg/cache"
)

const (
	// Redis key prefixes
	JobKeyPrefix     = "billing_job:"
	JobQueueKey      = "billing_job_queue"
	JobProcessingKey = "billing_job_processing"
	JobDelayedKey    = "billing_job_delayed"
	JobStatsKey      = "billing_job_stats"

	// Job settings
	DefaultWorkers       = 5
	DefaultStuckMaxAge   = 10 * time.Minute
	DefaultSweepInterval = time.Minute
	JobTTL               = 7 * 24 * time.Hour // long enough to outlive the full retry schedule
)

// Dispatcher applies one billing envelope. See billing.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, env billing.Envelope) error
}

// Queue manages background jobs using Redis
type Queue struct {
	client        *redis.Client
	dispatcher    Dispatcher
	workers       int
	workerPool    chan struct{}
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
	stuckMaxAge   time.Duration
	sweepInterval time.Duration
}

var _ billing.Enqueuer = (*Queue)(nil)

// NewQueue creates a new job queue on the shared cache client
func NewQueue(workers int) *Queue {
	return NewQueueWithClient(cache.GetClient(), workers)
}

// NewQueueWithClient creates a job queue on an explicit Redis client
func NewQueueWithClient(client *redis.Client, workers int) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Queue{
		client:        client,
		workers:       workers,
		workerPool:    make(chan struct{}, workers),
		stopCh:        make(chan struct{}),
		stuckMaxAge:   DefaultStuckMaxAge,
		sweepInterval: DefaultSweepInterval,
	}
}

// SetDispatcher sets the consumer of billing event jobs. Must be called
// before Start.
func (q *Queue) SetDispatcher(d Dispatcher) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dispatcher = d
}

// SetStuckMaxAge configures after how long a job left in processing is
// considered abandoned by a crashed worker.
func (q *Queue) SetStuckMaxAge(maxAge time.Duration) {
	if maxAge > 0 {
		q.stuckMaxAge = maxAge
	}
}

// Start starts the job queue workers
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}

	q.running = true
	q.stopCh = make(chan struct{})
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	// Initialize worker pool
	for len(q.workerPool) < q.workers {
		q.workerPool <- struct{}{}
	}

	// Start workers
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	// Start stuck-processing sweeper (recovers jobs stuck in processing due to crashes)
	q.wg.Add(1)
	go q.stuckSweeper(q.stuckMaxAge, q.sweepInterval)
}

// Stop stops the job queue workers
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}

	log.Info("[JobQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

// stuckSweeper periodically scans the processing list and requeues jobs stuck for longer than maxAge
func (q *Queue) stuckSweeper(maxAge time.Duration, interval time.Duration) {
	defer q.wg.Done()
	log.Infof("[JobQueue] Stuck sweeper running (maxAge=%s, interval=%s)", maxAge, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopCh:
			log.Info("[JobQueue] Stuck sweeper stopping")
			return
		case <-ticker.C:
			q.recoverStuck(context.Background(), time.Now(), maxAge)
		}
	}
}

// recoverStuck requeues processing jobs older than maxAge and returns how
// many were recovered.
func (q *Queue) recoverStuck(ctx context.Context, now time.Time, maxAge time.Duration) int {
	ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	if err != nil {
		log.Errorf("[JobQueue] Sweeper LRange error: %v", err)
		return 0
	}
	recovered := 0
	for _, id := range ids {
		jobKey := JobKeyPrefix + id
		data, err := q.client.Get(ctx, jobKey).Result()
		if err != nil {
			// Job data missing; remove from processing list
			if !errors.Is(err, redis.Nil) {
				log.Errorf("[JobQueue] Sweeper Get error for %s: %v", id, err)
			}
			_ = q.client.LRem(ctx, JobProcessingKey, 1, id).Err()
			continue
		}
		var job Job
		if uerr := json.Unmarshal([]byte(data), &job); uerr != nil {
			log.Errorf("[JobQueue] Sweeper unmarshal error for %s: %v", id, uerr)
			_ = q.client.LRem(ctx, JobProcessingKey, 1, id).Err()
			continue
		}
		if job.Status != JobStatusProcessing {
			// Clean up stray entry
			_ = q.client.LRem(ctx, JobProcessingKey, 1, id).Err()
			continue
		}
		started := job.ProcessedAt
		if started == nil || started.IsZero() {
			tmp := job.UpdatedAt
			if tmp.IsZero() {
				tmp = job.CreatedAt
			}
			started = &tmp
		}
		if now.Sub(*started) > maxAge {
			log.Warnf("[JobQueue] Recovering stuck job %s (type=%s), age=%s", job.ID, job.Type, now.Sub(*started))
			job.MarkAsPending()
			job.ErrorMsg = "recovered by sweeper"
			q.updateJob(ctx, &job)
			// Move from processing back to pending
			_ = q.client.LRem(ctx, JobProcessingKey, 1, id).Err()
			_ = q.client.RPush(ctx, JobQueueKey, id).Err()
			recovered++
		}
	}
	return recovered
}

// worker processes jobs from the queue
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[JobQueue] Worker %d started", id)

	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[JobQueue] Worker %d stopping", id)
			return
		default:
			// Acquire worker slot
			<-q.workerPool

			// Try to get a job from the queue
			job, err := q.dequeueJob(ctx)
			if err != nil {
				if !errors.Is(err, redis.Nil) {
					log.Errorf("[JobQueue] Worker %d: Error dequeuing job: %v", id, err)
					q.workerPool <- struct{}{}
					time.Sleep(time.Second)
					continue
				}
				q.workerPool <- struct{}{}
				continue
			}

			if job != nil {
				log.Infof("[JobQueue] Worker %d processing job %s (Type: %s)", id, job.ID, job.Type)
				q.processJob(ctx, job)
			}

			// Release worker slot
			q.workerPool <- struct{}{}
		}
	}
}

// EnqueueJob adds a new job to the queue
func (q *Queue) EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    JobStatusPending,
		Payload:   payload,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// Store job data
	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	jobKey := JobKeyPrefix + job.ID

	// Use a pipeline for atomic operations
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, jobKey, jobData, JobTTL)
	pipe.LPush(ctx, JobQueueKey, job.ID)
	pipe.HIncrBy(ctx, JobStatsKey, string(JobStatusPending), 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Infof("[JobQueue] Enqueued job %s (Type: %s)", job.ID, job.Type)
	return job, nil
}

// EnqueueEnvelope queues a billing event for the dispatcher.
func (q *Queue) EnqueueEnvelope(ctx context.Context, env billing.Envelope) error {
	_, err := q.EnqueueJob(ctx, JobTypeBillingEvent, BillingEventJobPayloadFromEnvelope(env).ToMap())
	return err
}

// dequeueJob gets the next job from the queue
func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	// Move job from pending queue to processing queue atomically
	result, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, time.Second).Result()
	if err != nil {
		return nil, err
	}

	jobID := result
	jobKey := JobKeyPrefix + jobID

	// Get job data
	jobData, err := q.client.Get(ctx, jobKey).Result()
	if err != nil {
		// Job data not found, remove from processing queue
		q.client.LRem(ctx, JobProcessingKey, 1, jobID)
		return nil, fmt.Errorf("job data not found for ID %s", jobID)
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		// Invalid job data, remove from processing queue
		q.client.LRem(ctx, JobProcessingKey, 1, jobID)
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", jobID, err)
	}

	return &job, nil
}

// processJob processes a single job
func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.MarkAsProcessing()
	q.updateJob(ctx, job)

	var err error
	switch job.Type {
	case JobTypeBillingEvent:
		err = q.processBillingEventJob(ctx, job)
	default:
		err = billing.Permanent(fmt.Errorf("unknown job type: %s", job.Type))
	}

	if err == nil {
		log.Infof("[JobQueue] Job %s completed successfully", job.ID)
		job.MarkAsCompleted()
		q.updateJobStats(ctx, JobStatusCompleted, 1)
		// Remove completed job from Redis entirely
		q.removeCompletedJob(ctx, job.ID)
		q.removeFromProcessing(ctx, job.ID)
		return
	}

	after, retry := billing.RetryAfter(err)
	if !retry {
		log.Errorf("[JobQueue] Job %s permanently failed: %v", job.ID, err)
		job.MarkAsFailed(err.Error())
		q.updateJob(ctx, job)
		q.updateJobStats(ctx, JobStatusFailed, 1)
		q.removeFromProcessing(ctx, job.ID)
		return
	}

	retryAt := time.Now().Add(after)
	job.MarkAsRetrying(err.Error(), retryAt)
	q.updateJob(ctx, job)
	q.updateJobStats(ctx, JobStatusRetrying, 1)
	if serr := q.scheduleRetry(ctx, job.ID, retryAt); serr != nil {
		// redeliver now; dispatch is idempotent
		log.Errorf("[JobQueue] Failed to schedule retry of job %s, requeueing now: %v", job.ID, serr)
		job.MarkAsPending()
		q.updateJob(ctx, job)
		q.removeFromProcessing(ctx, job.ID)
		_ = q.client.RPush(ctx, JobQueueKey, job.ID).Err()
		return
	}
	log.Infof("[JobQueue] Job %s will be retried at %s (retry %d)", job.ID, retryAt.Format(time.RFC3339), job.RetryCount)
}

// scheduleRetry moves a job from the processing list into the delayed set
// until retryAt, in one transaction.
func (q *Queue) scheduleRetry(ctx context.Context, jobID string, retryAt time.Time) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, JobProcessingKey, 1, jobID)
	pipe.ZAdd(ctx, JobDelayedKey, redis.Z{
		Score:  float64(retryAt.Unix()),
		Member: jobID,
	})
	_, err := pipe.Exec(ctx)
	return err
}

// promoteDue moves delayed jobs whose retry time has passed back into the
// pending queue and returns how many were moved. Safe to run from several
// processes: only the caller whose ZREM succeeds pushes the job.
func (q *Queue) promoteDue(ctx context.Context, now time.Time) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, JobDelayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, JobDelayedKey, id).Result()
		if err != nil {
			return promoted, err
		}
		if removed == 0 {
			continue
		}
		if job, err := q.GetJob(ctx, id); err == nil {
			job.MarkAsPending()
			q.updateJob(ctx, job)
		} else {
			log.Warnf("[JobQueue] Delayed job %s has no data, dropping: %v", id, err)
			continue
		}
		if err := q.client.RPush(ctx, JobQueueKey, id).Err(); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// updateJob updates job data in Redis
func (q *Queue) updateJob(ctx context.Context, job *Job) {
	jobData, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}

	jobKey := JobKeyPrefix + job.ID
	if err := q.client.Set(ctx, jobKey, jobData, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job %s: %v", job.ID, err)
	}
}

// removeFromProcessing removes a job from the processing queue
func (q *Queue) removeFromProcessing(ctx context.Context, jobID string) {
	if err := q.client.LRem(ctx, JobProcessingKey, 1, jobID).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove job %s from processing queue: %v", jobID, err)
	}
}

// removeCompletedJob completely removes a completed job from Redis
func (q *Queue) removeCompletedJob(ctx context.Context, jobID string) {
	jobKey := JobKeyPrefix + jobID
	if err := q.client.Del(ctx, jobKey).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove completed job %s from Redis: %v", jobID, err)
	} else {
		log.Debugf("[JobQueue] Successfully removed completed job %s from Redis", jobID)
	}
}

// updateJobStats updates job statistics
func (q *Queue) updateJobStats(ctx context.Context, status JobStatus, delta int64) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), delta).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job stats: %v", err)
	}
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	jobKey := JobKeyPrefix + jobID
	jobData, err := q.client.Get(ctx, jobKey).Result()
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// GetJobStats returns statistics about job statuses
func (q *Queue) GetJobStats(ctx context.Context) (map[JobStatus]int64, error) {
	stats, err := q.client.HGetAll(ctx, JobStatsKey).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[JobStatus]int64)
	for status, count := range stats {
		if countInt, err := json.Number(count).Int64(); err == nil {
			result[JobStatus(status)] = countInt
		}
	}

	return result, nil
}

// GetQueueSize returns the number of pending jobs
func (q *Queue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobQueueKey).Result()
}

// GetProcessingSize returns the number of jobs being processed
func (q *Queue) GetProcessingSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobProcessingKey).Result()
}

// GetDelayedSize returns the number of jobs waiting for a retry
func (q *Queue) GetDelayedSize(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, JobDelayedKey).Result()
}

// QueueStats is a point-in-time view of the queue for operators
type QueueStats struct {
	Pending    int64               `json:"pending"`
	Processing int64               `json:"processing"`
	Delayed    int64               `json:"delayed"`
	Totals     map[JobStatus]int64 `json:"totals"`
}

// GetQueueStats collects queue sizes and lifetime counters
func (q *Queue) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	pipe := q.client.Pipeline()
	pending := pipe.LLen(ctx, JobQueueKey)
	processing := pipe.LLen(ctx, JobProcessingKey)
	delayed := pipe.ZCard(ctx, JobDelayedKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	totals, err := q.GetJobStats(ctx)
	if err != nil {
		return nil, err
	}
	return &QueueStats{
		Pending:    pending.Val(),
		Processing: processing.Val(),
		Delayed:    delayed.Val(),
		Totals:     totals,
	}, nil
}
