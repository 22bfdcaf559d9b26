// Package pipeline runs the classify-and-act sequence for each correlated
// webhook notification: fetch the message, score it, record the outcome,
// and move spam to junk. Each notification is an isolated unit of work; a
// failure terminates only its own pipeline instance.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/RyanEisele1012/Email-Filter/internal/models"
	"github.com/RyanEisele1012/Email-Filter/services/filter-service/internal/classifier"
	"github.com/RyanEisele1012/Email-Filter/services/filter-service/internal/graph"
	"github.com/RyanEisele1012/Email-Filter/services/filter-service/internal/store"
)

var (
	// ErrNoCredential means the owner has no stored access token; the
	// message cannot be fetched and no stats update occurs.
	ErrNoCredential = errors.New("no access credential")

	// ErrFetchFailed terminates a pipeline before classification.
	ErrFetchFailed = errors.New("message fetch failed")
)

const (
	// JunkFolder is the remediation destination for spam.
	JunkFolder = "junkemail"

	defaultWorkers   = 8
	defaultQueueSize = 256
	upstreamTimeout  = 30 * time.Second
)

// Job is one correlated notification ready for processing.
type Job struct {
	OwnerID      string
	Notification models.Notification
}

// Config sizes the worker pool and the dedup window.
type Config struct {
	Workers     int
	QueueSize   int
	DedupWindow time.Duration
}

// Dispatcher owns the worker pool. Webhook handlers enqueue jobs after the
// ack has been sent; workers own failure logging, decoupled from the
// request lifecycle.
type Dispatcher struct {
	graph      graph.Client
	classifier classifier.Classifier
	stats      store.StatsStore
	creds      store.CredentialStore

	jobs     chan Job
	dedup    *dedupSet
	workers  int
	inflight sync.WaitGroup
	workerWg sync.WaitGroup
}

func NewDispatcher(cfg Config, client graph.Client, cls classifier.Classifier, stats store.StatsStore, creds store.CredentialStore) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	return &Dispatcher{
		graph:      client,
		classifier: cls,
		stats:      stats,
		creds:      creds,
		jobs:       make(chan Job, cfg.QueueSize),
		dedup:      newDedupSet(cfg.DedupWindow),
		workers:    cfg.Workers,
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.workerWg.Add(1)
		go func() {
			defer d.workerWg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-d.jobs:
					d.run(job)
				}
			}
		}()
	}
	log.Printf("[Pipeline] Started %d worker(s)", d.workers)
}

// Submit enqueues a job, blocking for backpressure if the queue is full.
// Returns false only if ctx is cancelled first.
func (d *Dispatcher) Submit(ctx context.Context, job Job) bool {
	select {
	case d.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Shutdown waits for in-flight pipelines to finish, up to timeout. The
// stats increment is the single atomic commit point, so work abandoned
// before it is safe and work abandoned after it is equivalent to success.
func (d *Dispatcher) Shutdown(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[Pipeline] All in-flight work completed")
		return true
	case <-time.After(timeout):
		log.Printf("[Pipeline] Shutdown timeout (%v) reached with work still in flight", timeout)
		return false
	}
}

func (d *Dispatcher) run(job Job) {
	d.inflight.Add(1)
	defer d.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), upstreamTimeout)
	defer cancel()

	if err := d.process(ctx, job); err != nil {
		log.Printf("[Pipeline] Message %s for user %s dropped: %v",
			job.Notification.ChangedResourceID, job.OwnerID, err)
	}
}

// process walks one notification through the state machine:
// fetch -> classify -> record (-> remediate for spam). Fetch and classify
// failures are terminal with no stats mutation.
func (d *Dispatcher) process(ctx context.Context, job Job) error {
	messageID := job.Notification.ChangedResourceID

	cred, err := d.creds.Get(ctx, job.OwnerID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoCredential
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	msg, err := d.graph.GetMessage(ctx, cred.Token, messageID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	verdict, err := d.classifier.Classify(ctx, msg)
	if err != nil {
		return err
	}

	// The dedup claim gates recording: redelivered notifications reach this
	// point and stop here instead of double-counting.
	if !d.dedup.Claim(job.OwnerID, messageID) {
		log.Printf("[Pipeline] Duplicate delivery of message %s for user %s, already counted", messageID, job.OwnerID)
		return nil
	}

	stats, err := d.stats.Increment(ctx, job.OwnerID, verdict.Label)
	if err != nil {
		d.dedup.Release(job.OwnerID, messageID)
		return fmt.Errorf("failed to record stats: %w", err)
	}
	log.Printf("[Pipeline] User %s message %s classified %s (score %.2f), totals %d/%d spam/%d ham",
		job.OwnerID, messageID, verdict.Label, verdict.Score,
		stats.TotalEmails, stats.SpamCount, stats.HamCount)

	if verdict.Label == models.LabelSpam {
		// Best-effort remediation: the count above is the authoritative
		// outcome and is not rolled back if the move fails.
		if err := d.graph.MoveMessage(ctx, cred.Token, messageID, JunkFolder); err != nil {
			log.Printf("[Pipeline] Remediation failed for message %s (user %s): %v", messageID, job.OwnerID, err)
		}
	}
	return nil
}
