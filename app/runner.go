package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"newshub/domain"
)

// DefaultSchedule runs ingestion every six hours on the hour.
const DefaultSchedule = "0 */6 * * *"

// Runner triggers ingestion once at start-up and then on a cron schedule.
// Both triggers call the same IngestService.
type Runner struct {
	ingest *IngestService
	log    *slog.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	schedule string
	entryID  cron.EntryID
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	startup  sync.WaitGroup
}

func NewRunner(ingest *IngestService, schedule string, log *slog.Logger) (*Runner, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", schedule, err)
	}
	return &Runner{
		ingest:   ingest,
		log:      log,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		schedule: schedule,
	}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("runner already started")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	if err := r.addEntry(r.schedule); err != nil {
		r.cancel()
		return err
	}
	r.cron.Start()
	r.started = true

	r.startup.Add(1)
	go func() {
		defer r.startup.Done()
		r.run("startup")
	}()
	return nil
}

// Stop cancels in-flight runs and waits for them to return.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.started = false
	r.mu.Unlock()

	cancel()
	<-r.cron.Stop().Done()
	r.startup.Wait()
	return nil
}

// Trigger runs ingestion immediately, outside the schedule.
func (r *Runner) Trigger(ctx context.Context) (domain.IngestSummary, error) {
	return r.ingest.FetchAndStore(ctx)
}

// SetInterval replaces the schedule with a fixed interval.
func (r *Runner) SetInterval(d time.Duration) error {
	if d <= 0 {
		return errors.New("interval must be > 0")
	}
	spec := "@every " + d.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		if err := r.addEntry(spec); err != nil {
			return err
		}
	}
	r.schedule = spec
	r.log.Info("ingestion schedule changed", "schedule", spec)
	return nil
}

func (r *Runner) Resize(workers int) error {
	if err := r.ingest.Resize(workers); err != nil {
		return err
	}
	r.log.Info("ingestion workers changed", "workers", workers)
	return nil
}

func (r *Runner) CurrentSchedule() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schedule
}

func (r *Runner) CurrentWorkers() int { return r.ingest.Workers() }

// addEntry swaps the cron entry; callers hold r.mu.
func (r *Runner) addEntry(spec string) error {
	id, err := r.cron.AddFunc(spec, func() { r.run("schedule") })
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	if r.entryID != 0 {
		r.cron.Remove(r.entryID)
	}
	r.entryID = id
	return nil
}

func (r *Runner) run(trigger string) {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()

	r.log.Debug("ingestion run starting", "trigger", trigger)
	if _, err := r.ingest.FetchAndStore(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
		r.log.Warn("ingestion run aborted, next scheduled run will retry", "trigger", trigger, "error", err)
	}
}

var _ domain.Aggregator = (*Runner)(nil)
