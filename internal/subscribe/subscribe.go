// Package subscribe imports configured ICS subscriptions on cron schedules.
package subscribe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"shiftcal/internal/config"
	"shiftcal/internal/ics"
	appLog "shiftcal/internal/log"
)

// DefaultRunTimeout bounds a single subscription import.
const DefaultRunTimeout = 2 * time.Minute

// URLImporter is the part of ics.Importer the scheduler needs.
type URLImporter interface {
	ImportFromURL(ctx context.Context, url, team string) (ics.ImportResult, error)
}

// Result is the outcome of one subscription run.
type Result struct {
	ID     string
	Team   string
	Import ics.ImportResult
	Err    error
}

// Scheduler runs every subscription on its own cron spec. Runs of the same
// subscription never overlap.
type Scheduler struct {
	importer   URLImporter
	subs       []config.SubscriptionConfig
	cron       *cron.Cron
	runTimeout time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates every refresh spec and registers the jobs. Nothing runs
// until Start.
func New(importer URLImporter, subs []config.SubscriptionConfig) (*Scheduler, error) {
	logger := cronLogger{}
	s := &Scheduler{
		importer:   importer,
		subs:       subs,
		runTimeout: DefaultRunTimeout,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx: context.Background(),
	}

	for _, sub := range subs {
		if _, err := cron.ParseStandard(sub.Refresh); err != nil {
			return nil, fmt.Errorf("subscription %s: refresh %q: %w", sub.ID, sub.Refresh, err)
		}
		if _, err := s.cron.AddFunc(sub.Refresh, func() {
			s.run(s.baseContext(), sub)
		}); err != nil {
			return nil, fmt.Errorf("subscription %s: %w", sub.ID, err)
		}
	}
	return s, nil
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Start begins running jobs in the background. Canceling ctx aborts
// in-flight imports; call Stop to halt the schedule.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	appLog.Info("subscription scheduler started", "subscriptions", len(s.subs))
	s.cron.Start()
}

// Stop halts the schedule and cancels in-flight imports. The returned
// context is done once running jobs have returned.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	return s.cron.Stop()
}

// RunOnce imports every subscription sequentially and returns the results
// in configuration order.
func (s *Scheduler) RunOnce(ctx context.Context) []Result {
	results := make([]Result, 0, len(s.subs))
	for _, sub := range s.subs {
		if ctx.Err() != nil {
			results = append(results, Result{ID: sub.ID, Team: sub.Team, Err: ctx.Err()})
			continue
		}
		results = append(results, s.run(ctx, sub))
	}
	return results
}

func (s *Scheduler) run(ctx context.Context, sub config.SubscriptionConfig) Result {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.importer.ImportFromURL(ctx, sub.URL, sub.Team)
	if err != nil {
		appLog.Error("subscription import failed", err,
			"id", sub.ID,
			"team", sub.Team,
			"url", appLog.RedactURL(sub.URL),
			"network", errors.Is(err, ics.ErrNetworkFetch),
		)
	} else {
		appLog.Info("subscription import done",
			"id", sub.ID,
			"team", sub.Team,
			"imported", res.Imported,
			"skipped", res.Skipped,
			"errored", res.Errored,
			"duration", time.Since(start),
		)
	}
	return Result{ID: sub.ID, Team: sub.Team, Import: res, Err: err}
}

// cronLogger routes cron's own logging through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
