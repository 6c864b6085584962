package bootstrap

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/artpar/coreplane/adapters/metrics"
	"github.com/artpar/coreplane/app"
	"github.com/artpar/coreplane/ports"
	"github.com/rs/zerolog"
)

// JobDeps contains dependencies for JobRunner.
type JobDeps struct {
	Suspensions     *app.SuspensionService
	BreakGlass      *app.BreakGlassService
	SuspensionStore ports.SuspensionStore
	Metrics         *metrics.Collector // optional
	Log             zerolog.Logger
}

// JobConfig contains configuration for JobRunner.
type JobConfig struct {
	CheckInterval   time.Duration
	CleanupInterval time.Duration
}

// JobRunner drives the periodic background work: the suspension check, the
// auto-resume sweep, and expired break-glass session cleanup. The check and
// resume share one tick so a resume cannot race a check from the same
// process; overlap with other processes is handled by the stores.
type JobRunner struct {
	suspensions *app.SuspensionService
	breakglass  *app.BreakGlassService
	suspStore   ports.SuspensionStore
	metrics     *metrics.Collector
	log         zerolog.Logger

	checkInterval   atomic.Int64 // nanoseconds, hot-reloadable
	cleanupInterval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewJobRunner creates a new job runner.
func NewJobRunner(deps JobDeps, cfg JobConfig) *JobRunner {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}

	r := &JobRunner{
		suspensions:     deps.Suspensions,
		breakglass:      deps.BreakGlass,
		suspStore:       deps.SuspensionStore,
		metrics:         deps.Metrics,
		log:             deps.Log,
		cleanupInterval: cfg.CleanupInterval,
		stopCh:          make(chan struct{}),
	}
	r.checkInterval.Store(int64(cfg.CheckInterval))
	return r
}

// SetCheckInterval changes the suspension check interval. Takes effect on
// the next tick.
func (r *JobRunner) SetCheckInterval(d time.Duration) {
	if d > 0 {
		r.checkInterval.Store(int64(d))
	}
}

// Start launches the background loops.
func (r *JobRunner) Start() {
	r.wg.Add(2)
	go r.checkLoop()
	go r.cleanupLoop()
	r.log.Info().
		Dur("check_interval", time.Duration(r.checkInterval.Load())).
		Dur("cleanup_interval", r.cleanupInterval).
		Msg("background jobs started")
}

// Stop halts the background loops and waits for them to finish.
func (r *JobRunner) Stop() {
	r.once.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

// RunCheckOnce performs one suspension check and auto-resume pass.
func (r *JobRunner) RunCheckOnce(ctx context.Context) {
	start := time.Now()

	report, err := r.suspensions.RunCheck(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("suspension check failed")
	} else if report.SuspensionsMade > 0 {
		r.log.Info().
			Int("checked", report.ProjectsChecked).
			Int("suspended", report.SuspensionsMade).
			Strs("projects", report.SuspendedProjects).
			Msg("suspension check complete")
	}

	resume, err := r.suspensions.RunAutoResume(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("auto-resume failed")
	} else if resume.ProjectsResumed > 0 {
		r.log.Info().
			Int("resumed", resume.ProjectsResumed).
			Strs("projects", resume.ResumedProjects).
			Msg("auto-resume complete")
	}

	if r.metrics != nil {
		r.metrics.CheckRunDuration.Observe(time.Since(start).Seconds())
		for i := 0; i < report.SuspensionsMade; i++ {
			r.metrics.SuspensionsCreated.WithLabelValues("periodic").Inc()
		}
		for i := 0; i < resume.ProjectsResumed; i++ {
			r.metrics.SuspensionsResolved.WithLabelValues("auto_resume").Inc()
		}
		r.updateActiveGauge(ctx)
	}
}

// RunCleanupOnce removes expired break-glass sessions.
func (r *JobRunner) RunCleanupOnce(ctx context.Context) {
	n, err := r.breakglass.CleanupExpired(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("break-glass cleanup failed")
		return
	}
	if n > 0 {
		r.log.Info().Int64("removed", n).Msg("expired break-glass sessions cleaned up")
	}
}

func (r *JobRunner) updateActiveGauge(ctx context.Context) {
	active, err := r.suspStore.ListActiveAutomatic(ctx)
	if err != nil {
		return
	}
	r.metrics.ActiveSuspensions.Set(float64(len(active)))
}

func (r *JobRunner) checkLoop() {
	defer r.wg.Done()

	for {
		interval := time.Duration(r.checkInterval.Load())
		select {
		case <-time.After(interval):
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			r.RunCheckOnce(ctx)
			cancel()
		case <-r.stopCh:
			return
		}
	}
}

func (r *JobRunner) cleanupLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			r.RunCleanupOnce(ctx)
			cancel()
		case <-r.stopCh:
			return
		}
	}
}
