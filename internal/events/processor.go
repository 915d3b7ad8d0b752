// -----------------------------------------------------------------------
// Event processor - singleton trigger scanner with adaptive cadence
// -----------------------------------------------------------------------

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/common"
	"github.com/ternarybob/lwfm/internal/interfaces"
	"github.com/ternarybob/lwfm/internal/models"
	"github.com/ternarybob/lwfm/internal/sites"
	"golang.org/x/time/rate"
)

var (
	processorOnce     sync.Once
	processorInstance *Processor
)

// Processor evaluates registered triggers against persisted history and
// fires the satisfied ones. One instance exists per process.
type Processor struct {
	storage interfaces.StorageManager
	bridge  *sites.Bridge
	rt      interfaces.Runtime
	logger  arbor.ILogger

	minInterval time.Duration
	maxInterval time.Duration
	step        time.Duration

	mu       sync.Mutex // protects timer rescheduling and interval state
	interval time.Duration
	timer    *time.Timer
	running  bool
	stopCh   chan struct{}
	done     chan struct{}

	// wakeLimiter throttles wake-forced scans so status storms collapse
	// into one scan per window.
	wakeLimiter *rate.Limiter
}

// GetProcessor returns the process-wide event processor, constructing it
// on first call. Later calls ignore their arguments.
func GetProcessor(storage interfaces.StorageManager, bridge *sites.Bridge, cfg common.EventsConfig, logger arbor.ILogger) *Processor {
	processorOnce.Do(func() {
		processorInstance = newProcessor(storage, bridge, cfg, logger)
	})
	return processorInstance
}

// newProcessor is the raw constructor; tests use it to get isolated instances.
func newProcessor(storage interfaces.StorageManager, bridge *sites.Bridge, cfg common.EventsConfig, logger arbor.ILogger) *Processor {
	if cfg.MinIntervalSecs <= 0 {
		cfg.MinIntervalSecs = 5
	}
	if cfg.MaxIntervalSecs <= 0 {
		cfg.MaxIntervalSecs = 300
	}
	if cfg.StepSecs <= 0 {
		cfg.StepSecs = 10
	}
	if cfg.WakeThrottleSecs <= 0 {
		cfg.WakeThrottleSecs = 30
	}
	return &Processor{
		storage:     storage,
		bridge:      bridge,
		logger:      logger,
		minInterval: time.Duration(cfg.MinIntervalSecs) * time.Second,
		maxInterval: time.Duration(cfg.MaxIntervalSecs) * time.Second,
		step:        time.Duration(cfg.StepSecs) * time.Second,
		interval:    time.Duration(cfg.MinIntervalSecs) * time.Second,
		wakeLimiter: rate.NewLimiter(rate.Every(time.Duration(cfg.WakeThrottleSecs)*time.Second), 1),
	}
}

// BindRuntime attaches the middleware callback surface. Must be called
// before Start.
func (p *Processor) BindRuntime(rt interfaces.Runtime) {
	p.rt = rt
}

// Start launches the scan loop.
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("event processor already running")
	}
	if p.rt == nil {
		return fmt.Errorf("event processor runtime not bound")
	}
	p.interval = p.minInterval
	p.timer = time.NewTimer(p.interval)
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	p.running = true
	go p.loop()
	p.logger.Info().
		Str("min", p.minInterval.String()).
		Str("max", p.maxInterval.String()).
		Msg("Event processor started")
	return nil
}

// Stop cancels the pending timer and waits for the loop to exit.
// In-flight dispatch goroutines are not awaited; delete-before-dispatch
// guarantees no double-fire on restart.
func (p *Processor) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	p.timer.Stop()
	done := p.done
	p.mu.Unlock()

	<-done
	p.logger.Info().Msg("Event processor stopped")
	return nil
}

// Wake schedules an immediate scan unless one was forced within the
// throttle window.
func (p *Processor) Wake() {
	if !p.wakeLimiter.Allow() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	if !p.timer.Stop() {
		// Timer already fired; the loop is scanning anyway.
		return
	}
	p.timer.Reset(0)
}

func (p *Processor) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.timer.C:
		}

		activity := p.runCycle()
		p.adapt(activity)
	}
}

// adapt applies the cadence rule: activity resets the interval to the
// floor, idleness backs off one step toward the ceiling.
func (p *Processor) adapt(activity bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if activity {
		p.interval = p.minInterval
	} else if p.interval < p.maxInterval {
		p.interval += p.step
		if p.interval > p.maxInterval {
			p.interval = p.maxInterval
		}
	}
	if p.running {
		p.timer.Reset(p.interval)
	}
}

// runCycle scans job events then remote polls. It returns true when any
// trigger fired or any remote poll advanced, which resets the cadence.
func (p *Processor) runCycle() bool {
	ctx := context.Background()
	activity := false

	if p.scanJobEvents(ctx) > 0 {
		activity = true
	}
	if p.scanRemoteEvents(ctx) > 0 {
		activity = true
	}
	return activity
}

// scanJobEvents evaluates every registered JOB trigger against the
// persisted status history of its rule job, firing satisfied ones. Errors
// in one event never abort the scan.
func (p *Processor) scanJobEvents(ctx context.Context) int {
	events, err := p.storage.EventStorage().GetEvents(ctx, models.EventTypeJob)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to load job events")
		return 0
	}

	fired := 0
	for _, event := range events {
		satisfying, err := p.findSatisfyingStatus(ctx, event)
		if err != nil {
			p.logger.Error().Err(err).Str("event_id", event.EventID).Msg("Job event evaluation failed; will retry next cycle")
			continue
		}
		if satisfying == nil {
			continue
		}

		// Delete before dispatch: only the winner of the delete fires.
		deleted, err := p.storage.EventStorage().DeleteEvent(ctx, event.EventID)
		if err != nil {
			p.logger.Error().Err(err).Str("event_id", event.EventID).Msg("Failed to consume job event")
			continue
		}
		if !deleted {
			continue
		}

		p.fire(event, satisfying.Context, event.RuleJobID)
		fired++
	}
	return fired
}

// findSatisfyingStatus scans the rule job's history for an observation of
// the rule status. INFO observations never satisfy job triggers, and a
// non-terminal observation emitted after a terminal status is history
// only: it is recorded but never fires a trigger.
func (p *Processor) findSatisfyingStatus(ctx context.Context, event *models.WorkflowEvent) (*models.JobStatus, error) {
	statuses, err := p.storage.StatusStorage().GetStatuses(ctx, event.RuleJobID)
	if err != nil {
		return nil, err
	}

	// Newest first. A non-terminal match is held as a candidate until the
	// walk confirms no terminal status precedes it.
	var candidate *models.JobStatus
	for _, status := range statuses {
		if status.Status == models.StatusInfo {
			continue
		}
		if status.Status == event.RuleStatus && candidate == nil {
			if status.IsTerminal() {
				return status, nil
			}
			candidate = status
		}
		if status.IsTerminal() {
			// Everything walked so far postdates this terminal; a held
			// candidate is a post-terminal stray. Older observations may
			// still satisfy.
			candidate = nil
		}
	}
	return candidate, nil
}

// scanRemoteEvents polls remote sites for tracked jobs and emits their
// current status. Terminal (or purged) jobs drop the polling event.
func (p *Processor) scanRemoteEvents(ctx context.Context) int {
	events, err := p.storage.EventStorage().GetEvents(ctx, models.EventTypeRemote)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to load remote events")
		return 0
	}

	advanced := 0
	for _, event := range events {
		jobCtx := event.Context
		if jobCtx == nil {
			jobCtx = &models.JobContext{JobID: event.RemoteJobID, NativeID: event.RemoteJobID, WorkflowID: event.RemoteJobID, SiteName: event.RemoteSite}
		}

		status, err := p.bridge.GetStatus(ctx, event.RemoteSite, jobCtx.NativeID)
		if errors.Is(err, interfaces.ErrJobNotFound) {
			// Some sites purge completed jobs; treat not-found as terminal.
			if _, err := p.storage.EventStorage().DeleteEvent(ctx, event.EventID); err != nil {
				p.logger.Error().Err(err).Str("event_id", event.EventID).Msg("Failed to remove polling event")
				continue
			}
			p.recordLog(models.LogLevelInfo, jobCtx, fmt.Sprintf("remote site %s no longer knows job %s; polling stopped", event.RemoteSite, event.RemoteJobID))
			advanced++
			continue
		}
		if err != nil {
			p.logger.Error().Err(err).Str("event_id", event.EventID).Str("site", event.RemoteSite).Msg("Remote poll failed; will retry next cycle")
			continue
		}

		latest, err := p.storage.StatusStorage().GetLatestStatus(ctx, jobCtx.JobID)
		if err == nil && (latest == nil || latest.Status != status) {
			if _, err := p.rt.EmitStatus(jobCtx, status, string(status), ""); err != nil {
				p.logger.Warn().Err(err).Str("job_id", jobCtx.JobID).Msg("Failed to emit polled status")
			}
			advanced++
		}

		if status.IsTerminal() {
			if _, err := p.storage.EventStorage().DeleteEvent(ctx, event.EventID); err != nil {
				p.logger.Error().Err(err).Str("event_id", event.EventID).Msg("Failed to remove polling event")
				continue
			}
			advanced++
		}
	}
	return advanced
}

// EvaluateDataEvents runs every DATA trigger against a just-published
// metasheet. Called inline on INFO status emission.
func (p *Processor) EvaluateDataEvents(sheet *models.Metasheet, origin *models.JobStatus) {
	if sheet == nil || origin == nil {
		return
	}
	ctx := context.Background()

	events, err := p.storage.EventStorage().GetEvents(ctx, models.EventTypeData)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to load data events")
		return
	}

	for _, event := range events {
		compiled, err := models.CompileQuery(event.QueryRegExs, false)
		if err != nil {
			p.logger.Error().Err(err).Str("event_id", event.EventID).Msg("Invalid data event query; skipping")
			continue
		}
		if !models.MatchProps(sheet.Props, compiled) {
			continue
		}

		deleted, err := p.storage.EventStorage().DeleteEvent(ctx, event.EventID)
		if err != nil || !deleted {
			continue
		}

		p.fire(event, origin.Context, origin.JobID())
	}
}

// fire builds the child context for a consumed event, emits its READY
// status, and dispatches the definition asynchronously. Dispatch failures
// are recorded as FAILED on the pre-allocated job id; the event stays
// consumed either way.
func (p *Processor) fire(event *models.WorkflowEvent, parent *models.JobContext, parentJobID string) {
	childCtx := models.NewChildContext(parent, event.FireJobID, event.FireSite)
	if parentJobID != "" {
		childCtx.ParentJobID = parentJobID
	}

	if _, err := p.rt.EmitStatus(childCtx, models.StatusReady, "ready", ""); err != nil {
		p.logger.Warn().Err(err).Str("job_id", childCtx.JobID).Msg("Failed to emit READY for fired job")
	}

	p.logger.Info().
		Str("event_id", event.EventID).
		Str("fire_job_id", childCtx.JobID).
		Str("fire_site", event.FireSite).
		Msg("Firing triggered job")

	go func() {
		ctx := context.Background()
		if _, err := p.bridge.Submit(ctx, event.FireSite, event.FireDefn, childCtx, event.FireDefn.ComputeType, nil); err != nil {
			p.recordLog(models.LogLevelError, childCtx, fmt.Sprintf("trigger dispatch failed: %v", err))
			if _, emitErr := p.rt.EmitStatus(childCtx, models.StatusFailed, "dispatch failed", ""); emitErr != nil {
				p.logger.Error().Err(emitErr).Str("job_id", childCtx.JobID).Msg("Failed to emit FAILED after dispatch error")
			}
		}
	}()
}

// SetEvent persists a trigger and emits the READY status of its
// pre-allocated future job. REMOTE events persist silently.
func (p *Processor) SetEvent(event *models.WorkflowEvent) (*models.JobStatus, error) {
	if event == nil {
		return nil, fmt.Errorf("event is nil")
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := p.storage.EventStorage().SaveEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to persist event: %w", err)
	}

	if event.Type == models.EventTypeRemote {
		return nil, nil
	}

	futureCtx := models.NewChildContext(event.Context, event.FireJobID, event.FireSite)
	status, err := p.rt.EmitStatus(futureCtx, models.StatusReady, "ready", "")
	if err != nil {
		p.logger.Warn().Err(err).Str("job_id", futureCtx.JobID).Msg("Failed to emit READY for future job")
		status = models.NewJobStatus(futureCtx, models.StatusReady)
	}

	p.Wake()
	return status, nil
}

// UnsetEvent removes a registered trigger.
func (p *Processor) UnsetEvent(eventID string) error {
	deleted, err := p.storage.EventStorage().DeleteEvent(context.Background(), eventID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("no such event: %s", eventID)
	}
	return nil
}

// Interval reports the current scan interval; cadence tests read it.
func (p *Processor) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Processor) recordLog(level models.LogLevel, jobCtx *models.JobContext, message string) {
	record := models.NewLogRecord(level, jobCtx.SiteName, jobCtx.WorkflowID, jobCtx.JobID, message)
	if err := p.storage.LogStorage().SaveLogRecord(context.Background(), record); err != nil {
		p.logger.Error().Err(err).Msg("Failed to persist log record")
	}
}
