// -----------------------------------------------------------------------
// LwfManager - the public verb set for workflow authors and the transport
// -----------------------------------------------------------------------

package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/common"
	"github.com/ternarybob/lwfm/internal/interfaces"
	"github.com/ternarybob/lwfm/internal/models"
	"github.com/ternarybob/lwfm/internal/sites"
)

// Wait cadence: progressive sleep 1, 4, 7, ... 60 seconds, then doubling
// up to the cap. Wait itself never times out; callers bring their own bound.
const (
	waitInitialSleep = 1 * time.Second
	waitSleepStep    = 3 * time.Second
	waitLinearCap    = 60 * time.Second
	waitSleepCap     = 1 * time.Hour
)

// LwfManager is the middleware façade. The core absorbs failures to keep
// the event loop live: verbs return nil/empty on error and the detail goes
// to the log stream, never a panic or a raised store error.
type LwfManager struct {
	storage   interfaces.StorageManager
	bridge    *sites.Bridge
	processor interfaces.EventProcessor
	stream    *LogStream
	logger    arbor.ILogger
}

// New creates the façade over its collaborators.
func New(storage interfaces.StorageManager, bridge *sites.Bridge, processor interfaces.EventProcessor, logger arbor.ILogger) *LwfManager {
	return &LwfManager{
		storage:   storage,
		bridge:    bridge,
		processor: processor,
		stream:    NewLogStream(),
		logger:    logger,
	}
}

// Stream returns the live log record broadcaster.
func (m *LwfManager) Stream() *LogStream {
	return m.stream
}

// EmitStatus persists a status observation and drives everything hinged on
// it: workflow auto-creation, remote-poll installation, inline data-event
// evaluation for INFO, and the processor wake. Returns the persisted
// record. Store write failures are logged and swallowed; emitters never
// fail on persistence.
func (m *LwfManager) EmitStatus(jobCtx *models.JobContext, status models.Status, nativeStatus, nativeInfo string) (*models.JobStatus, error) {
	if jobCtx == nil || jobCtx.JobID == "" {
		m.logger.Error().Msg("emitStatus rejected: missing job context")
		return nil, fmt.Errorf("emitStatus requires a job context")
	}
	if !models.IsValidStatus(status) {
		m.logger.Error().Str("status", string(status)).Msg("emitStatus rejected: unknown status")
		return nil, fmt.Errorf("unknown status: %s", status)
	}
	if jobCtx.WorkflowID == "" {
		jobCtx.WorkflowID = jobCtx.JobID
	}
	if jobCtx.NativeID == "" {
		jobCtx.NativeID = jobCtx.JobID
	}

	jobStatus := models.NewJobStatus(jobCtx, status)
	if nativeStatus != "" {
		jobStatus.NativeStatus = nativeStatus
	}
	jobStatus.NativeInfo = nativeInfo

	ctx := context.Background()

	first := false
	if latest, err := m.storage.StatusStorage().GetLatestStatus(ctx, jobCtx.JobID); err == nil && latest == nil {
		first = true
	}

	if err := m.storage.StatusStorage().SaveStatus(ctx, jobStatus); err != nil {
		m.logger.Error().Err(err).Str("job_id", jobCtx.JobID).Msg("Failed to persist status")
	}

	if wf, err := m.storage.WorkflowStorage().GetWorkflow(ctx, jobCtx.WorkflowID); err == nil && wf == nil {
		if err := m.storage.WorkflowStorage().SaveWorkflow(ctx, models.NewWorkflowWithID(jobCtx.WorkflowID)); err != nil {
			m.logger.Error().Err(err).Str("workflow_id", jobCtx.WorkflowID).Msg("Failed to auto-create workflow")
		}
	}

	if first && m.bridge.Registry().IsRemote(jobCtx.SiteName) {
		if _, err := m.processor.SetEvent(models.NewRemoteJobEvent(jobCtx)); err != nil {
			m.logger.Error().Err(err).Str("job_id", jobCtx.JobID).Msg("Failed to install remote polling event")
		}
	}

	if status == models.StatusInfo && nativeInfo != "" {
		if sheet, err := models.Deserialize[models.Metasheet](nativeInfo); err == nil {
			m.processor.EvaluateDataEvents(sheet, jobStatus)
		}
	}

	m.stream.Publish(models.NewLogRecord(models.LogLevelInfo, jobCtx.SiteName, jobCtx.WorkflowID, jobCtx.JobID,
		fmt.Sprintf("status %s", status)))
	m.processor.Wake()
	return jobStatus, nil
}

// Submit mints a context for the definition, emits READY and PENDING, and
// dispatches to the site asynchronously. Returns the PENDING status, or
// nil for malformed input.
func (m *LwfManager) Submit(defn *models.JobDefn, parent *models.JobContext, computeType string, runArgs []string) *models.JobStatus {
	if defn == nil {
		m.logger.Error().Msg("submit rejected: nil job definition")
		return nil
	}
	if err := defn.Validate(); err != nil {
		m.logger.Error().Err(err).Msg("submit rejected: invalid job definition")
		return nil
	}

	site := defn.SiteName
	if site == "" {
		site = "local"
	}

	var jobCtx *models.JobContext
	if parent != nil {
		jobCtx = models.NewChildContext(parent, "", site)
	} else {
		jobCtx = models.NewJobContext(site)
	}
	if computeType != "" {
		jobCtx.ComputeType = computeType
	}

	m.EmitStatus(jobCtx, models.StatusReady, "", "")
	pending, err := m.EmitStatus(jobCtx, models.StatusPending, "", "")
	if err != nil {
		return nil
	}

	// Each submission gets its own dispatch worker.
	go func() {
		if _, err := m.bridge.Submit(context.Background(), site, defn, jobCtx, computeType, runArgs); err != nil {
			m.recordLog(models.LogLevelError, jobCtx, fmt.Sprintf("dispatch failed: %v", err))
			m.EmitStatus(jobCtx, models.StatusFailed, "dispatch failed", "")
		}
	}()

	return pending
}

// SetEvent registers a trigger and returns the READY status of its
// pre-allocated future job, or nil for malformed input.
func (m *LwfManager) SetEvent(event *models.WorkflowEvent) *models.JobStatus {
	status, err := m.processor.SetEvent(event)
	if err != nil {
		m.logger.Error().Err(err).Msg("setEvent rejected")
		return nil
	}
	return status
}

// UnsetEvent removes a registered trigger.
func (m *LwfManager) UnsetEvent(eventID string) error {
	return m.processor.UnsetEvent(eventID)
}

// GetStatus returns the newest status of a job, or nil when unknown.
func (m *LwfManager) GetStatus(jobID string) *models.JobStatus {
	status, err := m.storage.StatusStorage().GetLatestStatus(context.Background(), jobID)
	if err != nil {
		return nil
	}
	return status
}

// GetAllStatuses returns the full history of a job, newest first.
func (m *LwfManager) GetAllStatuses(jobID string) []*models.JobStatus {
	statuses, err := m.storage.StatusStorage().GetStatuses(context.Background(), jobID)
	if err != nil {
		return nil
	}
	return statuses
}

// Wait blocks until the job reaches a terminal status, polling with
// progressive back-off.
func (m *LwfManager) Wait(jobID string) *models.JobStatus {
	sleep := waitInitialSleep
	for {
		if status := m.GetStatus(jobID); status != nil && status.IsTerminal() {
			return status
		}
		time.Sleep(sleep)
		if sleep < waitLinearCap {
			sleep += waitSleepStep
			if sleep > waitLinearCap {
				sleep = waitLinearCap
			}
		} else if sleep < waitSleepCap {
			sleep *= 2
			if sleep > waitSleepCap {
				sleep = waitSleepCap
			}
		}
	}
}

// Cancel asks the owning site to stop the job. Sites may refuse.
func (m *LwfManager) Cancel(jobID string) bool {
	status := m.GetStatus(jobID)
	if status == nil || status.Context == nil {
		m.logger.Error().Str("job_id", jobID).Msg("cancel rejected: unknown job")
		return false
	}
	ok, err := m.bridge.Cancel(context.Background(), status.Context.SiteName, status.Context.NativeID)
	if err != nil {
		m.recordLog(models.LogLevelError, status.Context, fmt.Sprintf("cancel failed: %v", err))
		return false
	}
	return ok
}

// Find returns metasheets matching the AND-combined query clauses.
func (m *LwfManager) Find(query map[string]string) []*models.Metasheet {
	sheets, err := m.storage.MetasheetStorage().FindMetasheets(context.Background(), query)
	if err != nil {
		m.logger.Error().Err(err).Msg("find failed")
		return nil
	}
	return sheets
}

// FindWorkflows returns workflows matching the AND-combined query clauses.
func (m *LwfManager) FindWorkflows(query map[string]string) []*models.Workflow {
	workflows, err := m.storage.WorkflowStorage().FindWorkflows(context.Background(), query)
	if err != nil {
		m.logger.Error().Err(err).Msg("findWorkflows failed")
		return nil
	}
	return workflows
}

// NotatePut records a data put with metadata and emits the INFO status
// that connects the notation to data-event firing.
func (m *LwfManager) NotatePut(jobCtx *models.JobContext, localPath, siteObjPath string, props map[string]string) *models.Metasheet {
	return m.notate(jobCtx, localPath, siteObjPath, models.DirectionPut, props)
}

// NotateGet records a data get with metadata and emits the INFO status.
func (m *LwfManager) NotateGet(jobCtx *models.JobContext, localPath, siteObjPath string, props map[string]string) *models.Metasheet {
	return m.notate(jobCtx, localPath, siteObjPath, models.DirectionGet, props)
}

func (m *LwfManager) notate(jobCtx *models.JobContext, localPath, siteObjPath, direction string, props map[string]string) *models.Metasheet {
	if jobCtx == nil {
		jobCtx = m.GetJobContextFromEnv()
	}
	if jobCtx == nil {
		jobCtx = models.NewJobContext("local")
	}

	// Framework-reserved keys cannot be smuggled in through caller props.
	clean := make(map[string]string, len(props))
	for k, v := range props {
		if !models.IsReservedProp(k) {
			clean[k] = v
		}
	}

	sheet := models.NewMetasheet(jobCtx.JobID, localPath, siteObjPath, clean)
	sheet.SiteName = jobCtx.SiteName
	sheet.SetReserved(models.PropDirection, direction)
	sheet.SetReserved(models.PropWorkflowID, jobCtx.WorkflowID)
	sheet.SetReserved(models.PropJobID, jobCtx.JobID)
	sheet.SetReserved(models.PropSiteName, jobCtx.SiteName)
	sheet.SetReserved(models.PropLocalPath, localPath)
	sheet.SetReserved(models.PropSiteObjPath, siteObjPath)

	if err := m.storage.MetasheetStorage().SaveMetasheet(context.Background(), sheet); err != nil {
		m.logger.Error().Err(err).Str("job_id", jobCtx.JobID).Msg("Failed to persist metasheet")
		return nil
	}

	serialized, err := models.Serialize(sheet)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to serialize metasheet for INFO emission")
		return sheet
	}
	m.EmitStatus(jobCtx, models.StatusInfo, "INFO", serialized)
	return sheet
}

// ExecSiteEndpoint invokes a dotted pillar.method site endpoint. run.submit
// reshapes its first argument into a nested command; when manage is set the
// façade brackets the call with PENDING/RUNNING and the terminal status.
func (m *LwfManager) ExecSiteEndpoint(defn *models.JobDefn, jobCtx *models.JobContext, manage bool) (string, error) {
	if defn == nil || defn.EntryPointType != models.EntryTypeSite {
		return "", fmt.Errorf("execSiteEndpoint requires a SITE job definition")
	}
	pillar, method, err := defn.SplitEntryPoint()
	if err != nil {
		return "", err
	}

	site := defn.SiteName
	if site == "" {
		site = "local"
	}
	if jobCtx == nil {
		jobCtx = m.GetJobContextFromEnv()
	}

	if pillar == models.PillarRun && method == "submit" {
		if len(defn.JobArgs) == 0 {
			return "", fmt.Errorf("run.submit requires a nested command argument")
		}
		nested := models.NewJobDefn(defn.JobArgs[0], defn.JobArgs[1:]...)
		nested.SiteName = site
		status := m.Submit(nested, jobCtx, defn.ComputeType, nil)
		if status == nil {
			return "", fmt.Errorf("nested submit rejected")
		}
		return models.Serialize(status)
	}

	if manage && jobCtx != nil {
		m.EmitStatus(jobCtx, models.StatusPending, "", "")
		m.EmitStatus(jobCtx, models.StatusRunning, "", "")
	}

	out, err := m.bridge.InvokeEndpoint(context.Background(), site, pillar+"."+method, defn.JobArgs)

	if manage && jobCtx != nil {
		if err != nil {
			m.EmitStatus(jobCtx, models.StatusFailed, err.Error(), "")
		} else {
			m.EmitStatus(jobCtx, models.StatusComplete, "", "")
		}
	}
	return out, err
}

// GetJobContextFromEnv reconstructs the ambient context conveyed by the
// job-id environment variable, so nested executions attribute work to
// their parent without plumbing. Returns nil outside a managed job.
func (m *LwfManager) GetJobContextFromEnv() *models.JobContext {
	jobID := common.AmbientJobID()
	if jobID == "" {
		return nil
	}
	if status, err := m.storage.StatusStorage().GetLatestStatus(context.Background(), jobID); err == nil && status != nil {
		return status.Context
	}
	return &models.JobContext{JobID: jobID, NativeID: jobID, WorkflowID: jobID, SiteName: "local"}
}

// Logs returns persisted log records for a job.
func (m *LwfManager) Logs(jobID string) []*models.LogRecord {
	records, err := m.storage.LogStorage().GetJobLogs(context.Background(), jobID)
	if err != nil {
		return nil
	}
	return records
}

func (m *LwfManager) recordLog(level models.LogLevel, jobCtx *models.JobContext, message string) {
	record := models.NewLogRecord(level, jobCtx.SiteName, jobCtx.WorkflowID, jobCtx.JobID, message)
	if err := m.storage.LogStorage().SaveLogRecord(context.Background(), record); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist log record")
	}
	m.stream.Publish(record)
}
