// -----------------------------------------------------------------------
// Workflow dump - latest-per-job aggregation for reporting
// -----------------------------------------------------------------------

package middleware

import (
	"context"

	"github.com/ternarybob/lwfm/internal/models"
)

// JobReport is one job's line in a workflow dump. Status is the reported
// status after aggregation rules; Latest is the chosen observation.
type JobReport struct {
	JobID  string            `json:"job_id"`
	Status models.Status     `json:"status"`
	Latest *models.JobStatus `json:"latest"`
}

// WorkflowDump aggregates a workflow, its jobs' reported statuses, and the
// metasheets tagged to it.
type WorkflowDump struct {
	Workflow   *models.Workflow    `json:"workflow"`
	Jobs       []JobReport         `json:"jobs"`
	Metasheets []*models.Metasheet `json:"metasheets"`
}

// DumpWorkflow aggregates the workflow record, the latest-per-job statuses
// of its jobs, and all metasheets tagged with the workflow id.
func (m *LwfManager) DumpWorkflow(workflowID string) *WorkflowDump {
	ctx := context.Background()

	wf, err := m.storage.WorkflowStorage().GetWorkflow(ctx, workflowID)
	if err != nil || wf == nil {
		m.logger.Error().Str("workflow_id", workflowID).Msg("dumpWorkflow: unknown workflow")
		return nil
	}

	statuses, err := m.storage.StatusStorage().GetWorkflowStatuses(ctx, workflowID)
	if err != nil {
		statuses = nil
	}
	sheets, err := m.storage.MetasheetStorage().GetWorkflowMetasheets(ctx, workflowID)
	if err != nil {
		sheets = nil
	}

	return &WorkflowDump{
		Workflow:   wf,
		Jobs:       LatestPerJob(statuses),
		Metasheets: sheets,
	}
}

// LatestPerJob groups statuses by job and picks each job's reported
// status: a terminal status wins over any later non-terminal, otherwise
// the newest observation stands. A job whose history is INFO-only is
// reported COMPLETE -- the notation stream implies the work succeeded.
// Input is newest-first, as the store returns it.
func LatestPerJob(statuses []*models.JobStatus) []JobReport {
	type jobAgg struct {
		chosen   *models.JobStatus
		terminal *models.JobStatus
		infoOnly bool
	}

	order := []string{}
	byJob := make(map[string]*jobAgg)
	for _, status := range statuses {
		jobID := status.JobID()
		agg, ok := byJob[jobID]
		if !ok {
			agg = &jobAgg{infoOnly: true}
			byJob[jobID] = agg
			order = append(order, jobID)
		}
		if agg.chosen == nil {
			agg.chosen = status // newest observation
		}
		if status.IsTerminal() && agg.terminal == nil {
			agg.terminal = status
		}
		if status.Status != models.StatusInfo {
			agg.infoOnly = false
		}
	}

	reports := make([]JobReport, 0, len(byJob))
	for _, jobID := range order {
		agg := byJob[jobID]
		report := JobReport{JobID: jobID}
		switch {
		case agg.terminal != nil:
			report.Status = agg.terminal.Status
			report.Latest = agg.terminal
		case agg.infoOnly:
			report.Status = models.StatusComplete
			report.Latest = agg.chosen
		default:
			report.Status = agg.chosen.Status
			report.Latest = agg.chosen
		}
		reports = append(reports, report)
	}
	return reports
}
