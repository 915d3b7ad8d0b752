// -----------------------------------------------------------------------
// Workflow event - a registered trigger awaiting its firing condition
// -----------------------------------------------------------------------

package models

import (
	"errors"
	"fmt"

	"github.com/ternarybob/lwfm/internal/common"
)

// EventType tags the three trigger variants.
type EventType string

// EventType constants
const (
	EventTypeJob    EventType = "JOB"    // fire when a job reaches a canonical status
	EventTypeData   EventType = "DATA"   // fire when matching metadata is published
	EventTypeRemote EventType = "REMOTE" // internal: poll a remote site until terminal
)

// WorkflowEvent is a registered trigger. The Type field selects which of
// the variant fields are meaningful; events are consumed (deleted) when
// fired, so each fires at most once.
type WorkflowEvent struct {
	EventID   string      `json:"event_id"`
	Type      EventType   `json:"type"`
	FireDefn  *JobDefn    `json:"fire_defn,omitempty"`
	FireSite  string      `json:"fire_site,omitempty"`
	FireJobID string      `json:"fire_job_id,omitempty"` // pre-allocated id of the future job
	Context   *JobContext `json:"context,omitempty"`     // originating context for inheritance

	// JOB variant
	RuleJobID  string `json:"rule_job_id,omitempty"`
	RuleStatus Status `json:"rule_status,omitempty"`

	// DATA variant; values are regexes, AND-combined
	QueryRegExs map[string]string `json:"query_regexs,omitempty"`

	// REMOTE variant
	RemoteJobID string `json:"remote_job_id,omitempty"`
	RemoteSite  string `json:"remote_site,omitempty"`
}

// NewJobEvent registers "fire defn on fireSite when ruleJobId reaches
// ruleStatus". The future job's id is pre-allocated so workflow authors can
// reference it before it runs.
func NewJobEvent(ruleJobID string, ruleStatus Status, fireDefn *JobDefn, fireSite string) *WorkflowEvent {
	return &WorkflowEvent{
		EventID:    common.NewID(),
		Type:       EventTypeJob,
		RuleJobID:  ruleJobID,
		RuleStatus: ruleStatus,
		FireDefn:   fireDefn,
		FireSite:   fireSite,
		FireJobID:  common.NewID(),
	}
}

// NewMetadataEvent registers "fire defn when published metadata matches
// every regex clause".
func NewMetadataEvent(queryRegExs map[string]string, fireDefn *JobDefn, fireSite string) *WorkflowEvent {
	return &WorkflowEvent{
		EventID:     common.NewID(),
		Type:        EventTypeData,
		QueryRegExs: queryRegExs,
		FireDefn:    fireDefn,
		FireSite:    fireSite,
		FireJobID:   common.NewID(),
	}
}

// NewRemoteJobEvent registers the internal polling trigger created when a
// job is submitted to a remote site.
func NewRemoteJobEvent(ctx *JobContext) *WorkflowEvent {
	return &WorkflowEvent{
		EventID:     common.NewID(),
		Type:        EventTypeRemote,
		Context:     ctx,
		RemoteJobID: ctx.JobID,
		RemoteSite:  ctx.SiteName,
	}
}

// Validate checks the variant invariants before the event is persisted.
func (e *WorkflowEvent) Validate() error {
	if e.EventID == "" {
		return errors.New("event id is required")
	}
	switch e.Type {
	case EventTypeJob:
		if e.RuleJobID == "" {
			return errors.New("job event requires a rule job id")
		}
		if !IsValidStatus(e.RuleStatus) {
			return fmt.Errorf("invalid rule status: %s", e.RuleStatus)
		}
		// INFO observations never satisfy job triggers; data events own INFO.
		if e.RuleStatus == StatusInfo {
			return errors.New("job event rule status cannot be INFO")
		}
		if e.FireDefn == nil {
			return errors.New("job event requires a fire definition")
		}
		return e.FireDefn.Validate()
	case EventTypeData:
		if len(e.QueryRegExs) == 0 {
			return errors.New("metadata event requires at least one query clause")
		}
		if e.FireDefn == nil {
			return errors.New("metadata event requires a fire definition")
		}
		return e.FireDefn.Validate()
	case EventTypeRemote:
		if e.RemoteJobID == "" || e.RemoteSite == "" {
			return errors.New("remote event requires a job id and site")
		}
		return nil
	default:
		return fmt.Errorf("unknown event type: %s", e.Type)
	}
}
