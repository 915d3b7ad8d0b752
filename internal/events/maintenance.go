// -----------------------------------------------------------------------
// Store maintenance - scheduled log retention sweep
// -----------------------------------------------------------------------

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/common"
	"github.com/ternarybob/lwfm/internal/interfaces"
)

// Maintenance runs periodic store upkeep. Only log buckets are trimmed;
// statuses, workflows and metasheets are provenance and never expire.
type Maintenance struct {
	storage   interfaces.StorageManager
	logger    arbor.ILogger
	cron      *cron.Cron
	retention time.Duration
	schedule  string
}

// NewMaintenance creates the maintenance scheduler from config.
func NewMaintenance(storage interfaces.StorageManager, cfg common.MaintenanceConfig, logger arbor.ILogger) (*Maintenance, error) {
	retention, err := time.ParseDuration(cfg.LogRetention)
	if err != nil {
		return nil, fmt.Errorf("invalid log retention %q: %w", cfg.LogRetention, err)
	}
	return &Maintenance{
		storage:   storage,
		logger:    logger,
		cron:      cron.New(),
		retention: retention,
		schedule:  cfg.Schedule,
	}, nil
}

// Start schedules the sweep.
func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc(m.schedule, m.sweep); err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}
	m.cron.Start()
	m.logger.Info().Str("schedule", m.schedule).Str("retention", m.retention.String()).Msg("Store maintenance scheduled")
	return nil
}

// Stop halts the scheduler.
func (m *Maintenance) Stop() {
	m.cron.Stop()
}

func (m *Maintenance) sweep() {
	cutoff := time.Now().Add(-m.retention)
	purged, err := m.storage.LogStorage().PurgeOlderThan(context.Background(), cutoff)
	if err != nil {
		m.logger.Error().Err(err).Msg("Log retention sweep failed")
		return
	}
	if purged > 0 {
		m.logger.Info().Int64("purged", purged).Msg("Log retention sweep complete")
	}
}
