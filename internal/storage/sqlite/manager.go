package sqlite

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lwfm/internal/common"
	"github.com/ternarybob/lwfm/internal/interfaces"
)

// Manager implements the StorageManager interface over one SQLite database.
type Manager struct {
	db        *SQLiteDB
	workflow  interfaces.WorkflowStorage
	status    interfaces.StatusStorage
	event     interfaces.EventStorage
	metasheet interfaces.MetasheetStorage
	log       interfaces.LogStorage
	logger    arbor.ILogger
}

// NewManager creates a new SQLite storage manager
func NewManager(logger arbor.ILogger, config *common.StoreConfig) (interfaces.StorageManager, error) {
	db, err := NewSQLiteDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:        db,
		workflow:  NewWorkflowStorage(db, logger),
		status:    NewStatusStorage(db, logger),
		event:     NewEventStorage(db, logger),
		metasheet: NewMetasheetStorage(db, logger),
		log:       NewLogStorage(db, logger),
		logger:    logger,
	}, nil
}

// WorkflowStorage returns the workflow bucket
func (m *Manager) WorkflowStorage() interfaces.WorkflowStorage {
	return m.workflow
}

// StatusStorage returns the job status bucket
func (m *Manager) StatusStorage() interfaces.StatusStorage {
	return m.status
}

// EventStorage returns the trigger buckets
func (m *Manager) EventStorage() interfaces.EventStorage {
	return m.event
}

// MetasheetStorage returns the data metadata bucket
func (m *Manager) MetasheetStorage() interfaces.MetasheetStorage {
	return m.metasheet
}

// LogStorage returns the log buckets
func (m *Manager) LogStorage() interfaces.LogStorage {
	return m.log
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
