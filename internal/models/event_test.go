package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobEventPreallocatesFireJob(t *testing.T) {
	defn := NewJobDefn("echo fired")
	event := NewJobEvent("rule-job", StatusComplete, defn, "local")

	require.NotEmpty(t, event.EventID)
	require.NotEmpty(t, event.FireJobID)
	assert.NotEqual(t, event.EventID, event.FireJobID)
	assert.Equal(t, EventTypeJob, event.Type)
	assert.NoError(t, event.Validate())
}

func TestJobEventValidation(t *testing.T) {
	defn := NewJobDefn("echo fired")

	t.Run("Missing rule job id", func(t *testing.T) {
		event := NewJobEvent("", StatusComplete, defn, "local")
		assert.Error(t, event.Validate())
	})

	t.Run("Unknown rule status", func(t *testing.T) {
		event := NewJobEvent("rule-job", Status("WEDGED"), defn, "local")
		assert.Error(t, event.Validate())
	})

	t.Run("INFO rule status rejected", func(t *testing.T) {
		// INFO observations belong to data events; a job trigger on INFO
		// would never be satisfiable.
		event := NewJobEvent("rule-job", StatusInfo, defn, "local")
		assert.Error(t, event.Validate())
	})

	t.Run("Missing fire definition", func(t *testing.T) {
		event := NewJobEvent("rule-job", StatusComplete, nil, "local")
		assert.Error(t, event.Validate())
	})
}

func TestMetadataEventValidation(t *testing.T) {
	defn := NewJobDefn("echo fired")

	event := NewMetadataEvent(map[string]string{"case": "put*"}, defn, "local")
	assert.NoError(t, event.Validate())
	assert.Equal(t, EventTypeData, event.Type)
	assert.NotEmpty(t, event.FireJobID)

	empty := NewMetadataEvent(nil, defn, "local")
	assert.Error(t, empty.Validate())
}

func TestRemoteJobEventValidation(t *testing.T) {
	ctx := NewJobContext("perlmutter")
	event := NewRemoteJobEvent(ctx)

	assert.Equal(t, EventTypeRemote, event.Type)
	assert.Equal(t, ctx.JobID, event.RemoteJobID)
	assert.Equal(t, "perlmutter", event.RemoteSite)
	assert.NoError(t, event.Validate())

	event.RemoteSite = ""
	assert.Error(t, event.Validate())
}
