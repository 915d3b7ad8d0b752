package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRoundTrip(t *testing.T) {
	jobCtx := NewJobContext("local")
	jobCtx.Name = "roundtrip"
	status := NewJobStatus(jobCtx, StatusRunning)
	status.NativeInfo = "native payload"

	encoded, err := Serialize(status)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "{", "payload must be opaque, not raw JSON")

	decoded, err := Deserialize[JobStatus](encoded)
	require.NoError(t, err)

	assert.Equal(t, status.StatusID, decoded.StatusID)
	assert.Equal(t, StatusRunning, decoded.Status)
	assert.Equal(t, "native payload", decoded.NativeInfo)
	require.NotNil(t, decoded.Context)
	assert.Equal(t, jobCtx.JobID, decoded.Context.JobID)
	assert.Equal(t, jobCtx.WorkflowID, decoded.Context.WorkflowID)
}

func TestSerializeStable(t *testing.T) {
	// Maps serialize with sorted keys, so equal objects encode identically.
	sheet := NewMetasheet("job-1", "/tmp/a", "/store/a", map[string]string{"b": "2", "a": "1", "c": "3"})

	first, err := Serialize(sheet)
	require.NoError(t, err)
	second, err := Serialize(sheet)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	decoded, err := Deserialize[Metasheet](first)
	require.NoError(t, err)
	reencoded, err := Serialize(decoded)
	require.NoError(t, err)
	assert.Equal(t, first, reencoded)
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	_, err := Deserialize[JobStatus]("not base64url!!")
	assert.Error(t, err)
}
