//go:build !windows

package common

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "lwfm.lock")

	lock, err := CreateLockFile(path)
	require.NoError(t, err)
	defer lock.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestCreateLockFileHeldByLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lwfm.lock")

	first, err := CreateLockFile(path)
	require.NoError(t, err)
	defer first.Close()

	// Same-process reacquisition of a flock on a second descriptor fails
	// just as a second instance would.
	_, err = CreateLockFile(path)
	assert.Error(t, err)
}

func TestCreateLockFileReleasedOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lwfm.lock")

	first, err := CreateLockFile(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := CreateLockFile(path)
	require.NoError(t, err)
	second.Close()
}
