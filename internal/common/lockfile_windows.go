//go:build windows

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// CreateLockFile creates the named file exclusively. Windows has no flock;
// exclusive create plus delete-on-shutdown gives the same single-instance
// guarantee for a well-behaved service.
func CreateLockFile(filename string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("error ensuring lock directory exists: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("another lwfm instance holds %s: %w", filename, err)
	}

	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		file.Close()
		return nil, err
	}

	return file, nil
}
