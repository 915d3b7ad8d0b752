//go:build !windows

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// CreateLockFile tries to create the named file and acquire an exclusive
// advisory lock on it. If another live process holds the lock an error is
// returned. The returned file must stay open for the life of the process.
func CreateLockFile(filename string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("error ensuring lock directory exists: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		return nil, fmt.Errorf("another lwfm instance holds %s: %w", filename, err)
	}

	if err := file.Truncate(0); err != nil {
		file.Close()
		return nil, err
	}
	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		file.Close()
		return nil, err
	}

	return file, nil
}
