// Atomic file writes.
//
// Information Hiding:
// - Exclusive creation for new files
// - Temp sibling plus rename for replacements, temp removed on failure

package tools

import (
	"fmt"
	"os"
	"time"
)

// renameFile is swapped in tests to simulate rename failures.
var renameFile = os.Rename

// writeExclusive creates path and writes data, failing if path exists.
func writeExclusive(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// writeAtomic replaces path with data via a temp sibling and rename. On any
// failure the original file is left untouched and the temp file removed.
func writeAtomic(path string, data []byte) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	cleanup := func() { _ = os.Remove(tmp) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		cleanup()
		return err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return err
	}
	if err := renameFile(tmp, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
