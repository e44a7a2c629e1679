package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupTemps removes downloads left behind in dir (os.TempDir() when empty)
// that are older than maxAge. It only touches names created by the resolver
// and returns how many files were removed.
func CleanupTemps(dir string, maxAge time.Duration) int {
	if dir == "" {
		dir = os.TempDir()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasPrefix(name, httpTempPrefix) || strings.HasPrefix(name, s3TempPrefix)) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if os.Remove(filepath.Join(dir, name)) == nil {
			removed++
		}
	}
	return removed
}
