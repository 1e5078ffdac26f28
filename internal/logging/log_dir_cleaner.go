package logging

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

type logFile struct {
	path    string
	size    int64
	modTime time.Time
}

// pruneLogDir deletes the oldest *.log / *.log.gz files in dir until their total size is at
// most maxBytes. keep is never deleted. It returns how many files were removed.
func pruneLogDir(dir string, maxBytes int64, keep string) (int, error) {
	if maxBytes <= 0 || strings.TrimSpace(dir) == "" {
		return 0, nil
	}
	dir = filepath.Clean(dir)
	if keep != "" {
		keep = filepath.Clean(keep)
	}

	files, total, err := listLogFiles(dir)
	if err != nil {
		return 0, err
	}
	if total <= maxBytes {
		return 0, nil
	}

	slices.SortFunc(files, func(a, b logFile) int { return a.modTime.Compare(b.modTime) })

	removed := 0
	for _, f := range files {
		if total <= maxBytes {
			break
		}
		if f.path == keep {
			continue
		}
		if errRemove := os.Remove(f.path); errRemove != nil {
			log.Warnf("logging: failed to remove old log file %s: %v", filepath.Base(f.path), errRemove)
			continue
		}
		total -= f.size
		removed++
	}
	return removed, nil
}

func listLogFiles(dir string) ([]logFile, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	var (
		files []logFile
		total int64
	)
	for _, entry := range entries {
		if entry.IsDir() || !isLogFileName(entry.Name()) {
			continue
		}
		info, errInfo := entry.Info()
		if errInfo != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, logFile{
			path:    filepath.Join(dir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	return files, total, nil
}

func isLogFileName(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".log") || strings.HasSuffix(lower, ".log.gz")
}
