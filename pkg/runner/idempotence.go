package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"vde-layout/pkg/backend"
)

// idempotenceRecord is one line: "<hash> <RFC3339 timestamp>".
type idempotenceRecord struct {
	Hash      string
	AppliedAt time.Time
}

// idempotenceStore reads and writes the on-disk idempotence record for a
// given (windowMode, windowName, rootTarget) key, guarded by an advisory
// file lock so two concurrent invocations targeting the same window never
// interleave a partial apply with a stale read. The record lives under the
// user cache directory since it's disposable state, not config.
type idempotenceStore struct {
	dir string
}

func newIdempotenceStore() (*idempotenceStore, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(cacheDir, "vde-layout", "idempotence")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &idempotenceStore{dir: dir}, nil
}

func (s *idempotenceStore) keyPath(windowMode backend.WindowMode, windowName, rootTarget string) string {
	key := fmt.Sprintf("%s_%s_%s", windowMode, windowName, rootTarget)
	safe := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, key)
	return filepath.Join(s.dir, safe+".record")
}

// checkAndRecord takes the lock for key, compares storedHash against
// newHash, and — only when they differ (or force is set) — writes newHash
// as the new record before releasing the lock. It returns alreadyApplied =
// true when the stored hash already matched and force was false, in which
// case nothing was written.
func (s *idempotenceStore) checkAndRecord(windowMode backend.WindowMode, windowName, rootTarget, newHash string, force bool) (alreadyApplied bool, err error) {
	path := s.keyPath(windowMode, windowName, rootTarget)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return false, err
	}
	defer lock.Unlock()

	existing, readErr := readRecord(path)
	if readErr == nil && !force && existing.Hash == newHash {
		return true, nil
	}

	if err := writeRecord(path, idempotenceRecord{Hash: newHash, AppliedAt: stampNow()}); err != nil {
		return false, err
	}
	return false, nil
}

func readRecord(path string) (idempotenceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return idempotenceRecord{}, err
	}
	fields := strings.Fields(strings.TrimSpace(string(data)))
	if len(fields) != 2 {
		return idempotenceRecord{}, fmt.Errorf("idempotence record %s malformed", path)
	}
	ts, err := time.Parse(time.RFC3339, fields[1])
	if err != nil {
		return idempotenceRecord{}, err
	}
	return idempotenceRecord{Hash: fields[0], AppliedAt: ts}, nil
}

func writeRecord(path string, rec idempotenceRecord) error {
	line := fmt.Sprintf("%s %s\n", rec.Hash, rec.AppliedAt.Format(time.RFC3339))
	return os.WriteFile(path, []byte(line), 0o644)
}

// stampNow is isolated in its own function so tests can override it without
// touching the rest of the store; production code calls time.Now().
var stampNow = func() time.Time { return time.Now() }
