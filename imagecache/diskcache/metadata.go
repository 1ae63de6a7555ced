package diskcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/AdguardTeam/golibs/log"

	"github.com/bboehmke/imagecached/imagecache/fingerprint"
)

// loadTimes reads a metadata sidecar mapping fingerprint -> unix-seconds
// timestamp. A missing or corrupt file is treated as empty rather than
// propagated; a corrupt one is also logged.
func (c *Cache) loadTimes(name string) map[fingerprint.Fingerprint]time.Time {
	result := make(map[fingerprint.Fingerprint]time.Time)

	raw, err := os.ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		return result
	}

	var asSeconds map[string]float64
	if err := json.Unmarshal(raw, &asSeconds); err != nil {
		log.Info("diskcache: corrupt metadata %s, treating as empty: %v", name, err)
		return result
	}
	for k, v := range asSeconds {
		result[fingerprint.Fingerprint(k)] = time.Unix(0, int64(v*float64(time.Second)))
	}
	return result
}

// persistTimesLocked writes both sidecar files atomically. Must be
// called with c.mu held. Failures are logged, not propagated: metadata
// persistence is an optimization (faster restarts), not a correctness
// requirement for the in-memory view already held.
func (c *Cache) persistTimesLocked() {
	if err := c.writeTimesLocked(accessTimesFile, c.accessTimes); err != nil {
		log.Info("diskcache: failed to persist %s: %v", accessTimesFile, err)
	}
	if err := c.writeTimesLocked(creationTimesFile, c.creationTimes); err != nil {
		log.Info("diskcache: failed to persist %s: %v", creationTimesFile, err)
	}
}

func (c *Cache) writeTimesLocked(name string, times map[fingerprint.Fingerprint]time.Time) error {
	asSeconds := make(map[string]float64, len(times))
	for fp, t := range times {
		asSeconds[fp.String()] = float64(t.UnixNano()) / float64(time.Second)
	}
	data, err := json.Marshal(asSeconds)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(c.dir, name), data)
}

// writeFileAtomic writes data to a temp file in the same directory as
// path, then renames it into place: the usual write-to-temp-then-rename
// idiom for crash-safe file replacement.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
