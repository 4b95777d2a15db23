package domain

import (
	"fmt"
	"path/filepath"
	"time"
)

type SnapshotFile string

const (
	CompressedFile SnapshotFile = "anime-titles.xml.gz"
	XMLFile        SnapshotFile = "anime-titles.xml"
	JSONFile       SnapshotFile = "anime-titles.json"
)

// SnapshotPaths holds the artifact paths of one catalog snapshot
type SnapshotPaths struct {
	Dir            string
	CompressedPath string
	XMLPath        string
	JSONPath       string
}

// NewSnapshotPaths returns the snapshot paths under root for the period containing now.
// A 24h interval (or zero) names the directory after the local calendar date, YYYY.M.D without
// zero padding; any other interval appends the HHMM of the period start. Periods are aligned to
// the local wall clock of now.
func NewSnapshotPaths(root string, now time.Time, interval time.Duration) *SnapshotPaths {
	dir := filepath.Join(root, SnapshotName(now, interval))
	return &SnapshotPaths{
		Dir:            dir,
		CompressedPath: makeSnapshotPath(dir, CompressedFile),
		XMLPath:        makeSnapshotPath(dir, XMLFile),
		JSONPath:       makeSnapshotPath(dir, JSONFile),
	}
}

// SnapshotName returns the directory name of the snapshot period containing now.
func SnapshotName(now time.Time, interval time.Duration) string {
	if interval <= 0 || interval == 24*time.Hour {
		return fmt.Sprintf("%d.%d.%d", now.Year(), int(now.Month()), now.Day())
	}

	// truncate the wall clock reading so periods start at local midnight regardless of the zone offset
	wall := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.UTC)
	start := wall.Truncate(interval)
	return fmt.Sprintf("%d.%d.%d-%02d%02d", start.Year(), int(start.Month()), start.Day(), start.Hour(), start.Minute())
}

func makeSnapshotPath(dir string, sf SnapshotFile) string {
	return filepath.Join(dir, string(sf))
}
