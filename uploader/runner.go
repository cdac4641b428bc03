package uploader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type RunnerConfig struct {
	DBPath     string
	CursorPath string
	LogDir     string
	Line       string
	ChunkSize  int
	// DeltaT widens the scan window behind the cursor to catch files that
	// were still being written during the previous run.
	DeltaT   time.Duration
	ErrorDir string
	Debug    bool
}

// Runner drives one ingestion pass: it scans the day-named subdirectories
// of the log share for inspection XMLs newer than the cursor, parses them,
// and uploads the resulting board records with duplicate-ignore semantics.
type Runner struct {
	cfg   RunnerConfig
	store *Store
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, fmt.Errorf("DBPath is required")
	}
	if strings.TrimSpace(cfg.LogDir) == "" {
		return nil, fmt.Errorf("LogDir is required")
	}
	if strings.TrimSpace(cfg.Line) == "" {
		return nil, fmt.Errorf("Line is required")
	}
	if strings.TrimSpace(cfg.CursorPath) == "" {
		cfg.CursorPath = "last_date.txt"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 10
	}

	store, err := OpenStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, store: store}, nil
}

func (r *Runner) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	return err
}

// Store exposes the underlying result store for lookups.
func (r *Runner) Store() *Store { return r.store }

func (r *Runner) debugf(format string, args ...any) {
	if r == nil || !r.cfg.Debug {
		return
	}
	log.Printf(format, args...)
}

type runStats struct {
	FilesScanned   int
	FilesSkipped   int
	FilesIngested  int
	FilesErrored   int
	BoardsInserted int
	BoardsIgnored  int
}

// RunOnce performs one scan/parse/upload pass. The cursor advances to the
// pass start time only when every record upload succeeded, so a failed
// upload is retried on the next run; duplicate-ignore makes the resulting
// re-reads harmless. Parse failures do not hold the cursor back: broken
// XMLs are moved to the error dir (when configured) and recorded.
func (r *Runner) RunOnce() error {
	start := time.Now()
	stats := &runStats{}

	cursor, err := ReadCursor(r.cfg.CursorPath)
	if err != nil {
		return err
	}
	since := cursor.Add(-r.cfg.DeltaT)
	r.debugf("run_once start: dir=%q line=%q since=%s", r.cfg.LogDir, r.cfg.Line, since.Format(cursorLayout))

	dirs := dailySubdirs(r.cfg.LogDir, since, start)
	logs, err := collectLogs(dirs, since)
	if err != nil {
		return err
	}

	allOK := true
	for _, p := range logs {
		stats.FilesScanned++
		if err := r.ingestLog(p, stats); err != nil {
			allOK = false
			log.Printf("ingest %s: %v", p, err)
		}
	}

	if allOK {
		if err := WriteCursor(r.cfg.CursorPath, start); err != nil {
			return err
		}
	} else {
		log.Printf("upload errors, not advancing cursor")
	}
	r.debugf("run_once done: scanned=%d skipped=%d ingested=%d errored=%d inserted=%d ignored=%d elapsed=%s",
		stats.FilesScanned, stats.FilesSkipped, stats.FilesIngested, stats.FilesErrored,
		stats.BoardsInserted, stats.BoardsIgnored, time.Since(start))
	return nil
}

// dailySubdirs returns the existing YYYY_MM_DD subdirectories between the
// two dates, inclusive.
func dailySubdirs(root string, from time.Time, to time.Time) []string {
	var out []string
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for !day.After(to) {
		p := filepath.Join(root, day.Format("2006_01_02"))
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			out = append(out, p)
		}
		day = day.AddDate(0, 0, 1)
	}
	return out
}

// collectLogs lists inspection XMLs modified at or after since. The
// machines write *_AOI / *_AXI temp files while inspecting; those are
// skipped.
func collectLogs(dirs []string, since time.Time) ([]string, error) {
	var out []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			ext := strings.ToLower(filepath.Ext(name))
			if ext != ".xml" {
				continue
			}
			stem := strings.TrimSuffix(name, filepath.Ext(name))
			if strings.HasSuffix(stem, "_AOI") || strings.HasSuffix(stem, "_AXI") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(since) {
				continue
			}
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// ingestLog parses one XML and uploads its board records in chunks.
// Returns an error only for upload failures; parse failures are terminal
// for the file and must not block the cursor.
func (r *Runner) ingestLog(path string, stats *runStats) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(content)
	sha := hex.EncodeToString(sum[:])

	already, err := r.store.IsLogProcessed(path, sha)
	if err != nil {
		return err
	}
	if already {
		r.debugf("skip already processed path=%q sha=%s", path, sha)
		stats.FilesSkipped++
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	panel, parseErr := ParsePanel(content, r.cfg.Line)
	if parseErr != nil {
		stats.FilesErrored++
		log.Printf("parse %s: %v", path, parseErr)
		dst := path
		if strings.TrimSpace(r.cfg.ErrorDir) != "" {
			moved, mvErr := QuarantineReport(path, r.cfg.ErrorDir)
			if mvErr != nil {
				log.Printf("quarantine %s: %v", path, mvErr)
			} else {
				dst = moved
				r.debugf("quarantined broken xml to %q", moved)
			}
		}
		return r.store.MarkLogProcessed(&ProcessedLog{
			Path:        path,
			SHA256:      sha,
			SizeBytes:   info.Size(),
			ModUnixNano: info.ModTime().UnixNano(),
			ProcessedAt: time.Now(),
			LastError:   fmt.Sprintf("parse error (moved to %s): %v", dst, parseErr),
		})
	}

	recs := panel.Records()
	for i := 0; i < len(recs); i += r.cfg.ChunkSize {
		end := i + r.cfg.ChunkSize
		if end > len(recs) {
			end = len(recs)
		}
		inserted, ignored, err := r.store.InsertBatch(recs[i:end])
		if err != nil {
			return err
		}
		stats.BoardsInserted += inserted
		stats.BoardsIgnored += ignored
	}

	if err := r.store.MarkLogProcessed(&ProcessedLog{
		Path:        path,
		SHA256:      sha,
		SizeBytes:   info.Size(),
		ModUnixNano: info.ModTime().UnixNano(),
		ProcessedAt: time.Now(),
		Boards:      len(recs),
	}); err != nil {
		return err
	}
	stats.FilesIngested++
	return nil
}
