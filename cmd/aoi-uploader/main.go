package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"aoi-uploader/uploader"

	"github.com/robfig/cron/v3"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var configPath string
	var dbPath string
	var cursorPath string
	var logDir string
	var line string
	var chunkSize int
	var deltaT time.Duration
	var errorDir string
	var debug bool
	var once bool
	var pollInterval time.Duration
	var schedule string

	flag.StringVar(&configPath, "config", "", "YAML config file path.")
	flag.StringVar(&dbPath, "db", "aoi.db", "SQLite database path.")
	flag.StringVar(&cursorPath, "cursor", "last_date.txt", "Cursor file holding the last successful run time.")
	flag.StringVar(&logDir, "dir", "", "AOI log share root (contains YYYY_MM_DD subdirectories).")
	flag.StringVar(&line, "line", "", "Production line name (station names derive from it).")
	flag.IntVar(&chunkSize, "chunk-size", 10, "Records per insert batch.")
	flag.DurationVar(&deltaT, "delta-t", 0, "Scan overlap behind the cursor (e.g. 90s).")
	flag.StringVar(&errorDir, "error-dir", "", "Directory for XMLs that fail to parse. Empty leaves them in place.")
	flag.BoolVar(&debug, "debug", false, "Enable debug logs.")
	flag.BoolVar(&once, "once", false, "Run once and exit (for external schedulers).")
	flag.DurationVar(&pollInterval, "poll-interval", 5*time.Minute, "Interval between runs when polling.")
	flag.StringVar(&schedule, "schedule", "", "Cron spec for scheduled runs (e.g. '@every 5m'). Overrides polling.")
	flag.Parse()

	visited := map[string]bool{}
	flag.CommandLine.Visit(func(f *flag.Flag) {
		visited[f.Name] = true
	})

	// Base config from file (optional)
	fileCfg := &uploader.FileConfig{}
	if configPath != "" {
		cfg, err := uploader.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		fileCfg = cfg
	}

	// Merge config + CLI overrides
	finalDB := fileCfg.DB
	if finalDB == "" {
		finalDB = "aoi.db"
	}
	if visited["db"] {
		finalDB = dbPath
	}

	finalCursor := fileCfg.Cursor
	if finalCursor == "" {
		finalCursor = "last_date.txt"
	}
	if visited["cursor"] {
		finalCursor = cursorPath
	}

	finalDir := fileCfg.AOI.Dir
	if visited["dir"] {
		finalDir = logDir
	}
	finalLine := fileCfg.AOI.Line
	if visited["line"] {
		finalLine = line
	}

	finalChunk := fileCfg.AOI.Chunks
	if finalChunk == 0 {
		finalChunk = 10
	}
	if visited["chunk-size"] {
		finalChunk = chunkSize
	}

	finalDelta := fileCfg.AOI.DeltaT.Duration
	if visited["delta-t"] {
		finalDelta = deltaT
	}

	finalErrorDir := fileCfg.AOI.ErrorDir
	if visited["error-dir"] {
		finalErrorDir = errorDir
	}

	finalDebug := fileCfg.Debug
	if visited["debug"] {
		finalDebug = debug
	}

	finalSchedule := fileCfg.Schedule
	if visited["schedule"] {
		finalSchedule = schedule
	}

	if strings.TrimSpace(finalDir) == "" {
		fmt.Fprintln(os.Stderr, "missing log dir (use --dir or config.yaml aoi.dir)")
		os.Exit(2)
	}
	if strings.TrimSpace(finalLine) == "" {
		fmt.Fprintln(os.Stderr, "missing line name (use --line or config.yaml aoi.line)")
		os.Exit(2)
	}

	runner, err := uploader.NewRunner(uploader.RunnerConfig{
		DBPath:     finalDB,
		CursorPath: finalCursor,
		LogDir:     finalDir,
		Line:       finalLine,
		ChunkSize:  finalChunk,
		DeltaT:     finalDelta,
		ErrorDir:   finalErrorDir,
		Debug:      finalDebug,
	})
	if err != nil {
		log.Fatalf("init runner: %v", err)
	}
	defer runner.Close()

	if once {
		if err := runner.RunOnce(); err != nil {
			log.Fatalf("run once: %v", err)
		}
		return
	}

	if strings.TrimSpace(finalSchedule) != "" {
		c := cron.New()
		if _, err := c.AddFunc(finalSchedule, func() {
			if err := runner.RunOnce(); err != nil {
				log.Printf("scheduled run error: %v", err)
			}
		}); err != nil {
			log.Fatalf("parse schedule %q: %v", finalSchedule, err)
		}
		c.Run()
		return
	}

	for {
		if err := runner.RunOnce(); err != nil {
			log.Printf("run once error: %v", err)
		}
		time.Sleep(pollInterval)
	}
}
