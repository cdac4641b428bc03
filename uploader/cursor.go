package uploader

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// The cursor file holds the start time of the last fully successful run in
// local time. The operator seeds it once; the runner advances it.
const cursorLayout = "2006-01-02 15:04:05"

func ReadCursor(path string) (time.Time, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("read cursor: %w", err)
	}
	t, err := time.ParseInLocation(cursorLayout, strings.TrimSpace(string(b)), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cursor: %w", err)
	}
	return t, nil
}

func WriteCursor(path string, t time.Time) error {
	return os.WriteFile(path, []byte(t.Format(cursorLayout)), 0o644)
}
