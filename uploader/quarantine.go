package uploader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// QuarantineReport moves an unparseable report XML out of the scan window
// into the quarantine dir so later runs do not pick it up again. Name
// collisions in the destination get a nanosecond suffix so nothing is
// overwritten.
func QuarantineReport(srcPath string, quarantineDir string) (string, error) {
	if strings.TrimSpace(quarantineDir) == "" {
		return "", fmt.Errorf("quarantineDir is empty")
	}
	if err := os.MkdirAll(quarantineDir, 0o755); err != nil {
		return "", err
	}
	base := filepath.Base(srcPath)
	dstPath := filepath.Join(quarantineDir, base)
	if _, err := os.Stat(dstPath); err == nil {
		ext := filepath.Ext(base)
		name := strings.TrimSuffix(base, ext)
		dstPath = filepath.Join(quarantineDir, fmt.Sprintf("%s-%d%s", name, time.Now().UnixNano(), ext))
	}

	// Try fast rename first.
	if err := os.Rename(srcPath, dstPath); err == nil {
		return dstPath, nil
	}

	// Fallback: copy + remove (the AOI share is usually a different volume
	// than the quarantine dir).
	in, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return "", err
	}
	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(dstPath)
		return "", copyErr
	}
	if closeErr != nil {
		_ = os.Remove(dstPath)
		return "", closeErr
	}
	if err := os.Remove(srcPath); err != nil {
		return "", err
	}
	return dstPath, nil
}
