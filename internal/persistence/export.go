package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/klauspost/compress/zstd"
)

// ExportJSONL writes a run's tick statistics as zstd-compressed JSON lines,
// one tick per line. The format is stable and meant for offline analysis.
func (db *DB) ExportJSONL(runID, path string) error {
	stats, err := db.RunStats(runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}

	enc := json.NewEncoder(zw)
	for _, s := range stats {
		if err := enc.Encode(s); err != nil {
			zw.Close()
			return fmt.Errorf("encode tick %d: %w", s.Tick, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}

	slog.Info("run exported", "run", runID, "ticks", len(stats), "path", path)
	return nil
}
