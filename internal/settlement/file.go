package settlement

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type ledgerFile struct {
	LedgerSnapshot
	UpdatedAt string `json:"updated_at"`
}

// OpenFileLedger loads a MemoryLedger from path, if it exists, and writes the
// full ledger back to path on every successful commit or fund.
func OpenFileLedger(path string) (*MemoryLedger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is required")
	}

	ledger := NewMemoryLedger()
	stat, err := os.Stat(path)
	switch {
	case err == nil && stat.IsDir():
		return nil, fmt.Errorf("ledger path is a directory")
	case err == nil:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read ledger: %w", err)
		}
		var file ledgerFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse ledger: %w", err)
		}
		if err := ledger.Import(file.LedgerSnapshot); err != nil {
			return nil, fmt.Errorf("import ledger: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("stat ledger: %w", err)
	}

	ledger.persist = func(snap LedgerSnapshot) error {
		return writeLedgerFile(path, snap)
	}
	return ledger, nil
}

func writeLedgerFile(path string, snap LedgerSnapshot) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(ledgerFile{
		LedgerSnapshot: snap,
		UpdatedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write ledger tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename ledger: %w", err)
	}
	return nil
}
