package catalog

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// rebuildSQLIndex writes a queryable rank/score index to
// {storeDir}/parts/catalog.db, rebuilt wholesale on every Report/UpdateCatalog
// call. It is a cache over parts/catalog.json, never the source of truth —
// feedback/workflow JSON under C5/C6 remain that — so a missing or corrupt
// index file is never fatal; callers log and continue (§3's store-ownership
// invariant holds regardless).
func rebuildSQLIndex(storeDir string, categorized map[string][]*workflow.Workflow, eval func(*workflow.Workflow) Reproducibility) error {
	dbPath := filepath.Join(storeDir, "parts", "catalog.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open catalog index: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(`DROP TABLE IF EXISTS workflows`); err != nil {
		return fmt.Errorf("reset catalog index: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE workflows (
			workflow_id TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			app_name    TEXT NOT NULL,
			category    TEXT NOT NULL,
			score       REAL NOT NULL,
			rank        TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create catalog index: %w", err)
	}

	stmt, err := db.Prepare(`INSERT INTO workflows (workflow_id, name, app_name, category, score, rank) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare catalog index insert: %w", err)
	}
	defer stmt.Close()

	for category, workflows := range categorized {
		for _, w := range workflows {
			repro := eval(w)
			if _, err := stmt.Exec(w.WorkflowID, w.Name, w.AppName, category, repro.Score, repro.Rank); err != nil {
				return fmt.Errorf("insert catalog index row: %w", err)
			}
		}
	}

	return nil
}
