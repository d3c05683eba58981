package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"precipitation-platform/pkg/logging"
)

// MigrationFiles lists the migration scripts of dir for a direction ("up" or
// "down"). Up scripts run in lexical order, down scripts in reverse.
func MigrationFiles(dir, direction string) ([]string, error) {
	var suffix string
	switch direction {
	case "up":
		suffix = ".up.sql"
	case "down":
		suffix = ".down.sql"
	default:
		return nil, fmt.Errorf("unknown migration direction %q", direction)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}

// RunMigrations executes each migration file of dir in its own transaction
func (p *PostgresDB) RunMigrations(ctx context.Context, dir, direction string) ([]string, error) {
	files, err := MigrationFiles(dir, direction)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(files))
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return applied, fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		err = p.WithTx(ctx, nil, func(tx *Tx) error {
			_, err := tx.ExecContext(ctx, "migration", string(content))
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("failed to execute migration %s: %w", file, err)
		}

		p.logger.Info(ctx, "[DB_MIGRATION] Migration applied", logging.Fields{
			"file":      filepath.Base(file),
			"direction": direction,
		})
		applied = append(applied, file)
	}
	return applied, nil
}
