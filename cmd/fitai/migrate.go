package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

var migrateDir string

// migrateCmd runs pending migrations from the db directory. Applied files are
// recorded in the migrations table and skipped; each migration and its record
// insert share one transaction.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DBURL == "" {
			return errNoDB
		}
		ctx := cmd.Context()
		conn, err := pgx.Connect(ctx, cfg.DBURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer conn.Close(context.Background())
		return migrate(ctx, cmd, conn, migrateDir)
	},
}

func migrate(ctx context.Context, cmd *cobra.Command, conn *pgx.Conn, dir string) error {
	out := cmd.OutOrStdout()
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil || len(files) == 0 {
		return fmt.Errorf("no migration files found in %s", dir)
	}
	sort.Strings(files)

	// Table may not exist yet.
	applied := make(map[string]bool)
	rows, err := conn.Query(ctx, "SELECT migration FROM migrations")
	if err == nil {
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err == nil {
				applied[name] = true
			}
		}
		rows.Close()
	}

	ran := 0
	for _, f := range files {
		filename := filepath.Base(f)
		if applied[filename] {
			fmt.Fprintf(out, "  skip: %s\n", filename)
			continue
		}

		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", filename, err)
		}

		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("start transaction: %w", err)
		}
		if _, err := tx.Exec(ctx, string(content)); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("run %s: %w", filename, err)
		}
		desc := descriptionFromFilename(filename)
		if _, err := tx.Exec(ctx, "INSERT INTO migrations (migration, description) VALUES ($1, $2)", filename, desc); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("record %s: %w", filename, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit %s: %w", filename, err)
		}

		fmt.Fprintf(out, "  applied: %s\n", filename)
		ran++
	}

	if ran == 0 {
		fmt.Fprintln(out, "No pending migrations.")
	} else {
		fmt.Fprintf(out, "\n%d migration(s) applied.\n", ran)
	}
	return nil
}

var migrationPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-\d{3}-`)

// descriptionFromFilename strips the YYYY-MM-DD-NNN- prefix and .sql suffix.
func descriptionFromFilename(filename string) string {
	name := strings.TrimSuffix(filename, ".sql")
	name = migrationPrefix.ReplaceAllString(name, "")
	return strings.ReplaceAll(name, "-", " ")
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDir, "dir", "db", "Directory holding the .sql migrations")
	rootCmd.AddCommand(migrateCmd)
}
