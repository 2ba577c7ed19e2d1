package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"studio/internal/adapter/repo"
	"studio/internal/domain"
	"studio/internal/infra"
)

// snapshotStore is the slice of the job snapshot repository this command needs.
type snapshotStore interface {
	Get(ctx context.Context, jobID string) (domain.Snapshot, error)
	Delete(ctx context.Context, jobID string) error
}

func main() {
	_ = godotenv.Load()

	var (
		idFlag    string
		purgeFlag bool
		jsonFlag  bool
	)
	flag.StringVar(&idFlag, "id", "", "job ID to inspect")
	flag.BoolVar(&purgeFlag, "purge", false, "delete the stored snapshot after printing it")
	flag.BoolVar(&jsonFlag, "json", false, "print the raw snapshot as JSON")
	flag.Parse()

	jobID := strings.TrimSpace(idFlag)
	if jobID == "" {
		exitWithError(errors.New("-id is required"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(domain.MissingConfig("DATABASE_URL"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "jobsnap").Str("job_id", jobID).Logger()
	store := repo.NewJobSnapshotRepository(infra.NewSQLRunner(pool, logger))

	if err := inspect(ctx, store, jobID, purgeFlag, jsonFlag, os.Stdout); err != nil {
		exitWithError(err)
	}
}

func inspect(ctx context.Context, store snapshotStore, jobID string, purge, raw bool, out io.Writer) error {
	snap, err := store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("job %s has no stored snapshot", jobID)
		}
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	if raw {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
	} else {
		fmt.Fprintf(out, "Job %s (%s via %s) owner=%s\n", snap.JobID, snap.Kind, snap.Provider, snap.OwnerID)
		fmt.Fprintf(out, "state=%s progress=%d attempts=%d generating=%t\n", snap.State, snap.Progress, snap.Attempts, snap.Generating)
		if snap.ResultURL != "" {
			fmt.Fprintf(out, "result_url=%s\n", snap.ResultURL)
		}
		if snap.PostID != "" {
			fmt.Fprintf(out, "post_id=%s\n", snap.PostID)
		}
		if snap.Error != "" {
			fmt.Fprintf(out, "error=%s\n", snap.Error)
		}
		fmt.Fprintf(out, "updated_at=%s\n", snap.UpdatedAt.Format(time.RFC3339))
	}

	if !purge {
		return nil
	}
	if !snap.State.IsTerminal() && snap.Generating {
		return fmt.Errorf("job %s is still %s; refusing to purge", jobID, snap.State)
	}
	if err := store.Delete(ctx, jobID); err != nil {
		return fmt.Errorf("failed to purge snapshot: %w", err)
	}
	fmt.Fprintf(out, "purged %s\n", jobID)
	return nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
