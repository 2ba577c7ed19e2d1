package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/sqlinline"
)

// JobSnapshotRepositoryPG keeps the latest job snapshot in job_snapshots. It
// satisfies jobs.Store for deployments that run without Redis.
type JobSnapshotRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewJobSnapshotRepository(sql infra.SQLExecutor) *JobSnapshotRepositoryPG {
	return &JobSnapshotRepositoryPG{sql: sql}
}

func (r *JobSnapshotRepositoryPG) Save(ctx context.Context, snap domain.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QUpsertJobSnapshot, snap.JobID, string(snap.Kind), snap.Provider, string(snap.State), raw)
	return err
}

func (r *JobSnapshotRepositoryPG) Get(ctx context.Context, jobID string) (domain.Snapshot, error) {
	var raw []byte
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectJobSnapshot, jobID).Scan(&raw); err != nil {
		if infra.IsNoRows(err) {
			return domain.Snapshot{}, domain.ErrNotFound
		}
		return domain.Snapshot{}, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", jobID, err)
	}
	return snap, nil
}

func (r *JobSnapshotRepositoryPG) Delete(ctx context.Context, jobID string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QDeleteJobSnapshot, jobID)
	return err
}
