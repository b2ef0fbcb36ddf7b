package db

import (
	"context"
	"fmt"
	"time"

	"github.com/stefbowerman/undftd-cli/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 20

// CreateRun starts a run in the running state.
func (c *Client) CreateRun(ctx context.Context, id, command, tag, source string, total int) (*models.Run, error) {
	var tagVal *string
	if tag != "" {
		tagVal = &tag
	}

	results, err := surrealdb.Query[[]models.Run](ctx, c.db, `
		CREATE type::record("run", $id) SET
			command = $command,
			tag = $tag,
			status = "running",
			source = $source,
			total = $total,
			started_at = time::now()
		RETURN AFTER
	`, map[string]any{
		"id":      id,
		"command": command,
		"tag":     tagVal,
		"source":  source,
		"total":   total,
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create run: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// CompleteRun stores the final status and counts of a run.
func (c *Client) CompleteRun(ctx context.Context, runID string, status models.RunStatus, counts models.RunCounts, errMsg string) error {
	var errVal *string
	if errMsg != "" {
		errVal = &errMsg
	}

	results, err := surrealdb.Query[[]models.Run](ctx, c.db, `
		UPDATE type::record("run", $id) SET
			status = $status,
			total = $total,
			succeeded = $succeeded,
			failed = $failed,
			unprocessed = $unprocessed,
			error = $error,
			completed_at = time::now()
		RETURN AFTER
	`, map[string]any{
		"id":          runID,
		"status":      string(status),
		"total":       counts.Total,
		"succeeded":   counts.Succeeded,
		"failed":      counts.Failed,
		"unprocessed": counts.Unprocessed,
		"error":       errVal,
	})
	if err != nil {
		return fmt.Errorf("complete run: %w", wrapQueryError(err))
	}

	// UPDATE on a missing record returns nothing.
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return fmt.Errorf("complete run %s: %w", runID, ErrNotFound)
	}
	c.logger.Info("run completed", "run_id", runID, "status", status)
	return nil
}

// RecordFailures stores the failed records of a run.
func (c *Client) RecordFailures(ctx context.Context, runID string, failures []models.RunFailure) error {
	if len(failures) == 0 {
		return nil
	}

	run := surrealmodels.NewRecordID("run", runID)
	rows := make([]map[string]any, 0, len(failures))
	for _, f := range failures {
		created := f.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		row := map[string]any{
			"run":        run,
			"stage":      f.Stage,
			"identifier": f.Identifier,
			"reason":     f.Reason,
			"created_at": created,
		}
		if f.Record != nil {
			row["record"] = f.Record
		}
		rows = append(rows, row)
	}

	_, err := surrealdb.Query[any](ctx, c.db, `INSERT INTO run_failure $rows`, map[string]any{
		"rows": rows,
	})
	if err != nil {
		return fmt.Errorf("record failures: %w", wrapQueryError(err))
	}
	return nil
}

// RecordStates stores the final state of every record of a run. Storing the
// same identifier twice keeps the last state.
func (c *Client) RecordStates(ctx context.Context, runID string, states []models.RunRecordState) error {
	if len(states) == 0 {
		return nil
	}

	run := surrealmodels.NewRecordID("run", runID)
	rows := make([]map[string]any, 0, len(states))
	for _, s := range states {
		row := map[string]any{
			"run":        run,
			"identifier": models.NormalizeIdentifier(s.Identifier),
			"state":      string(s.State),
		}
		if s.RemoteID != "" {
			row["remote_id"] = s.RemoteID
		}
		rows = append(rows, row)
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		FOR $row IN $rows {
			UPSERT run_record SET
				run = $row.run,
				identifier = $row.identifier,
				state = $row.state,
				remote_id = $row.remote_id ?? remote_id
			WHERE run = $row.run AND identifier = $row.identifier;
		};
	`, map[string]any{"rows": rows})
	if err != nil {
		return fmt.Errorf("record states: %w", wrapQueryError(err))
	}
	return nil
}

// GetRun returns a run by id, or ErrNotFound.
func (c *Client) GetRun(ctx context.Context, id string) (*models.Run, error) {
	results, err := surrealdb.Query[[]models.Run](ctx, c.db, `
		SELECT * FROM type::record("run", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get run: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// ListRuns returns the most recent runs first. An empty command lists every
// command.
func (c *Client) ListRuns(ctx context.Context, command string, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	sql := `SELECT * FROM run ORDER BY started_at DESC LIMIT $limit`
	vars := map[string]any{"limit": limit}
	if command != "" {
		sql = `SELECT * FROM run WHERE command = $command ORDER BY started_at DESC LIMIT $limit`
		vars["command"] = command
	}

	results, err := surrealdb.Query[[]models.Run](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Run{}, nil
	}
	return (*results)[0].Result, nil
}

// GetRunFailures returns the failures of a run in the order they were
// recorded. An empty stage returns every stage.
func (c *Client) GetRunFailures(ctx context.Context, runID, stage string) ([]models.RunFailure, error) {
	sql := `SELECT * FROM run_failure WHERE run = type::record("run", $run) ORDER BY created_at ASC`
	vars := map[string]any{"run": runID}
	if stage != "" {
		sql = `SELECT * FROM run_failure WHERE run = type::record("run", $run) AND stage = $stage ORDER BY created_at ASC`
		vars["stage"] = stage
	}

	results, err := surrealdb.Query[[]models.RunFailure](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("get run failures: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.RunFailure{}, nil
	}
	return (*results)[0].Result, nil
}

// GetRunStates returns the recorded state of every record of a run.
func (c *Client) GetRunStates(ctx context.Context, runID string) ([]models.RunRecordState, error) {
	results, err := surrealdb.Query[[]models.RunRecordState](ctx, c.db, `
		SELECT identifier, state, remote_id ?? "" AS remote_id FROM run_record
		WHERE run = type::record("run", $run)
		ORDER BY identifier ASC
	`, map[string]any{"run": runID})
	if err != nil {
		return nil, fmt.Errorf("get run states: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.RunRecordState{}, nil
	}
	return (*results)[0].Result, nil
}
