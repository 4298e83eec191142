// Package postgres backs the store with Postgres via the pgx stdlib
// driver. The schema is managed externally; see infra/migrations.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fathomhq/fathom/control-plane/internal/store"
)

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"runs",
		"run_events",
		"run_event_sequences",
		"run_annotations",
		"research_results",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run infra/migrations/001_init.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) CreateRun(ctx context.Context, run store.Run) error {
	status := strings.TrimSpace(run.Status)
	if status == "" {
		status = "pending"
	}
	depth := strings.TrimSpace(run.Depth)
	if depth == "" {
		depth = "basic"
	}
	const query = `
		INSERT INTO runs (id, topic, depth, status, completion_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := p.db.ExecContext(
		ctx,
		query,
		run.ID,
		run.Topic,
		depth,
		status,
		nullString(run.CompletionReason),
		parseTimestampValue(run.CreatedAt),
		parseTimestampValue(run.UpdatedAt),
	)
	return err
}

func (p *PostgresStore) GetRun(ctx context.Context, runID string) (*store.Run, error) {
	const query = `
		SELECT id, topic, depth, status, completion_reason, created_at, updated_at
		FROM runs
		WHERE id = $1
	`
	var (
		run              store.Run
		completionReason sql.NullString
		createdAt        time.Time
		updatedAt        time.Time
	)
	err := p.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID,
		&run.Topic,
		&run.Depth,
		&run.Status,
		&completionReason,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if completionReason.Valid {
		run.CompletionReason = completionReason.String
	}
	run.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	run.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return &run, nil
}

func (p *PostgresStore) ListRuns(ctx context.Context) ([]store.Run, error) {
	const query = `
		SELECT id, topic, depth, status, completion_reason, created_at, updated_at
		FROM runs
		ORDER BY updated_at DESC
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Run{}
	for rows.Next() {
		var (
			run              store.Run
			completionReason sql.NullString
			createdAt        time.Time
			updatedAt        time.Time
		)
		if err := rows.Scan(
			&run.ID,
			&run.Topic,
			&run.Depth,
			&run.Status,
			&completionReason,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, err
		}
		if completionReason.Valid {
			run.CompletionReason = completionReason.String
		}
		run.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		run.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
		results = append(results, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status string, completionReason string) error {
	const query = `
		UPDATE runs
		SET
			status = COALESCE(NULLIF($2, ''), status),
			completion_reason = CASE
				WHEN NULLIF($3, '') IS NOT NULL THEN $3
				ELSE completion_reason
			END,
			updated_at = $4
		WHERE id = $1
	`
	_, err := p.db.ExecContext(ctx, query, runID, status, completionReason, time.Now().UTC())
	return err
}

func (p *PostgresStore) DeleteRun(ctx context.Context, runID string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM runs WHERE id = $1", runID)
	return err
}

func (p *PostgresStore) NextSeq(ctx context.Context, runID string) (int64, error) {
	const query = `
		INSERT INTO run_event_sequences (run_id, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (run_id)
		DO UPDATE SET last_seq = run_event_sequences.last_seq + 1
		RETURNING last_seq
	`
	var seq int64
	if err := p.db.QueryRowContext(ctx, query, runID).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (p *PostgresStore) AppendEvent(ctx context.Context, event store.RunEvent) error {
	event.Type = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(event.Type)), "_", ".")
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	timestamp := event.Timestamp
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	event.Timestamp = timestamp

	const query = `
		INSERT INTO run_events (run_id, seq, type, timestamp, source, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, query, event.RunID, event.Seq, event.Type, parseTimestampValue(timestamp), event.Source, encoded); err != nil {
		return err
	}
	if ann, ok := store.BuildAnnotationFromEvent(event); ok {
		if err = upsertAnnotationTx(ctx, tx, ann); err != nil {
			return err
		}
	}
	if err = applyRunStateTx(ctx, tx, event); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

func (p *PostgresStore) ListEvents(ctx context.Context, runID string, afterSeq int64) ([]store.RunEvent, error) {
	const query = `
		SELECT run_id, seq, type, timestamp, source, payload
		FROM run_events
		WHERE run_id = $1 AND seq > $2
		ORDER BY seq ASC
	`
	rows, err := p.db.QueryContext(ctx, query, runID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.RunEvent{}
	for rows.Next() {
		var (
			event        store.RunEvent
			timestamp    time.Time
			payloadBytes []byte
		)
		if err := rows.Scan(&event.RunID, &event.Seq, &event.Type, &timestamp, &event.Source, &payloadBytes); err != nil {
			return nil, err
		}
		event.Timestamp = timestamp.UTC().Format(time.RFC3339Nano)
		event.Payload = decodeJSONMap(payloadBytes)
		results = append(results, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) ListAnnotations(ctx context.Context, runID string) ([]store.Annotation, error) {
	const query = `
		SELECT run_id, annotation_id, type, kind, status, overwrite, seq, updated_at, data
		FROM run_annotations
		WHERE run_id = $1
		ORDER BY seq ASC, annotation_id ASC
	`
	rows, err := p.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	annotations := []store.Annotation{}
	for rows.Next() {
		var (
			ann       store.Annotation
			kind      sql.NullString
			status    sql.NullString
			updatedAt time.Time
			dataBytes []byte
		)
		if err := rows.Scan(
			&ann.RunID,
			&ann.ID,
			&ann.Type,
			&kind,
			&status,
			&ann.Overwrite,
			&ann.Seq,
			&updatedAt,
			&dataBytes,
		); err != nil {
			return nil, err
		}
		if kind.Valid {
			ann.Kind = kind.String
		}
		if status.Valid {
			ann.Status = status.String
		}
		ann.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
		ann.Data = decodeJSONMap(dataBytes)
		annotations = append(annotations, ann)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return annotations, nil
}

func (p *PostgresStore) SaveResult(ctx context.Context, result store.ResearchResult) error {
	output := result.Output
	if output == nil {
		output = map[string]any{}
	}
	encoded, err := json.Marshal(output)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO research_results (run_id, output, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id)
		DO UPDATE SET output = EXCLUDED.output, created_at = EXCLUDED.created_at
	`
	_, err = p.db.ExecContext(ctx, query, result.RunID, encoded, parseTimestampValue(result.CreatedAt))
	return err
}

func (p *PostgresStore) GetResult(ctx context.Context, runID string) (*store.ResearchResult, error) {
	const query = `
		SELECT run_id, output, created_at
		FROM research_results
		WHERE run_id = $1
	`
	var (
		result      store.ResearchResult
		outputBytes []byte
		createdAt   time.Time
	)
	err := p.db.QueryRowContext(ctx, query, runID).Scan(&result.RunID, &outputBytes, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	result.Output = decodeJSONMap(outputBytes)
	result.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	return &result, nil
}

func upsertAnnotationTx(ctx context.Context, tx *sql.Tx, ann store.Annotation) error {
	if strings.TrimSpace(ann.RunID) == "" || strings.TrimSpace(ann.ID) == "" {
		return nil
	}
	dataBytes, err := json.Marshal(ann.Data)
	if err != nil {
		return err
	}
	// Overwrite semantics match store.MergeAnnotation: only overwrite
	// writes replace the visible state of an existing id. seq keeps the
	// first-seen value for stable ordering.
	const query = `
		INSERT INTO run_annotations (run_id, annotation_id, type, kind, status, overwrite, seq, updated_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, annotation_id)
		DO UPDATE SET
			type = CASE WHEN EXCLUDED.overwrite THEN EXCLUDED.type ELSE run_annotations.type END,
			kind = CASE WHEN EXCLUDED.overwrite THEN EXCLUDED.kind ELSE run_annotations.kind END,
			status = CASE WHEN EXCLUDED.overwrite THEN EXCLUDED.status ELSE run_annotations.status END,
			overwrite = run_annotations.overwrite OR EXCLUDED.overwrite,
			seq = LEAST(run_annotations.seq, EXCLUDED.seq),
			updated_at = CASE WHEN EXCLUDED.overwrite THEN EXCLUDED.updated_at ELSE run_annotations.updated_at END,
			data = CASE WHEN EXCLUDED.overwrite THEN EXCLUDED.data ELSE run_annotations.data END
	`
	_, err = tx.ExecContext(
		ctx,
		query,
		ann.RunID,
		ann.ID,
		ann.Type,
		nullString(ann.Kind),
		nullString(ann.Status),
		ann.Overwrite,
		ann.Seq,
		parseTimestampValue(ann.UpdatedAt),
		dataBytes,
	)
	return err
}

func applyRunStateTx(ctx context.Context, tx *sql.Tx, event store.RunEvent) error {
	status := ""
	completionReason := ""
	switch event.Type {
	case "run.started":
		status = "running"
	case "run.completed":
		status = "completed"
		completionReason = readPayloadString(event.Payload, "completion_reason")
	case "run.failed":
		status = "failed"
		completionReason = readPayloadString(event.Payload, "completion_reason")
		if completionReason == "" {
			completionReason = "activity_error"
		}
	case "run.cancelled":
		status = "cancelled"
		completionReason = "user_cancelled"
	default:
		return nil
	}
	const query = `
		UPDATE runs
		SET
			status = COALESCE(NULLIF($2, ''), status),
			completion_reason = CASE
				WHEN NULLIF($3, '') IS NOT NULL THEN $3
				ELSE completion_reason
			END,
			updated_at = $4
		WHERE id = $1
	`
	_, err := tx.ExecContext(ctx, query, event.RunID, status, completionReason, parseTimestampValue(event.Timestamp))
	return err
}

func parseTimestampValue(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Now().UTC()
	}
	return parsed.UTC()
}

func nullString(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}

func decodeJSONMap(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return map[string]any{}
	}
	return payload
}

func readPayloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	value, ok := payload[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}
