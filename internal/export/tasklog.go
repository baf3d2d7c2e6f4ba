package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// TaskLog is the durable write-ahead record of task state. If the process
// dies mid-render, RecoverStale surfaces the orphaned tasks as failed on
// the next start instead of leaving them ambiguously running.
type TaskLog interface {
	Record(ctx context.Context, t Task) error
	RecoverStale(ctx context.Context) (int, error)
}

type SQLTaskLog struct {
	db *sql.DB
}

func NewSQLTaskLog(db *sql.DB) *SQLTaskLog { return &SQLTaskLog{db: db} }

func (l *SQLTaskLog) Record(ctx context.Context, t Task) error {
	var completed interface{}
	if t.CompletedAt != nil {
		completed = *t.CompletedAt
	}
	ids, err := json.Marshal(t.QuestionIDs)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO export_tasks
		   (id, requested_by, session_id, question_ids_json, format,
		    presentation_template_id, metadata_template_id, state, error, artifact_path,
		    created_at, completed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 ON CONFLICT (id) DO UPDATE SET
		   state=EXCLUDED.state, error=EXCLUDED.error,
		   artifact_path=EXCLUDED.artifact_path, completed_at=EXCLUDED.completed_at`,
		t.ID, t.RequestedBy, t.SessionID, string(ids), string(t.Format),
		t.PresentationTemplateID, t.MetadataTemplateID, string(t.State), t.Error, t.ArtifactPath,
		t.CreatedAt, completed)
	return err
}

func (l *SQLTaskLog) RecoverStale(ctx context.Context) (int, error) {
	states := []string{string(StatePending), string(StateRunning)}
	res, err := l.db.ExecContext(ctx,
		`UPDATE export_tasks
		 SET state=$1, error=$2, completed_at=$3
		 WHERE state IN ('`+strings.Join(states, "','")+`')`,
		string(StateFailed), "render: interrupted by process restart", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
