package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLHistory persists records in the append-only export_history table.
// The primary key on task_id makes Append idempotent.
type SQLHistory struct {
	db *sql.DB
}

func NewSQLHistory(db *sql.DB) *SQLHistory { return &SQLHistory{db: db} }

func (s *SQLHistory) Append(ctx context.Context, rec Record) error {
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO export_history
		   (task_id, requested_by, format, template_name, question_count, file_path, file_size, failed, error, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (task_id) DO NOTHING`,
		rec.TaskID, rec.RequestedBy, rec.Format, rec.TemplateName, rec.QuestionCount,
		rec.FilePath, rec.FileSize, rec.Failed, rec.Error, rec.CreatedAt)
	return err
}

func (s *SQLHistory) List(ctx context.Context, f HistoryFilter) ([]Record, error) {
	q := `SELECT task_id, requested_by, format, template_name, question_count, file_path, file_size, failed, error, created_at
	      FROM export_history WHERE 1=1`
	var args []interface{}
	if f.Format != "" {
		args = append(args, f.Format)
		q += fmt.Sprintf(" AND format=$%d", len(args))
	}
	if f.RequestedBy != "" {
		args = append(args, f.RequestedBy)
		q += fmt.Sprintf(" AND requested_by=$%d", len(args))
	}
	q += " ORDER BY created_at DESC, task_id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.TaskID, &r.RequestedBy, &r.Format, &r.TemplateName, &r.QuestionCount,
			&r.FilePath, &r.FileSize, &r.Failed, &r.Error, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
