package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openqbank/qbexport/internal/errs"
)

const (
	kindPresentation = "presentation"
	kindMetadata     = "metadata"
)

// SQLStore keeps both template kinds in one type-discriminated table,
// template body marshalled to JSON.
type SQLStore struct {
	db *sql.DB

	mu    sync.RWMutex
	usage UsageChecker
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) SetUsageChecker(u UsageChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = u
}

func (s *SQLStore) activeTasks(templateID string) []string {
	s.mu.RLock()
	u := s.usage
	s.mu.RUnlock()
	if u == nil {
		return nil
	}
	return u.ActiveTasks(templateID)
}

func (s *SQLStore) nameTaken(ctx context.Context, kind, owner, appliesTo, name, selfID string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM templates
		 WHERE kind=$1 AND owner=$2 AND applies_to=$3 AND LOWER(name)=LOWER($4) AND id<>$5`,
		kind, owner, appliesTo, name, selfID)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) SavePresentation(ctx context.Context, t PresentationTemplate) (PresentationTemplate, error) {
	if err := ValidatePresentation(t); err != nil {
		return PresentationTemplate{}, err
	}
	now := time.Now().Unix()
	if t.ID == "" {
		t.ID = uuid.NewString()
		t.CreatedAt = now
	} else {
		prev, err := s.GetPresentation(ctx, t.ID)
		if err != nil {
			return PresentationTemplate{}, err
		}
		if ids := s.activeTasks(t.ID); len(ids) > 0 {
			return PresentationTemplate{}, &errs.InUseError{TemplateID: t.ID, TaskIDs: ids}
		}
		t.CreatedAt = prev.CreatedAt
	}
	t.ModifiedAt = now

	taken, err := s.nameTaken(ctx, kindPresentation, t.Owner, t.AppliesTo, t.Name, t.ID)
	if err != nil {
		return PresentationTemplate{}, err
	}
	if taken {
		return PresentationTemplate{}, &errs.ValidationError{Violations: []string{
			fmt.Sprintf("name %q already used for this owner and type", t.Name),
		}}
	}

	body, err := json.Marshal(t)
	if err != nil {
		return PresentationTemplate{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (id, kind, owner, name, applies_to, body_json, created_at, modified_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO UPDATE SET
		   name=EXCLUDED.name, applies_to=EXCLUDED.applies_to,
		   body_json=EXCLUDED.body_json, modified_at=EXCLUDED.modified_at`,
		t.ID, kindPresentation, t.Owner, t.Name, t.AppliesTo, string(body), t.CreatedAt, t.ModifiedAt)
	if err != nil {
		return PresentationTemplate{}, err
	}
	return t, nil
}

func (s *SQLStore) GetPresentation(ctx context.Context, id string) (PresentationTemplate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT body_json FROM templates WHERE id=$1 AND kind=$2`, id, kindPresentation)
	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PresentationTemplate{}, fmt.Errorf("presentation template %s: %w", id, errs.ErrNotFound)
		}
		return PresentationTemplate{}, err
	}
	var t PresentationTemplate
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return PresentationTemplate{}, err
	}
	return t, nil
}

func (s *SQLStore) ListPresentations(ctx context.Context, f Filter) ([]PresentationTemplate, error) {
	q := `SELECT body_json FROM templates WHERE kind=$1`
	args := []interface{}{kindPresentation}
	if f.AppliesTo != "" {
		args = append(args, f.AppliesTo)
		q += fmt.Sprintf(" AND applies_to=$%d", len(args))
	}
	if f.Owner != "" {
		args = append(args, f.Owner)
		q += fmt.Sprintf(" AND owner=$%d", len(args))
	}
	q += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PresentationTemplate
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var t PresentationTemplate
		if err := json.Unmarshal([]byte(body), &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeletePresentation(ctx context.Context, id string) error {
	return s.deleteTemplate(ctx, id, kindPresentation)
}

func (s *SQLStore) ClonePresentation(ctx context.Context, id, newName, owner string) (PresentationTemplate, error) {
	src, err := s.GetPresentation(ctx, id)
	if err != nil {
		return PresentationTemplate{}, err
	}
	cp := src
	cp.ID = ""
	cp.Name = newName
	cp.Owner = owner
	return s.SavePresentation(ctx, cp)
}

func (s *SQLStore) SaveMetadata(ctx context.Context, t MetadataTemplate) (MetadataTemplate, error) {
	if err := ValidateMetadata(t); err != nil {
		return MetadataTemplate{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
		t.CreatedAt = time.Now().Unix()
	} else if _, err := s.GetMetadata(ctx, t.ID); err != nil {
		return MetadataTemplate{}, err
	}

	taken, err := s.nameTaken(ctx, kindMetadata, t.Owner, "", t.Name, t.ID)
	if err != nil {
		return MetadataTemplate{}, err
	}
	if taken {
		return MetadataTemplate{}, &errs.ValidationError{Violations: []string{
			fmt.Sprintf("name %q already used for this owner", t.Name),
		}}
	}

	body, err := json.Marshal(t)
	if err != nil {
		return MetadataTemplate{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (id, kind, owner, name, applies_to, body_json, created_at, modified_at)
		 VALUES ($1,$2,$3,$4,'',$5,$6,$6)
		 ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, body_json=EXCLUDED.body_json`,
		t.ID, kindMetadata, t.Owner, t.Name, string(body), t.CreatedAt)
	if err != nil {
		return MetadataTemplate{}, err
	}
	return t, nil
}

func (s *SQLStore) GetMetadata(ctx context.Context, id string) (MetadataTemplate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT body_json FROM templates WHERE id=$1 AND kind=$2`, id, kindMetadata)
	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MetadataTemplate{}, fmt.Errorf("metadata template %s: %w", id, errs.ErrNotFound)
		}
		return MetadataTemplate{}, err
	}
	var t MetadataTemplate
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return MetadataTemplate{}, err
	}
	return t, nil
}

func (s *SQLStore) ListMetadata(ctx context.Context, owner string) ([]MetadataTemplate, error) {
	q := `SELECT body_json FROM templates WHERE kind=$1`
	args := []interface{}{kindMetadata}
	if owner != "" {
		args = append(args, owner)
		q += " AND owner=$2"
	}
	q += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MetadataTemplate
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var t MetadataTemplate
		if err := json.Unmarshal([]byte(body), &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteMetadata(ctx context.Context, id string) error {
	return s.deleteTemplate(ctx, id, kindMetadata)
}

func (s *SQLStore) deleteTemplate(ctx context.Context, id, kind string) error {
	if ids := s.activeTasks(id); len(ids) > 0 {
		return &errs.InUseError{TemplateID: id, TaskIDs: ids}
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id=$1 AND kind=$2`, id, kind)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s template %s: %w", strings.TrimSuffix(kind, "s"), id, errs.ErrNotFound)
	}
	return nil
}
