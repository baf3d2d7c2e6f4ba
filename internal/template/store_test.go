package template

import (
	"context"
	"errors"
	"testing"

	"github.com/openqbank/qbexport/internal/errs"
	"github.com/openqbank/qbexport/internal/qbank"
)

func validTemplate(name, appliesTo string) PresentationTemplate {
	return PresentationTemplate{
		Name:      name,
		AppliesTo: appliesTo,
		Owner:     "t1",
		Config:    DefaultConfig(appliesTo),
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	bad := PresentationTemplate{
		Name:      "",
		AppliesTo: "crossword",
		Config: Config{
			Version: 1,
			Blocks: []Block{
				{Kind: "line"}, // no pattern
				{Kind: "table", Source: "nope", Headers: []string{"a", "b"}, Cols: []string{"{{item}}"}},
			},
		},
	}
	err := ValidatePresentation(bad)
	var ve *errs.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	// empty name, unknown applies_to, wrong version, bad line,
	// bad table source, headers/cols mismatch
	if len(ve.Violations) < 6 {
		t.Fatalf("want all violations reported, got %v", ve.Violations)
	}
}

func TestSaveAndGetPresentation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	saved, err := s.SavePresentation(ctx, validTemplate("Quiz", "multichoice"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == "" || saved.CreatedAt == 0 {
		t.Fatalf("id/timestamps not assigned: %+v", saved)
	}

	got, err := s.GetPresentation(ctx, saved.ID)
	if err != nil || got.Name != "Quiz" {
		t.Fatalf("get: %v %+v", err, got)
	}

	if _, err := s.GetPresentation(ctx, "missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.SavePresentation(ctx, validTemplate("Quiz", "multichoice")); err != nil {
		t.Fatal(err)
	}
	_, err := s.SavePresentation(ctx, validTemplate("quiz", "multichoice")) // case-insensitive
	var ve *errs.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError for duplicate name, got %v", err)
	}
	// same name for a different type is fine
	if _, err := s.SavePresentation(ctx, validTemplate("Quiz", "essay")); err != nil {
		t.Fatalf("same name, different type: %v", err)
	}
}

func TestClonePresentation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	orig, err := s.SavePresentation(ctx, validTemplate("Quiz", "multichoice"))
	if err != nil {
		t.Fatal(err)
	}
	cp, err := s.ClonePresentation(ctx, orig.ID, "Quiz copy", "t2")
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if cp.ID == orig.ID || cp.Name != "Quiz copy" || cp.Owner != "t2" {
		t.Fatalf("clone fields: %+v", cp)
	}
	if len(cp.Config.Blocks) != len(orig.Config.Blocks) {
		t.Fatal("clone lost config blocks")
	}
	// original untouched
	got, _ := s.GetPresentation(ctx, orig.ID)
	if got.Name != "Quiz" {
		t.Fatalf("original mutated: %+v", got)
	}
}

type fakeUsage struct{ active map[string][]string }

func (f fakeUsage) ActiveTasks(id string) []string { return f.active[id] }

func TestDeleteInUseBlocked(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	tpl, err := s.SavePresentation(ctx, validTemplate("Quiz", "multichoice"))
	if err != nil {
		t.Fatal(err)
	}
	usage := fakeUsage{active: map[string][]string{tpl.ID: {"task-1"}}}
	s.SetUsageChecker(usage)

	err = s.DeletePresentation(ctx, tpl.ID)
	var iu *errs.InUseError
	if !errors.As(err, &iu) {
		t.Fatalf("want InUseError, got %v", err)
	}
	if iu.TemplateID != tpl.ID || len(iu.TaskIDs) != 1 {
		t.Fatalf("in-use detail: %+v", iu)
	}

	// update blocked too
	tpl.Name = "Renamed"
	if _, err := s.SavePresentation(ctx, tpl); !errors.As(err, &iu) {
		t.Fatalf("want InUseError on update, got %v", err)
	}

	// once the task finishes, delete succeeds
	delete(usage.active, tpl.ID)
	if err := s.DeletePresentation(ctx, tpl.ID); err != nil {
		t.Fatalf("delete after task done: %v", err)
	}
}

func TestSeedPresetsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := SeedPresets(ctx, s, "system"); err != nil {
		t.Fatal(err)
	}
	first, _ := s.ListPresentations(ctx, Filter{})
	if len(first) != len(qbank.KnownTypes())+1 {
		t.Fatalf("want one preset per type plus fallback, got %d", len(first))
	}
	if err := SeedPresets(ctx, s, "system"); err != nil {
		t.Fatal(err)
	}
	second, _ := s.ListPresentations(ctx, Filter{})
	if len(second) != len(first) {
		t.Fatalf("reseeding duplicated presets: %d -> %d", len(first), len(second))
	}
}

func TestMetadataCRUD(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	mt, err := s.SaveMetadata(ctx, MetadataTemplate{
		Name: "Course A", PKPrefix: "PK", PKID: "12", Description: "Spring exam", Owner: "t1",
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.GetMetadata(ctx, mt.ID)
	if err != nil || got.PKID != "12" {
		t.Fatalf("get metadata: %v %+v", err, got)
	}

	if _, err := s.SaveMetadata(ctx, MetadataTemplate{Owner: "t1"}); err == nil {
		t.Fatal("empty name accepted")
	}

	if err := s.DeleteMetadata(ctx, mt.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetMetadata(ctx, mt.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound after delete, got %v", err)
	}
}
