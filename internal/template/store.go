package template

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openqbank/qbexport/internal/errs"
)

type Filter struct {
	AppliesTo string // presentation templates only
	Owner     string
}

// UsageChecker reports which non-terminal export tasks currently reference
// a template. The export manager implements it; a template with active
// tasks may be read but not mutated or deleted.
type UsageChecker interface {
	ActiveTasks(templateID string) []string
}

type Store interface {
	SavePresentation(ctx context.Context, t PresentationTemplate) (PresentationTemplate, error)
	GetPresentation(ctx context.Context, id string) (PresentationTemplate, error)
	ListPresentations(ctx context.Context, f Filter) ([]PresentationTemplate, error)
	DeletePresentation(ctx context.Context, id string) error
	ClonePresentation(ctx context.Context, id, newName, owner string) (PresentationTemplate, error)

	SaveMetadata(ctx context.Context, t MetadataTemplate) (MetadataTemplate, error)
	GetMetadata(ctx context.Context, id string) (MetadataTemplate, error)
	ListMetadata(ctx context.Context, owner string) ([]MetadataTemplate, error)
	DeleteMetadata(ctx context.Context, id string) error

	SetUsageChecker(UsageChecker)
}

type memoryStore struct {
	mu            sync.RWMutex
	presentations map[string]PresentationTemplate
	metadata      map[string]MetadataTemplate
	usage         UsageChecker
}

func NewMemoryStore() Store {
	return &memoryStore{
		presentations: map[string]PresentationTemplate{},
		metadata:      map[string]MetadataTemplate{},
	}
}

func (m *memoryStore) SetUsageChecker(u UsageChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = u
}

func (m *memoryStore) SavePresentation(_ context.Context, t PresentationTemplate) (PresentationTemplate, error) {
	if err := ValidatePresentation(t); err != nil {
		return PresentationTemplate{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().Unix()
	if t.ID == "" {
		t.ID = uuid.NewString()
		t.CreatedAt = now
	} else {
		prev, ok := m.presentations[t.ID]
		if !ok {
			return PresentationTemplate{}, fmt.Errorf("presentation template %s: %w", t.ID, errs.ErrNotFound)
		}
		if ids := m.activeTasks(t.ID); len(ids) > 0 {
			return PresentationTemplate{}, &errs.InUseError{TemplateID: t.ID, TaskIDs: ids}
		}
		t.CreatedAt = prev.CreatedAt
	}
	t.ModifiedAt = now

	for _, other := range m.presentations {
		if other.ID != t.ID && other.Owner == t.Owner && other.AppliesTo == t.AppliesTo &&
			strings.EqualFold(other.Name, t.Name) {
			return PresentationTemplate{}, &errs.ValidationError{Violations: []string{
				fmt.Sprintf("name %q already used by template %s for this owner and type", t.Name, other.ID),
			}}
		}
	}

	m.presentations[t.ID] = t
	return t, nil
}

func (m *memoryStore) GetPresentation(_ context.Context, id string) (PresentationTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.presentations[id]
	if !ok {
		return PresentationTemplate{}, fmt.Errorf("presentation template %s: %w", id, errs.ErrNotFound)
	}
	return t, nil
}

func (m *memoryStore) ListPresentations(_ context.Context, f Filter) ([]PresentationTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []PresentationTemplate
	for _, t := range m.presentations {
		if f.AppliesTo != "" && t.AppliesTo != f.AppliesTo {
			continue
		}
		if f.Owner != "" && t.Owner != f.Owner {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) DeletePresentation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.presentations[id]; !ok {
		return fmt.Errorf("presentation template %s: %w", id, errs.ErrNotFound)
	}
	if ids := m.activeTasks(id); len(ids) > 0 {
		return &errs.InUseError{TemplateID: id, TaskIDs: ids}
	}
	delete(m.presentations, id)
	return nil
}

func (m *memoryStore) ClonePresentation(ctx context.Context, id, newName, owner string) (PresentationTemplate, error) {
	src, err := m.GetPresentation(ctx, id)
	if err != nil {
		return PresentationTemplate{}, err
	}
	cp := src
	cp.ID = ""
	cp.Name = newName
	cp.Owner = owner
	return m.SavePresentation(ctx, cp)
}

func (m *memoryStore) SaveMetadata(_ context.Context, t MetadataTemplate) (MetadataTemplate, error) {
	if err := ValidateMetadata(t); err != nil {
		return MetadataTemplate{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
		t.CreatedAt = time.Now().Unix()
	} else if _, ok := m.metadata[t.ID]; !ok {
		return MetadataTemplate{}, fmt.Errorf("metadata template %s: %w", t.ID, errs.ErrNotFound)
	}

	for _, other := range m.metadata {
		if other.ID != t.ID && other.Owner == t.Owner && strings.EqualFold(other.Name, t.Name) {
			return MetadataTemplate{}, &errs.ValidationError{Violations: []string{
				fmt.Sprintf("name %q already used by metadata template %s for this owner", t.Name, other.ID),
			}}
		}
	}

	m.metadata[t.ID] = t
	return t, nil
}

func (m *memoryStore) GetMetadata(_ context.Context, id string) (MetadataTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.metadata[id]
	if !ok {
		return MetadataTemplate{}, fmt.Errorf("metadata template %s: %w", id, errs.ErrNotFound)
	}
	return t, nil
}

func (m *memoryStore) ListMetadata(_ context.Context, owner string) ([]MetadataTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []MetadataTemplate
	for _, t := range m.metadata {
		if owner != "" && t.Owner != owner {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) DeleteMetadata(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.metadata[id]; !ok {
		return fmt.Errorf("metadata template %s: %w", id, errs.ErrNotFound)
	}
	if ids := m.activeTasks(id); len(ids) > 0 {
		return &errs.InUseError{TemplateID: id, TaskIDs: ids}
	}
	delete(m.metadata, id)
	return nil
}

// callers hold m.mu
func (m *memoryStore) activeTasks(templateID string) []string {
	if m.usage == nil {
		return nil
	}
	return m.usage.ActiveTasks(templateID)
}

// SeedPresets inserts the built-in templates, skipping names that already
// exist for the owner.
func SeedPresets(ctx context.Context, s Store, owner string) error {
	existing, err := s.ListPresentations(ctx, Filter{Owner: owner})
	if err != nil {
		return err
	}
	have := map[string]bool{}
	for _, t := range existing {
		have[t.AppliesTo+"|"+strings.ToLower(t.Name)] = true
	}
	for _, p := range Presets(owner) {
		if have[p.AppliesTo+"|"+strings.ToLower(p.Name)] {
			continue
		}
		if _, err := s.SavePresentation(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
