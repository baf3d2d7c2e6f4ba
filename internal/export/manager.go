package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openqbank/qbexport/internal/errs"
	"github.com/openqbank/qbexport/internal/qbank"
	"github.com/openqbank/qbexport/internal/render"
	"github.com/openqbank/qbexport/internal/storage"
	"github.com/openqbank/qbexport/internal/template"
)

type Request struct {
	SessionID              string   `json:"session_id"`
	QuestionIDs            []string `json:"question_ids"`
	Format                 string   `json:"format"`
	PresentationTemplateID string   `json:"presentation_template_id"`
	MetadataTemplateID     string   `json:"metadata_template_id,omitempty"`
	Title                  string   `json:"title,omitempty"`
}

type taskEntry struct {
	task Task
	done chan struct{}
}

// Manager runs each submitted export on its own goroutine. Tasks share no
// mutable state: questions and templates are captured read-only at submit
// time, and templates stay pinned in the in-use registry until the task
// reaches a terminal state.
type Manager struct {
	sessions  qbank.SessionStore
	templates template.Store
	engine    *render.Engine
	renderers render.Registry
	history   HistoryStore
	blobs     storage.BlobStore
	now       func() time.Time

	mu      sync.RWMutex
	tasks   map[string]*taskEntry
	inUse   map[string]map[string]bool // template id -> active task ids
	taskLog TaskLog                    // optional durable journal
}

func NewManager(sessions qbank.SessionStore, templates template.Store, engine *render.Engine,
	renderers render.Registry, history HistoryStore, blobs storage.BlobStore) *Manager {
	m := &Manager{
		sessions:  sessions,
		templates: templates,
		engine:    engine,
		renderers: renderers,
		history:   history,
		blobs:     blobs,
		now:       time.Now,
		tasks:     map[string]*taskEntry{},
		inUse:     map[string]map[string]bool{},
	}
	templates.SetUsageChecker(m)
	return m
}

// SetTaskLog attaches a durable journal; transitions are recorded
// best-effort so a restart can surface interrupted tasks as failed.
func (m *Manager) SetTaskLog(l TaskLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskLog = l
}

// caller holds m.mu
func (m *Manager) journalLocked(t Task) {
	if m.taskLog == nil {
		return
	}
	if err := m.taskLog.Record(context.Background(), snapshot(t)); err != nil {
		log.Printf("export %s: task journal: %v", t.ID, err)
	}
}

// ActiveTasks implements template.UsageChecker.
func (m *Manager) ActiveTasks(templateID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id := range m.inUse[templateID] {
		out = append(out, id)
	}
	return out
}

// Submit validates the whole request synchronously, so a malformed request
// never produces an observable task, then returns the task id immediately
// and renders in the background.
func (m *Manager) Submit(ctx context.Context, caller string, req Request) (string, error) {
	if len(req.QuestionIDs) == 0 {
		return "", &errs.InvalidRequestError{Reason: "question_ids must not be empty"}
	}
	format, err := render.ParseFormat(req.Format)
	if err != nil {
		return "", &errs.InvalidRequestError{Reason: err.Error()}
	}
	renderer, err := m.renderers.Get(format)
	if err != nil {
		return "", &errs.InvalidRequestError{Reason: err.Error()}
	}

	questions, err := m.sessions.Select(req.SessionID, req.QuestionIDs)
	if err != nil {
		return "", err // carries errs.ErrNotFound for missing session/question ids
	}
	pres, err := m.templates.GetPresentation(ctx, req.PresentationTemplateID)
	if err != nil {
		return "", err
	}
	var meta *template.MetadataTemplate
	if req.MetadataTemplateID != "" {
		mt, err := m.templates.GetMetadata(ctx, req.MetadataTemplateID)
		if err != nil {
			return "", err
		}
		meta = &mt
	}

	t := Task{
		ID:                     uuid.NewString(),
		RequestedBy:            caller,
		SessionID:              req.SessionID,
		QuestionIDs:            append([]string(nil), req.QuestionIDs...),
		Format:                 format,
		PresentationTemplateID: req.PresentationTemplateID,
		MetadataTemplateID:     req.MetadataTemplateID,
		State:                  StatePending,
		CreatedAt:              m.now().Unix(),
	}

	m.mu.Lock()
	m.tasks[t.ID] = &taskEntry{task: t, done: make(chan struct{})}
	m.pinLocked(req.PresentationTemplateID, t.ID)
	if req.MetadataTemplateID != "" {
		m.pinLocked(req.MetadataTemplateID, t.ID)
	}
	m.journalLocked(t)
	m.mu.Unlock()

	go m.run(t.ID, questions, pres, meta, renderer, req.Title)
	return t.ID, nil
}

// Status returns a consistent snapshot: state and artifact path always
// change under the same lock, so a reader never sees a torn task.
func (m *Manager) Status(id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("export task %s: %w", id, errs.ErrNotFound)
	}
	return snapshot(e.task), nil
}

// Cancel stops a pending task. A running render is short-lived and bounded
// by question-set size, so mid-render cancellation is not supported.
func (m *Manager) Cancel(id string) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("export task %s: %w", id, errs.ErrNotFound)
	}
	if e.task.State != StatePending {
		return Task{}, fmt.Errorf("task %s is %s, only pending tasks can be cancelled", id, e.task.State)
	}
	m.finishLocked(e, StateCancelled, "", "")
	return snapshot(e.task), nil
}

// Wait blocks until the task reaches a terminal state or ctx expires.
func (m *Manager) Wait(ctx context.Context, id string) (Task, error) {
	m.mu.RLock()
	e, ok := m.tasks[id]
	m.mu.RUnlock()
	if !ok {
		return Task{}, fmt.Errorf("export task %s: %w", id, errs.ErrNotFound)
	}
	select {
	case <-e.done:
		return m.Status(id)
	case <-ctx.Done():
		return Task{}, ctx.Err()
	}
}

func (m *Manager) run(taskID string, questions []qbank.Question, pres template.PresentationTemplate,
	meta *template.MetadataTemplate, renderer render.Renderer, title string) {

	if !m.transition(taskID, StatePending, StateRunning) {
		return // cancelled before it started
	}

	if title == "" {
		title = "Question export"
	}
	doc, err := m.engine.RenderDocument(context.Background(), title, questions, pres, meta)
	if err != nil {
		m.fail(taskID, classify(err))
		return
	}
	artifact, err := renderer.Render(doc, render.Options{})
	if err != nil {
		m.fail(taskID, classify(err))
		return
	}

	key := fmt.Sprintf("exports/%s/%s%s", taskID, safeFileName(title), renderer.Format().Ext())
	path, size, err := m.blobs.Put(key, bytes.NewReader(artifact))
	if err != nil {
		m.fail(taskID, "storage: "+err.Error())
		return
	}

	// Success path: state transition and history append commit under one
	// lock, so a crash between them can never leave a Succeeded task
	// without its history row.
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[taskID]
	if !ok || e.task.State != StateRunning {
		return
	}
	rec := Record{
		TaskID:        taskID,
		RequestedBy:   e.task.RequestedBy,
		Format:        string(e.task.Format),
		TemplateName:  pres.Name,
		QuestionCount: len(questions),
		FilePath:      path,
		FileSize:      size,
		CreatedAt:     m.now().Unix(),
	}
	if err := m.history.Append(context.Background(), rec); err != nil {
		log.Printf("export %s: history append failed: %v", taskID, err)
		m.finishLocked(e, StateFailed, "storage: history append: "+err.Error(), "")
		return
	}
	m.finishLocked(e, StateSucceeded, "", path)
}

func (m *Manager) transition(taskID string, from, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[taskID]
	if !ok || e.task.State != from {
		return false
	}
	e.task.State = to
	m.journalLocked(e.task)
	return true
}

func (m *Manager) fail(taskID, cause string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[taskID]
	if !ok || e.task.State.Terminal() {
		return
	}
	m.finishLocked(e, StateFailed, cause, "")
	rec := Record{
		TaskID:        taskID,
		RequestedBy:   e.task.RequestedBy,
		Format:        string(e.task.Format),
		QuestionCount: len(e.task.QuestionIDs),
		Failed:        true,
		Error:         cause,
		CreatedAt:     m.now().Unix(),
	}
	if err := m.history.Append(context.Background(), rec); err != nil {
		log.Printf("export %s: history append failed: %v", taskID, err)
	}
}

// finishLocked commits a terminal transition; caller holds m.mu.
func (m *Manager) finishLocked(e *taskEntry, to State, cause, artifactPath string) {
	now := m.now().Unix()
	e.task.State = to
	e.task.CompletedAt = &now
	e.task.Error = cause
	e.task.ArtifactPath = artifactPath
	m.unpinLocked(e.task.PresentationTemplateID, e.task.ID)
	if e.task.MetadataTemplateID != "" {
		m.unpinLocked(e.task.MetadataTemplateID, e.task.ID)
	}
	m.journalLocked(e.task)
	close(e.done)
}

func (m *Manager) pinLocked(templateID, taskID string) {
	set, ok := m.inUse[templateID]
	if !ok {
		set = map[string]bool{}
		m.inUse[templateID] = set
	}
	set[taskID] = true
}

func (m *Manager) unpinLocked(templateID, taskID string) {
	set, ok := m.inUse[templateID]
	if !ok {
		return
	}
	delete(set, taskID)
	if len(set) == 0 {
		delete(m.inUse, templateID)
	}
}

func snapshot(t Task) Task {
	cp := t
	cp.QuestionIDs = append([]string(nil), t.QuestionIDs...)
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		cp.CompletedAt = &v
	}
	return cp
}

// classify prefixes the failure cause so a caller can tell input-data
// problems from template problems from renderer problems.
func classify(err error) string {
	var tre *errs.TemplateResolutionError
	var empty *errs.EmptyExportError
	var re *errs.RenderError
	switch {
	case errors.As(err, &tre):
		return "template: " + err.Error()
	case errors.As(err, &empty):
		return "input data: " + err.Error()
	case errors.As(err, &re):
		return "render: " + err.Error()
	case errors.Is(err, errs.ErrNotFound):
		return "input data: " + err.Error()
	}
	return "render: " + err.Error()
}

func safeFileName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		if r == ' ' {
			return '-'
		}
		return -1
	}, s)
	if s == "" {
		s = "export"
	}
	return s
}
