package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openqbank/qbexport/internal/auth"
	"github.com/openqbank/qbexport/internal/export"
	"github.com/openqbank/qbexport/internal/qbank"
	"github.com/openqbank/qbexport/internal/render"
	"github.com/openqbank/qbexport/internal/storage"
	"github.com/openqbank/qbexport/internal/template"
)

type testServer struct {
	router    chi.Router
	mgr       *export.Manager
	templates template.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	templates := template.NewMemoryStore()
	if err := template.SeedPresets(ctx, templates, "anonymous"); err != nil {
		t.Fatal(err)
	}
	sessions := qbank.NewMemorySessionStore()
	history := export.NewMemoryHistory()
	blobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	mgr := export.NewManager(sessions, templates, render.NewEngine(templates),
		render.NewRegistry(), history, blobs)

	authSvc := auth.NewService("") // token checks off, subject "anonymous"

	r := chi.NewRouter()
	r.Use(auth.Middleware(authSvc))
	r.Post("/questions", UploadQuestionsHandler(sessions, 1<<20))
	r.Get("/questions/{sessionID}", GetSessionHandler(sessions))
	r.Post("/export", SubmitExportHandler(mgr))
	r.Get("/export/{taskID}", ExportStatusHandler(mgr))
	r.Get("/export/{taskID}/download", DownloadExportHandler(mgr, blobs))
	r.Get("/export-history", ExportHistoryHandler(history))
	r.Get("/formats", FormatsHandler())
	r.Post("/templates", CreateTemplateHandler(templates))
	r.Delete("/templates/{id}", DeleteTemplateHandler(templates))

	return &testServer{router: r, mgr: mgr, templates: templates}
}

func (s *testServer) do(t *testing.T, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

const uploadXML = `<quiz>
  <question type="multichoice">
    <name><text>Addition</text></name>
    <questiontext><text>What is 2+2?</text></questiontext>
    <answer fraction="100"><text>4</text></answer>
    <answer fraction="0"><text>5</text></answer>
  </question>
</quiz>`

func uploadSession(t *testing.T, s *testServer) qbank.Session {
	t.Helper()
	w := s.do(t, "POST", "/questions", "application/xml", []byte(uploadXML))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", w.Code, w.Body)
	}
	var sess qbank.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestUploadAndFetchSession(t *testing.T) {
	s := newTestServer(t)
	sess := uploadSession(t, s)
	if len(sess.Questions) != 1 || sess.Questions[0].Type != qbank.TypeMultichoice {
		t.Fatalf("session: %+v", sess)
	}

	w := s.do(t, "GET", "/questions/"+sess.ID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get session: %d", w.Code)
	}
	w = s.do(t, "GET", "/questions/missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing session: %d", w.Code)
	}
}

func TestUploadMalformedXML(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, "POST", "/questions", "application/xml",
		[]byte(`<quiz><question type="essay"><name>broken</quiz>`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d: %s", w.Code, w.Body)
	}
	var resp struct {
		Offset int64 `json:"offset"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Offset <= 0 {
		t.Fatalf("error body lacks byte offset: %s", w.Body)
	}
}

func TestExportRoundTrip(t *testing.T) {
	s := newTestServer(t)
	sess := uploadSession(t, s)

	tpls, err := s.templates.ListPresentations(context.Background(),
		template.Filter{AppliesTo: template.AppliesAny})
	if err != nil || len(tpls) == 0 {
		t.Fatal("no fallback preset")
	}

	body, _ := json.Marshal(export.Request{
		SessionID:              sess.ID,
		QuestionIDs:            []string{sess.Questions[0].ID},
		Format:                 "html",
		PresentationTemplateID: tpls[0].ID,
		Title:                  "Quiz",
	})
	w := s.do(t, "POST", "/export", "application/json", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit: %d %s", w.Code, w.Body)
	}
	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.TaskID == "" {
		t.Fatalf("submit body: %s", w.Body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	task, err := s.mgr.Wait(ctx, resp.TaskID)
	if err != nil || task.State != export.StateSucceeded {
		t.Fatalf("task: %+v err=%v", task, err)
	}

	w = s.do(t, "GET", "/export/"+resp.TaskID, "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"succeeded"`) {
		t.Fatalf("status: %d %s", w.Code, w.Body)
	}

	w = s.do(t, "GET", "/export/"+resp.TaskID+"/download", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download: %d %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type: %s", ct)
	}
	if !strings.Contains(w.Body.String(), "What is 2+2?") {
		t.Fatal("artifact body missing question text")
	}

	w = s.do(t, "GET", "/export-history", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: %d", w.Code)
	}
	var recs []export.Record
	if err := json.Unmarshal(w.Body.Bytes(), &recs); err != nil || len(recs) != 1 {
		t.Fatalf("history body: %s", w.Body)
	}
}

func TestSubmitExportBadRequest(t *testing.T) {
	s := newTestServer(t)
	sess := uploadSession(t, s)

	body, _ := json.Marshal(export.Request{
		SessionID: sess.ID, QuestionIDs: nil, Format: "html", PresentationTemplateID: "x",
	})
	w := s.do(t, "POST", "/export", "application/json", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d %s", w.Code, w.Body)
	}
}

func TestCreateTemplateValidationStatus(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(template.PresentationTemplate{
		Name: "", AppliesTo: "crossword",
		Config: template.Config{Version: 1},
	})
	w := s.do(t, "POST", "/templates", "application/json", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("want 422, got %d %s", w.Code, w.Body)
	}
	var resp struct {
		Violations []string `json:"violations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || len(resp.Violations) < 3 {
		t.Fatalf("violation list: %s", w.Body)
	}
}

func TestDeleteTemplateInUseStatus(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	tpl, err := s.templates.SavePresentation(ctx, template.PresentationTemplate{
		Name: "Mine", AppliesTo: template.AppliesAny, Owner: "anonymous",
		Config: template.DefaultConfig(template.AppliesAny),
	})
	if err != nil {
		t.Fatal(err)
	}
	s.templates.SetUsageChecker(pinned{tpl.ID: {"task-1"}})

	w := s.do(t, "DELETE", "/templates/"+tpl.ID, "", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), "task-1") {
		t.Fatalf("conflict body lacks task ids: %s", w.Body)
	}
}

type pinned map[string][]string

func (p pinned) ActiveTasks(id string) []string { return p[id] }

func TestFormatsEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, "GET", "/formats", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("formats: %d", w.Code)
	}
	var out []struct {
		Format      string `json:"format"`
		ContentType string `json:"content_type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || len(out) != 5 {
		t.Fatalf("formats body: %s", w.Body)
	}
}
