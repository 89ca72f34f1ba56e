package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chatkb/chatkb/internal/kb"
	"github.com/chatkb/chatkb/internal/metadata"
	"github.com/chatkb/chatkb/internal/store"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeKB implements the knowledgeBase interface for handler tests.
type fakeKB struct {
	docID     string
	chunks    int
	ingestErr error

	results   []kb.Result
	searchErr error

	answer    string
	answerErr error

	sessionName    string
	sessionNameErr error

	entries []metadata.Entry

	lastTenant string
	lastText   string
	lastPath   string
	lastQuery  string
	lastK      int
	lastFilter []string
}

func (f *fakeKB) AddDocument(_ context.Context, tenantID, documentID, _, text string) (string, int, error) {
	f.lastTenant, f.lastText = tenantID, text
	if f.ingestErr != nil {
		return "", 0, f.ingestErr
	}
	id := documentID
	if id == "" {
		id = f.docID
	}
	return id, f.chunks, nil
}

func (f *fakeKB) AddFile(_ context.Context, tenantID, documentID, path string) (string, int, error) {
	f.lastTenant, f.lastPath = tenantID, path
	if f.ingestErr != nil {
		return "", 0, f.ingestErr
	}
	id := documentID
	if id == "" {
		id = f.docID
	}
	return id, f.chunks, nil
}

func (f *fakeKB) Search(_ context.Context, tenantID, query string, k int, documentIDs []string) ([]kb.Result, error) {
	f.lastTenant, f.lastQuery, f.lastK, f.lastFilter = tenantID, query, k, documentIDs
	return f.results, f.searchErr
}

func (f *fakeKB) Answer(_ context.Context, tenantID, query string, k int, documentIDs []string) (string, error) {
	f.lastTenant, f.lastQuery, f.lastK, f.lastFilter = tenantID, query, k, documentIDs
	return f.answer, f.answerErr
}

func (f *fakeKB) NameSession(_ context.Context, _ string) (string, error) {
	return f.sessionName, f.sessionNameErr
}

func (f *fakeKB) ListDocuments(tenantID string) ([]metadata.Entry, error) {
	f.lastTenant = tenantID
	return f.entries, nil
}

// recordedMessage captures one AppendMessage call.
type recordedMessage struct {
	sessionID string
	role      store.Role
	content   string
}

// fakeDB implements the relational interface for handler tests.
type fakeDB struct {
	bots      []store.Chatbot
	createErr error
	uploads   []store.Upload
	messages  []recordedMessage
	appendErr error
}

func (f *fakeDB) CreateChatbot(_ context.Context, name string) (store.Chatbot, error) {
	if f.createErr != nil {
		return store.Chatbot{}, f.createErr
	}
	bot := store.Chatbot{ID: "bot-1", Name: name, CreatedAt: time.Now()}
	f.bots = append(f.bots, bot)
	return bot, nil
}

func (f *fakeDB) GetChatbot(_ context.Context, id string) (store.Chatbot, error) {
	for _, b := range f.bots {
		if b.ID == id {
			return b, nil
		}
	}
	return store.Chatbot{}, fmt.Errorf("chatbot %s: %w", id, sql.ErrNoRows)
}

func (f *fakeDB) ListChatbots(context.Context) ([]store.Chatbot, error) {
	return f.bots, nil
}

func (f *fakeDB) CreateSession(_ context.Context, chatbotID, name string) (store.Session, error) {
	return store.Session{ID: "sess-1", ChatbotID: chatbotID, Name: name}, nil
}

func (f *fakeDB) AppendMessage(_ context.Context, sessionID string, role store.Role, content string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.messages = append(f.messages, recordedMessage{sessionID, role, content})
	return nil
}

func (f *fakeDB) RecentMessages(_ context.Context, sessionID string, n int) ([]store.Message, error) {
	var out []store.Message
	for _, m := range f.messages {
		if m.sessionID == sessionID {
			out = append(out, store.Message{Role: m.role, Content: m.content})
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (f *fakeDB) RecordUpload(_ context.Context, up store.Upload) error {
	f.uploads = append(f.uploads, up)
	return nil
}

func (f *fakeDB) ListUploads(context.Context, string) ([]store.Upload, error) {
	return f.uploads, nil
}

// newTestServer builds a *Server with fakes, a discarding logger, and a
// fresh metrics registry so tests stay hermetic.
func newTestServer() *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		kb:      &fakeKB{},
		db:      &fakeDB{},
		cfg:     &Config{DefaultTopK: 5, UploadDir: "data/documents", MaxUploadBytes: 32 << 20},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: newServerMetrics(reg),
	}
}

// ---------------------------------------------------------------------------
// POST /api/chatbots
// ---------------------------------------------------------------------------

func TestHandleCreateChatbot_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chatbots",
		strings.NewReader(`{"name":"support-bot"}`))
	w := httptest.NewRecorder()

	s.handleCreateChatbot(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp chatbotResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == "" || resp.Name != "support-bot" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleCreateChatbot_MissingName(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chatbots", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	s.handleCreateChatbot(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleCreateChatbot_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chatbots", strings.NewReader(`{nope`))
	w := httptest.NewRecorder()

	s.handleCreateChatbot(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GET /api/chatbots/{id}
// ---------------------------------------------------------------------------

func TestHandleGetChatbot_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	fd := &fakeDB{bots: []store.Chatbot{{ID: "bot-1", Name: "support-bot"}}}
	s.db = fd

	req := httptest.NewRequest(http.MethodGet, "/api/chatbots/bot-1", nil)
	req.SetPathValue("id", "bot-1")
	w := httptest.NewRecorder()

	s.handleGetChatbot(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp chatbotResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "bot-1" || resp.Name != "support-bot" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleGetChatbot_NotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/chatbots/nope", nil)
	req.SetPathValue("id", "nope")
	w := httptest.NewRecorder()

	s.handleGetChatbot(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/knowledge-base/documents
// ---------------------------------------------------------------------------

func TestHandleIngestText_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	fk := &fakeKB{docID: "doc-9", chunks: 3}
	s.kb = fk

	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/documents",
		strings.NewReader(`{"chatbot_id":"bot-1","text":"hello knowledge"}`))
	w := httptest.NewRecorder()

	s.handleIngestText(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp ingestResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DocumentID != "doc-9" || resp.Chunks != 3 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if fk.lastTenant != "bot-1" || fk.lastText != "hello knowledge" {
		t.Errorf("engine got tenant=%q text=%q", fk.lastTenant, fk.lastText)
	}
}

func TestHandleIngestText_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"missing chatbot_id", `{"text":"hi"}`},
		{"invalid chatbot_id", `{"chatbot_id":"a/b","text":"hi"}`},
		{"missing text", `{"chatbot_id":"bot-1"}`},
		{"invalid json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer()
			req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/documents",
				strings.NewReader(tc.body))
			w := httptest.NewRecorder()

			s.handleIngestText(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestHandleIngestText_EngineError(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.kb = &fakeKB{ingestErr: errors.New("embedder down")}

	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/documents",
		strings.NewReader(`{"chatbot_id":"bot-1","text":"hi"}`))
	w := httptest.NewRecorder()

	s.handleIngestText(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/knowledge-base/upload
// ---------------------------------------------------------------------------

// multipartUpload builds a multipart request body with the given form fields
// and one file part.
func multipartUpload(t *testing.T, fields map[string]string, fileName, fileContent string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(fileContent)); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleUpload_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.cfg.UploadDir = t.TempDir()
	fk := &fakeKB{docID: "doc-up", chunks: 2}
	fd := &fakeDB{}
	s.kb, s.db = fk, fd

	body, ct := multipartUpload(t, map[string]string{"chatbot_id": "bot-1"}, "notes.txt", "uploaded text")
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d — body: %s", w.Code, w.Body.String())
	}
	if fk.lastPath == "" {
		t.Fatal("engine was not given a stored file path")
	}
	if _, err := os.Stat(fk.lastPath); err != nil {
		t.Errorf("stored file missing: %v", err)
	}
	if len(fd.uploads) != 1 || fd.uploads[0].DocumentID != "doc-up" {
		t.Errorf("upload record not written: %+v", fd.uploads)
	}
}

func TestHandleUpload_UnsupportedType(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.cfg.UploadDir = t.TempDir()

	body, ct := multipartUpload(t, map[string]string{"chatbot_id": "bot-1"}, "image.png", "\x89PNG")
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", w.Code)
	}
}

func TestHandleUpload_MissingChatbotID(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.cfg.UploadDir = t.TempDir()

	body, ct := multipartUpload(t, nil, "notes.txt", "text")
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleUpload_IngestionFailureRemovesFile(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	dir := t.TempDir()
	s.cfg.UploadDir = dir
	fk := &fakeKB{ingestErr: errors.New("embedder down")}
	s.kb = fk

	body, ct := multipartUpload(t, map[string]string{"chatbot_id": "bot-1"}, "notes.txt", "text")
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if _, err := os.Stat(fk.lastPath); !os.IsNotExist(err) {
		t.Errorf("failed ingestion must remove the stored file, stat err: %v", err)
	}
}

// ---------------------------------------------------------------------------
// GET /api/knowledge-base/documents
// ---------------------------------------------------------------------------

func TestHandleListDocuments_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	added := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.kb = &fakeKB{entries: []metadata.Entry{
		{DocumentID: "d1", Record: metadata.Record{FilePath: "/f/a.txt", NumVectors: 4, AddedAt: added}},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/knowledge-base/documents?chatbot_id=bot-1", nil)
	w := httptest.NewRecorder()

	s.handleListDocuments(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp documentsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ChatbotID != "bot-1" || len(resp.Documents) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Documents[0].DocumentID != "d1" || resp.Documents[0].NumChunks != 4 {
		t.Errorf("unexpected document: %+v", resp.Documents[0])
	}
}

func TestHandleListDocuments_MissingChatbotID(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/knowledge-base/documents", nil)
	w := httptest.NewRecorder()

	s.handleListDocuments(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /api/knowledge-base/search
// ---------------------------------------------------------------------------

func TestHandleSearch_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	fk := &fakeKB{results: []kb.Result{
		{DocumentID: "d1", Chunk: "nearest", Distance: 0.1},
		{DocumentID: "d2", Chunk: "further", Distance: 0.9},
	}}
	s.kb = fk

	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/search",
		strings.NewReader(`{"chatbot_id":"bot-1","query":"q","top_k":2,"document_ids":["d1","d2"]}`))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 2 || resp.Results[0].Chunk != "nearest" {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
	if fk.lastK != 2 || len(fk.lastFilter) != 2 {
		t.Errorf("engine got k=%d filter=%v", fk.lastK, fk.lastFilter)
	}
}

func TestHandleSearch_DefaultTopK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	fk := &fakeKB{}
	s.kb = fk

	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/search",
		strings.NewReader(`{"chatbot_id":"bot-1","query":"q"}`))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fk.lastK != s.cfg.DefaultTopK {
		t.Errorf("want default top_k %d, engine got %d", s.cfg.DefaultTopK, fk.lastK)
	}
}

func TestHandleSearch_EmptyResultsIsArray(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/search",
		strings.NewReader(`{"chatbot_id":"bot-1","query":"q"}`))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"results":[]`) {
		t.Errorf("empty result set must serialize as [], got %s", w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// POST /api/knowledge-base/query
// ---------------------------------------------------------------------------

func TestHandleQuery_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.kb = &fakeKB{answer: "grapes are purple"}

	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/query",
		strings.NewReader(`{"chatbot_id":"bot-1","question":"what color?"}`))
	w := httptest.NewRecorder()

	s.handleQuery(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp queryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "grapes are purple" {
		t.Errorf("unexpected answer: %q", resp.Answer)
	}
}

func TestHandleQuery_SessionRecorded(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	fd := &fakeDB{}
	s.kb = &fakeKB{answer: "the answer"}
	s.db = fd

	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/query",
		strings.NewReader(`{"chatbot_id":"bot-1","question":"q?","session_id":"sess-1"}`))
	w := httptest.NewRecorder()

	s.handleQuery(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(fd.messages) != 2 {
		t.Fatalf("want user+assistant recorded, got %d messages", len(fd.messages))
	}
	if fd.messages[0].role != store.RoleUser || fd.messages[0].content != "q?" {
		t.Errorf("first message: %+v", fd.messages[0])
	}
	if fd.messages[1].role != store.RoleAssistant || fd.messages[1].content != "the answer" {
		t.Errorf("second message: %+v", fd.messages[1])
	}
}

func TestHandleQuery_EngineError(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	fd := &fakeDB{}
	s.kb = &fakeKB{answerErr: errors.New("model unavailable")}
	s.db = fd

	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-base/query",
		strings.NewReader(`{"chatbot_id":"bot-1","question":"q?","session_id":"sess-1"}`))
	w := httptest.NewRecorder()

	s.handleQuery(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if len(fd.messages) != 0 {
		t.Errorf("failed query must not record session messages, got %d", len(fd.messages))
	}
}

// ---------------------------------------------------------------------------
// POST /api/sessions, GET /api/sessions/{id}/messages
// ---------------------------------------------------------------------------

func TestHandleCreateSession_DerivedName(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.kb = &fakeKB{sessionName: "Refund window"}
	s.db = &fakeDB{bots: []store.Chatbot{{ID: "bot-1", Name: "support-bot"}}}

	req := httptest.NewRequest(http.MethodPost, "/api/sessions",
		strings.NewReader(`{"chatbot_id":"bot-1","question":"what is the refund window?"}`))
	w := httptest.NewRecorder()

	s.handleCreateSession(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp sessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Name != "Refund window" {
		t.Errorf("want derived name, got %q", resp.Name)
	}
}

func TestHandleCreateSession_NamingFailureFallsBack(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.kb = &fakeKB{sessionNameErr: errors.New("model unavailable")}
	s.db = &fakeDB{bots: []store.Chatbot{{ID: "bot-1", Name: "support-bot"}}}

	req := httptest.NewRequest(http.MethodPost, "/api/sessions",
		strings.NewReader(`{"chatbot_id":"bot-1","question":"q?"}`))
	w := httptest.NewRecorder()

	s.handleCreateSession(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp sessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Name != "New chat" {
		t.Errorf("want fallback name, got %q", resp.Name)
	}
}

func TestHandleCreateSession_UnknownChatbot(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions",
		strings.NewReader(`{"chatbot_id":"ghost","name":"x"}`))
	w := httptest.NewRecorder()

	s.handleCreateSession(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleListMessages_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	fd := &fakeDB{messages: []recordedMessage{
		{"sess-1", store.RoleUser, "q?"},
		{"sess-1", store.RoleAssistant, "a."},
		{"other", store.RoleUser, "unrelated"},
	}}
	s.db = fd

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1/messages", nil)
	req.SetPathValue("id", "sess-1")
	w := httptest.NewRecorder()

	s.handleListMessages(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp messagesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("want 2 messages, got %d", len(resp.Messages))
	}
	if resp.Messages[0].Role != "user" || resp.Messages[1].Content != "a." {
		t.Errorf("unexpected messages: %+v", resp.Messages)
	}
}

func TestHandleListMessages_BadLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1/messages?limit=zero", nil)
	req.SetPathValue("id", "sess-1")
	w := httptest.NewRecorder()

	s.handleListMessages(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GET /api/knowledge-base/uploads
// ---------------------------------------------------------------------------

func TestHandleListUploads_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.db = &fakeDB{uploads: []store.Upload{
		{DocumentID: "doc-1", ChatbotID: "bot-1", FileName: "notes.txt", NumChunks: 4},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/knowledge-base/uploads?chatbot_id=bot-1", nil)
	w := httptest.NewRecorder()

	s.handleListUploads(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp uploadsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Uploads) != 1 || resp.Uploads[0].FileName != "notes.txt" {
		t.Errorf("unexpected uploads: %+v", resp.Uploads)
	}
}
