package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/chatkb/chatkb/internal/extract"
	"github.com/chatkb/chatkb/internal/index"
	"github.com/chatkb/chatkb/internal/kb"
	"github.com/chatkb/chatkb/internal/logging"
	"github.com/chatkb/chatkb/internal/store"
)

// handleCreateChatbot handles POST /api/chatbots.
func (s *Server) handleCreateChatbot(w http.ResponseWriter, r *http.Request) {
	var req createChatbotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	bot, err := s.db.CreateChatbot(r.Context(), req.Name)
	if err != nil {
		logging.FromContext(r.Context()).Error("create chatbot failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not create chatbot")
		return
	}

	writeJSON(w, http.StatusCreated, chatbotResponse{
		ID:        bot.ID,
		Name:      bot.Name,
		CreatedAt: bot.CreatedAt,
	})
}

// handleListChatbots handles GET /api/chatbots.
func (s *Server) handleListChatbots(w http.ResponseWriter, r *http.Request) {
	bots, err := s.db.ListChatbots(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("list chatbots failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list chatbots")
		return
	}

	out := make([]chatbotResponse, 0, len(bots))
	for _, bot := range bots {
		out = append(out, chatbotResponse{ID: bot.ID, Name: bot.Name, CreatedAt: bot.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetChatbot handles GET /api/chatbots/{id}.
func (s *Server) handleGetChatbot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "chatbot id is required")
		return
	}

	bot, err := s.db.GetChatbot(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "chatbot not found")
			return
		}
		logging.FromContext(r.Context()).Error("get chatbot failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not load chatbot")
		return
	}

	writeJSON(w, http.StatusOK, chatbotResponse{ID: bot.ID, Name: bot.Name, CreatedAt: bot.CreatedAt})
}

// handleUpload handles POST /api/knowledge-base/upload. The request is a
// multipart form with fields chatbot_id, file, and optional document_id.
// The file is stored under the upload directory, extracted, chunked,
// embedded, and indexed in one pass; a failed ingestion removes the file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart form or file too large")
		return
	}

	chatbotID := r.FormValue("chatbot_id")
	if !index.ValidTenantID(chatbotID) {
		writeError(w, http.StatusBadRequest, "valid chatbot_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !extract.Supported(header.Filename) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported file type")
		return
	}

	dir := filepath.Join(s.cfg.UploadDir, chatbotID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("upload: create dir failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	// A UUID prefix keeps repeated uploads of the same filename apart.
	dst := filepath.Join(dir, uuid.NewString()+"_"+filepath.Base(header.Filename))

	out, err := os.Create(dst)
	if err != nil {
		log.Error("upload: create file failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(dst)
		log.Error("upload: write file failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	out.Close()

	start := time.Now()
	docID, chunks, err := s.kb.AddFile(r.Context(), chatbotID, r.FormValue("document_id"), dst)
	if err != nil {
		os.Remove(dst)
		s.metrics.ingestDocumentsTotal.WithLabelValues("error").Inc()
		log.Error("upload: ingestion failed",
			slog.String("chatbot_id", chatbotID),
			slog.String("file", header.Filename),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}
	s.metrics.ingestDocumentsTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestChunksTotal.Add(float64(chunks))
	s.metrics.ingestDurationSeconds.Observe(time.Since(start).Seconds())

	// The relational record is bookkeeping; a failure here must not undo a
	// completed ingestion.
	if err := s.db.RecordUpload(r.Context(), store.Upload{
		DocumentID: docID,
		ChatbotID:  chatbotID,
		FileName:   header.Filename,
		FilePath:   dst,
		NumChunks:  chunks,
	}); err != nil {
		log.Error("upload: record failed", slog.String("document_id", docID), slog.Any("error", err))
	}

	log.Info("upload: document ingested",
		slog.String("chatbot_id", chatbotID),
		slog.String("document_id", docID),
		slog.Int("chunks", chunks),
	)
	writeJSON(w, http.StatusCreated, ingestResponse{DocumentID: docID, Chunks: chunks})
}

// handleIngestText handles POST /api/knowledge-base/documents for raw-text
// ingestion without an uploaded file.
func (s *Server) handleIngestText(w http.ResponseWriter, r *http.Request) {
	var req ingestTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !index.ValidTenantID(req.ChatbotID) {
		writeError(w, http.StatusBadRequest, "valid chatbot_id is required")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	start := time.Now()
	docID, chunks, err := s.kb.AddDocument(r.Context(), req.ChatbotID, req.DocumentID, "", req.Text)
	if err != nil {
		s.metrics.ingestDocumentsTotal.WithLabelValues("error").Inc()
		logging.FromContext(r.Context()).Error("ingest: failed",
			slog.String("chatbot_id", req.ChatbotID),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}
	s.metrics.ingestDocumentsTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestChunksTotal.Add(float64(chunks))
	s.metrics.ingestDurationSeconds.Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusCreated, ingestResponse{DocumentID: docID, Chunks: chunks})
}

// handleListDocuments handles GET /api/knowledge-base/documents?chatbot_id=X.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	chatbotID := r.URL.Query().Get("chatbot_id")
	if !index.ValidTenantID(chatbotID) {
		writeError(w, http.StatusBadRequest, "valid chatbot_id is required")
		return
	}

	entries, err := s.kb.ListDocuments(chatbotID)
	if err != nil {
		logging.FromContext(r.Context()).Error("list documents failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}

	resp := documentsResponse{ChatbotID: chatbotID, Documents: make([]documentInfo, 0, len(entries))}
	for _, e := range entries {
		resp.Documents = append(resp.Documents, documentInfo{
			DocumentID: e.DocumentID,
			FilePath:   e.Record.FilePath,
			NumChunks:  e.Record.NumVectors,
			AddedAt:    e.Record.AddedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSearch handles POST /api/knowledge-base/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !index.ValidTenantID(req.ChatbotID) {
		writeError(w, http.StatusBadRequest, "valid chatbot_id is required")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	k := req.TopK
	if k <= 0 {
		k = s.cfg.DefaultTopK
	}

	start := time.Now()
	results, err := s.kb.Search(r.Context(), req.ChatbotID, req.Query, k, req.DocumentIDs)
	if err != nil {
		s.metrics.queryRequestsTotal.WithLabelValues("search", "error").Inc()
		logging.FromContext(r.Context()).Error("search failed",
			slog.String("chatbot_id", req.ChatbotID),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	s.metrics.queryRequestsTotal.WithLabelValues("search", "ok").Inc()
	s.metrics.queryDurationSeconds.WithLabelValues("search").Observe(time.Since(start).Seconds())

	if results == nil {
		results = []kb.Result{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

// handleQuery handles POST /api/knowledge-base/query: retrieval-grounded
// question answering, optionally recorded into a chat session.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !index.ValidTenantID(req.ChatbotID) {
		writeError(w, http.StatusBadRequest, "valid chatbot_id is required")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	k := req.TopK
	if k <= 0 {
		k = s.cfg.DefaultTopK
	}

	start := time.Now()
	answer, err := s.kb.Answer(r.Context(), req.ChatbotID, req.Question, k, req.DocumentIDs)
	if err != nil {
		s.metrics.queryRequestsTotal.WithLabelValues("answer", "error").Inc()
		log.Error("query failed",
			slog.String("chatbot_id", req.ChatbotID),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	s.metrics.queryRequestsTotal.WithLabelValues("answer", "ok").Inc()
	s.metrics.queryDurationSeconds.WithLabelValues("answer").Observe(time.Since(start).Seconds())

	// Session history is best effort; the answer is already computed.
	if req.SessionID != "" {
		if err := s.db.AppendMessage(r.Context(), req.SessionID, store.RoleUser, req.Question); err != nil {
			log.Error("query: record user message failed", slog.Any("error", err))
		} else if err := s.db.AppendMessage(r.Context(), req.SessionID, store.RoleAssistant, answer); err != nil {
			log.Error("query: record assistant message failed", slog.Any("error", err))
		}
	}

	writeJSON(w, http.StatusOK, queryResponse{Answer: answer})
}

// handleCreateSession handles POST /api/sessions. When no name is supplied
// but an opening question is, the model derives a short session name from it;
// a naming failure falls back to a fixed default rather than failing the
// session creation.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !index.ValidTenantID(req.ChatbotID) {
		writeError(w, http.StatusBadRequest, "valid chatbot_id is required")
		return
	}
	if _, err := s.db.GetChatbot(r.Context(), req.ChatbotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "chatbot not found")
			return
		}
		log.Error("create session: chatbot lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	name := req.Name
	if name == "" && req.Question != "" {
		derived, err := s.kb.NameSession(r.Context(), req.Question)
		if err != nil {
			log.Warn("create session: naming failed", slog.Any("error", err))
		} else {
			name = derived
		}
	}
	if name == "" {
		name = "New chat"
	}

	sess, err := s.db.CreateSession(r.Context(), req.ChatbotID, name)
	if err != nil {
		log.Error("create session failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:        sess.ID,
		ChatbotID: sess.ChatbotID,
		Name:      sess.Name,
		CreatedAt: sess.CreatedAt,
	})
}

// handleListMessages handles GET /api/sessions/{id}/messages.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	msgs, err := s.db.RecentMessages(r.Context(), sessionID, limit)
	if err != nil {
		logging.FromContext(r.Context()).Error("list messages failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list messages")
		return
	}

	resp := messagesResponse{SessionID: sessionID, Messages: make([]messageInfo, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageInfo{
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListUploads handles GET /api/knowledge-base/uploads?chatbot_id=X.
// Unlike the documents listing, which reads the index metadata, this reflects
// the relational upload records (original filenames included).
func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	chatbotID := r.URL.Query().Get("chatbot_id")
	if !index.ValidTenantID(chatbotID) {
		writeError(w, http.StatusBadRequest, "valid chatbot_id is required")
		return
	}

	uploads, err := s.db.ListUploads(r.Context(), chatbotID)
	if err != nil {
		logging.FromContext(r.Context()).Error("list uploads failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not list uploads")
		return
	}

	resp := uploadsResponse{ChatbotID: chatbotID, Uploads: make([]uploadInfo, 0, len(uploads))}
	for _, up := range uploads {
		resp.Uploads = append(resp.Uploads, uploadInfo{
			DocumentID: up.DocumentID,
			FileName:   up.FileName,
			NumChunks:  up.NumChunks,
			CreatedAt:  up.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
