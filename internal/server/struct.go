package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chatkb/chatkb/internal/kb"
	"github.com/chatkb/chatkb/internal/metadata"
	"github.com/chatkb/chatkb/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// UploadDir is where uploaded files are stored before ingestion.
	// Defaults to "data/documents".
	UploadDir string
	// MaxUploadBytes caps the size of a single uploaded file.
	// Defaults to 32 MiB.
	MaxUploadBytes int64
	// DefaultTopK is the result count used when a request omits top_k.
	DefaultTopK int
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's Prometheus metric registrations.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint.
	// Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// knowledgeBase is the interface the handlers call for ingestion and
// retrieval. *kb.Engine satisfies it; tests inject a fake.
type knowledgeBase interface {
	AddDocument(ctx context.Context, tenantID, documentID, filePath, text string) (string, int, error)
	AddFile(ctx context.Context, tenantID, documentID, path string) (string, int, error)
	Search(ctx context.Context, tenantID, query string, k int, documentIDs []string) ([]kb.Result, error)
	Answer(ctx context.Context, tenantID, query string, k int, documentIDs []string) (string, error)
	NameSession(ctx context.Context, question string) (string, error)
	ListDocuments(tenantID string) ([]metadata.Entry, error)
}

// relational is the interface the handlers call for chatbot and session
// state. *store.Store satisfies it; tests inject a fake.
type relational interface {
	CreateChatbot(ctx context.Context, name string) (store.Chatbot, error)
	GetChatbot(ctx context.Context, id string) (store.Chatbot, error)
	ListChatbots(ctx context.Context) ([]store.Chatbot, error)
	CreateSession(ctx context.Context, chatbotID, name string) (store.Session, error)
	AppendMessage(ctx context.Context, sessionID string, role store.Role, content string) error
	RecentMessages(ctx context.Context, sessionID string, n int) ([]store.Message, error)
	RecordUpload(ctx context.Context, up store.Upload) error
	ListUploads(ctx context.Context, chatbotID string) ([]store.Upload, error)
}

// Server is the HTTP server that exposes the knowledge base.
type Server struct {
	// kb handles ingestion, search, and answering.
	kb knowledgeBase
	// db is the relational store for chatbots, sessions, and upload records.
	db relational
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds all Prometheus metrics owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// createChatbotRequest is the JSON body for POST /api/chatbots.
type createChatbotRequest struct {
	// Name is the operator-facing display name.
	Name string `json:"name"`
}

// chatbotResponse is the JSON representation of a chatbot.
type chatbotResponse struct {
	// ID is the chatbot's unique identifier (also its tenant ID).
	ID string `json:"id"`
	// Name is the display name.
	Name string `json:"name"`
	// CreatedAt is when the chatbot was registered (RFC 3339).
	CreatedAt time.Time `json:"created_at"`
}

// ingestTextRequest is the JSON body for POST /api/knowledge-base/documents.
type ingestTextRequest struct {
	// ChatbotID is the tenant to ingest into.
	ChatbotID string `json:"chatbot_id"`
	// DocumentID optionally pins the document's ID; a UUID is assigned when empty.
	DocumentID string `json:"document_id,omitempty"`
	// Text is the raw document content.
	Text string `json:"text"`
}

// ingestResponse is the JSON response for ingestion endpoints.
type ingestResponse struct {
	// DocumentID is the ID under which the document was indexed.
	DocumentID string `json:"document_id"`
	// Chunks is the number of chunks the document produced.
	Chunks int `json:"chunks"`
}

// searchRequest is the JSON body for POST /api/knowledge-base/search.
type searchRequest struct {
	// ChatbotID is the tenant to search.
	ChatbotID string `json:"chatbot_id"`
	// Query is the natural-language search text.
	Query string `json:"query"`
	// TopK caps the number of results; the server default applies when zero.
	TopK int `json:"top_k,omitempty"`
	// DocumentIDs optionally restricts results to the given documents.
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// searchResponse is the JSON response for POST /api/knowledge-base/search.
type searchResponse struct {
	// Results are the ranked retrieval hits, nearest first.
	Results []kb.Result `json:"results"`
}

// queryRequest is the JSON body for POST /api/knowledge-base/query.
type queryRequest struct {
	// ChatbotID is the tenant to query.
	ChatbotID string `json:"chatbot_id"`
	// Question is the user's natural-language question.
	Question string `json:"question"`
	// TopK caps the retrieved context; the server default applies when zero.
	TopK int `json:"top_k,omitempty"`
	// DocumentIDs optionally restricts retrieval to the given documents.
	DocumentIDs []string `json:"document_ids,omitempty"`
	// SessionID optionally records the exchange in an existing chat session.
	SessionID string `json:"session_id,omitempty"`
}

// queryResponse is the JSON response for POST /api/knowledge-base/query.
type queryResponse struct {
	// Answer is the model's response, or the fixed fallback when nothing
	// relevant was retrieved.
	Answer string `json:"answer"`
}

// documentInfo is one entry in the GET /api/knowledge-base/documents response.
type documentInfo struct {
	// DocumentID is the document's identifier.
	DocumentID string `json:"document_id"`
	// FilePath locates the source file, empty for raw-text ingestions.
	FilePath string `json:"file_path,omitempty"`
	// NumChunks is the number of chunks the document produced.
	NumChunks int `json:"num_chunks"`
	// AddedAt is when the document was ingested (RFC 3339).
	AddedAt time.Time `json:"added_at"`
}

// documentsResponse is the JSON response for GET /api/knowledge-base/documents.
type documentsResponse struct {
	// ChatbotID is the tenant that was listed.
	ChatbotID string `json:"chatbot_id"`
	// Documents are the tenant's records in ingestion order.
	Documents []documentInfo `json:"documents"`
}

// createSessionRequest is the JSON body for POST /api/sessions.
type createSessionRequest struct {
	// ChatbotID is the chatbot the session belongs to.
	ChatbotID string `json:"chatbot_id"`
	// Name optionally sets the session's display name.
	Name string `json:"name,omitempty"`
	// Question optionally provides the opening question; when Name is empty
	// the model derives a short session name from it.
	Question string `json:"question,omitempty"`
}

// sessionResponse is the JSON representation of a chat session.
type sessionResponse struct {
	// ID is the session's unique identifier.
	ID string `json:"id"`
	// ChatbotID is the owning chatbot.
	ChatbotID string `json:"chatbot_id"`
	// Name is the session's display name.
	Name string `json:"name"`
	// CreatedAt is when the session was opened (RFC 3339).
	CreatedAt time.Time `json:"created_at"`
}

// messageInfo is one entry in the session messages response.
type messageInfo struct {
	// Role is the author: "user" or "assistant".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// CreatedAt is when the message was persisted (RFC 3339).
	CreatedAt time.Time `json:"created_at"`
}

// messagesResponse is the JSON response for GET /api/sessions/{id}/messages.
type messagesResponse struct {
	// SessionID is the session that was listed.
	SessionID string `json:"session_id"`
	// Messages are the most recent turns, oldest first.
	Messages []messageInfo `json:"messages"`
}

// uploadInfo is one entry in the uploads listing.
type uploadInfo struct {
	// DocumentID matches the ID under which the file was indexed.
	DocumentID string `json:"document_id"`
	// FileName is the original name of the uploaded file.
	FileName string `json:"file_name"`
	// NumChunks is how many chunks the file produced.
	NumChunks int `json:"num_chunks"`
	// CreatedAt is when the upload was recorded (RFC 3339).
	CreatedAt time.Time `json:"created_at"`
}

// uploadsResponse is the JSON response for GET /api/knowledge-base/uploads.
type uploadsResponse struct {
	// ChatbotID is the tenant that was listed.
	ChatbotID string `json:"chatbot_id"`
	// Uploads are the tenant's upload records, newest first.
	Uploads []uploadInfo `json:"uploads"`
}

// errorResponse is the JSON body for all non-2xx API responses.
type errorResponse struct {
	// Error is a human-readable description of what went wrong.
	Error string `json:"error"`
}
