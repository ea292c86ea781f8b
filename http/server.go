package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"grokchat/data"
	"grokchat/logger"
	"grokchat/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusSessionExpired is the non-standard "login time-out" status browsers
// get when their session is gone.
const StatusSessionExpired = 440

type ChatService interface {
	StartSession(ctx context.Context, id string) (*data.SessionState, error)
	SubmitQuery(ctx context.Context, sessionID string, query string) (services.QueryResult, error)
	GetStatus(ctx context.Context, sessionID string) (services.Status, error)
	ClearSession(ctx context.Context, sessionID string) error
}

type server_data struct {
	service      ChatService
	cookies      *SessionCookies
	queryTimeout time.Duration
}

// NewHandler builds the routes. queryTimeout bounds each provider call.
func NewHandler(service ChatService, cookies *SessionCookies, queryTimeout time.Duration) http.Handler {
	server_data := &server_data{
		service:      service,
		cookies:      cookies,
		queryTimeout: queryTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", server_data.handleRoot)
	mux.HandleFunc("POST /query", server_data.handleQuery)
	mux.HandleFunc("GET /session-status", server_data.handleSessionStatus)
	mux.HandleFunc("POST /clear-session", server_data.handleClearSession)
	mux.HandleFunc("GET /favicon.ico", handleFavicon)
	mux.HandleFunc("GET /status", handleStatus)
	mux.HandleFunc("OPTIONS /", handleOptions)
	return withCors(mux)
}

func Run(secure bool, port int, handler http.Handler) error {
	logger.Screen(fmt.Sprintf("server running on port %d", port), logger.Info)
	logger.Log.Info("server running", zap.Int("port", port), zap.Bool("secure", secure))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if secure {
		return srv.ListenAndServeTLS("cert.pem", "key.pem")
	}
	return srv.ListenAndServe()
}

type queryRequest struct {
	Query *string `json:"query"`
}

type usageResponse struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type queryResponse struct {
	Status        string        `json:"status"`
	Query         string        `json:"query"`
	Response      string        `json:"response"`
	Model         string        `json:"model"`
	Usage         usageResponse `json:"usage"`
	SessionActive bool          `json:"session_active"`
}

type rootResponse struct {
	SessionActive bool   `json:"session_active"`
	SessionStart  string `json:"session_start"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func parseQueryRequest(r *http.Request) (string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return "", &services.Error{Kind: services.KindInvalidInput, Message: "Request must be JSON"}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("error reading request body: %w", err)
	}
	defer r.Body.Close()

	var req queryRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Query == nil {
		return "", &services.Error{Kind: services.KindInvalidInput, Message: `Missing "query" parameter`}
	}
	return *req.Query, nil
}

func (server_data *server_data) handleRoot(w http.ResponseWriter, r *http.Request) {
	id, ok := server_data.cookies.Read(r)
	if !ok {
		id = uuid.NewString()
	}

	state, err := server_data.service.StartSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := server_data.cookies.Issue(w, id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rootResponse{
		SessionActive: true,
		SessionStart:  state.Created.Format(time.RFC3339),
	})
}

func (server_data *server_data) handleQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := server_data.cookies.Read(r)
	if !ok {
		writeError(w, &services.Error{Kind: services.KindSessionExpired, Message: services.SessionExpiredMessage})
		return
	}

	query, err := parseQueryRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), server_data.queryTimeout)
	defer cancel()

	logger.Log.Debug("handling query", zap.String("session", id))
	result, err := server_data.service.SubmitQuery(ctx, id, query)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := server_data.cookies.Issue(w, id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Status:   "success",
		Query:    result.Query,
		Response: result.Content,
		Model:    result.Model,
		Usage: usageResponse{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
		SessionActive: true,
	})
}

func (server_data *server_data) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	status := services.Status{SessionStart: "unknown"}

	if id, ok := server_data.cookies.Read(r); ok {
		var err error
		status, err = server_data.service.GetStatus(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if status.Active {
			if err := server_data.cookies.Issue(w, id); err != nil {
				writeError(w, err)
				return
			}
		}
	}

	if status.UsageToday == nil {
		status.UsageToday = &data.UsageRecord{}
	}
	writeJSON(w, http.StatusOK, status)
}

func (server_data *server_data) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if id, ok := server_data.cookies.Read(r); ok {
		if err := server_data.service.ClearSession(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
	}

	server_data.cookies.Drop(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func handleFavicon(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func withCors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Access-Control-Allow-Headers, X-Requested-With")
		next.ServeHTTP(w, r)
	})
}

// statusFor maps pipeline errors to the codes the browser client expects.
func statusFor(err error) int {
	var serviceErr *services.Error
	if !errors.As(err, &serviceErr) {
		return http.StatusInternalServerError
	}

	switch serviceErr.Kind {
	case services.KindSessionExpired:
		return StatusSessionExpired
	case services.KindInvalidInput:
		return http.StatusBadRequest
	case services.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// InternalErrorMessage replaces the body of failures that did not come from
// the query pipeline, so store details stay in the log.
const InternalErrorMessage = "Internal server error"

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()

	var serviceErr *services.Error
	if !errors.As(err, &serviceErr) {
		message = InternalErrorMessage
	}

	if status == http.StatusInternalServerError {
		logger.Log.Error("request failed", zap.Error(err))
		logger.Screen(fmt.Sprintf("request failed: %v", err), logger.Alert)
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Warn("could not encode response", zap.Error(err))
	}
}
