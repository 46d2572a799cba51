package httpserver

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	photocontest "photocontest/contexts/community-experience/photo-contest"
	contesterrors "photocontest/contexts/community-experience/photo-contest/domain/errors"
	contesthttp "photocontest/contexts/community-experience/photo-contest/transport/http"
)

const maxBodyBytes = 1 << 20

type Server struct {
	mux           *http.ServeMux
	logger        *slog.Logger
	addr          string
	webhookSecret string
	contest       photocontest.Module
}

// New builds the contest HTTP surface. A nil gatherer leaves /metrics
// unregistered; an empty webhook secret disables signature checks.
func New(
	contest photocontest.Module,
	gatherer prometheus.Gatherer,
	webhookSecret string,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:           http.NewServeMux(),
		logger:        logger,
		addr:          addr,
		webhookSecret: strings.TrimSpace(webhookSecret),
		contest:       contest,
	}
	s.registerRoutes(gatherer)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.mux.HandleFunc("POST /contest/posting/start", s.handleStartPosting)
	s.mux.HandleFunc("POST /contest/votes/open", s.handleOpenVotes)
	s.mux.HandleFunc("POST /contest/votes/close", s.handleCloseVotes)
	s.mux.HandleFunc("GET /contest/status", s.handleStatus)
	s.mux.HandleFunc("GET /contest/results", s.handleListResults)

	s.mux.HandleFunc("POST /webhooks/platform/content-posted", s.handleContentPosted)
	s.mux.HandleFunc("POST /webhooks/platform/content-deleted", s.handleContentDeleted)
	s.mux.HandleFunc("POST /webhooks/platform/reaction-observed", s.handleReactionObserved)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartPosting(w http.ResponseWriter, r *http.Request) {
	var req contesthttp.CommandRequest
	if !s.decodeSigned(w, r, &req) {
		return
	}
	resp, err := s.contest.Handler.StartPostingHandler(r.Context(), req)
	if err != nil {
		writeContestDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenVotes(w http.ResponseWriter, r *http.Request) {
	var req contesthttp.CommandRequest
	if !s.decodeSigned(w, r, &req) {
		return
	}
	resp, err := s.contest.Handler.OpenVotesHandler(r.Context(), req)
	if err != nil {
		writeContestDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseVotes(w http.ResponseWriter, r *http.Request) {
	var req contesthttp.CloseVotesRequest
	if !s.decodeSigned(w, r, &req) {
		return
	}
	resp, err := s.contest.Handler.CloseVotesHandler(r.Context(), req)
	if err != nil {
		writeContestDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.contest.Handler.StatusHandler(r.Context()))
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitRaw := r.URL.Query().Get("limit"); limitRaw != "" {
		value, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeContestError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = value
	}
	resp, err := s.contest.Handler.ListResultsHandler(r.Context(), limit)
	if err != nil {
		writeContestDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleContentPosted(w http.ResponseWriter, r *http.Request) {
	var req contesthttp.ContentPostedRequest
	if !s.decodeSigned(w, r, &req) {
		return
	}
	resp, err := s.contest.Handler.ContentPostedHandler(r.Context(), req)
	if err != nil {
		writeContestDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleContentDeleted(w http.ResponseWriter, r *http.Request) {
	var req contesthttp.ContentDeletedRequest
	if !s.decodeSigned(w, r, &req) {
		return
	}
	resp, err := s.contest.Handler.ContentDeletedHandler(r.Context(), req)
	if err != nil {
		writeContestDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleReactionObserved(w http.ResponseWriter, r *http.Request) {
	var req contesthttp.ReactionObservedRequest
	if !s.decodeSigned(w, r, &req) {
		return
	}
	resp, err := s.contest.Handler.ReactionObservedHandler(r.Context(), req)
	if err != nil {
		writeContestDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// decodeSigned reads the body, checks the bridge signature when a secret is
// configured, and decodes JSON into out. It writes the error response itself.
func (s *Server) decodeSigned(w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeContestError(w, http.StatusBadRequest, "invalid_request", "unable to read request body")
		return false
	}
	if s.webhookSecret != "" && !validateSignature(bridgeSignature(r), body, s.webhookSecret) {
		writeContestError(w, http.StatusUnauthorized, "invalid_signature", "request signature is invalid")
		return false
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, out); err != nil {
		writeContestError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func bridgeSignature(r *http.Request) string {
	for _, key := range []string{"X-Webhook-Signature", "X-Signature"} {
		if value := strings.TrimSpace(r.Header.Get(key)); value != "" {
			return value
		}
	}
	return ""
}

func validateSignature(signature string, body []byte, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	if strings.HasPrefix(strings.ToLower(signature), "sha256=") {
		signature = signature[7:]
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}

func writeContestDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contesterrors.ErrNotModerator):
		writeContestError(w, http.StatusForbidden, "not_moderator", err.Error())
	case errors.Is(err, contesterrors.ErrInvalidTieDuration),
		errors.Is(err, contesterrors.ErrInvalidSubmission):
		writeContestError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, contesterrors.ErrInvalidPhaseTransition):
		writeContestError(w, http.StatusConflict, "invalid_phase_transition", err.Error())
	case errors.Is(err, contesterrors.ErrNoQualifyingSubmissions):
		writeContestError(w, http.StatusConflict, "no_qualifying_submissions", err.Error())
	case errors.Is(err, contesterrors.ErrDuplicateSlot):
		writeContestError(w, http.StatusConflict, "duplicate_slot", err.Error())
	case errors.Is(err, contesterrors.ErrAlreadyArmed),
		errors.Is(err, contesterrors.ErrNotArmed),
		errors.Is(err, contesterrors.ErrStaleRound):
		writeContestError(w, http.StatusConflict, "round_conflict", err.Error())
	case errors.Is(err, contesterrors.ErrExternalCapability):
		writeContestError(w, http.StatusBadGateway, "platform_unavailable", err.Error())
	default:
		writeContestError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeContestError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, contesthttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
