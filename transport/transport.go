// Package transport implements the invoker-facing websocket accept loop:
// handshake-then-dispatch per connection, translating binary frames to and
// from session.Conductor. This is the conductor's one concrete realization
// of the "reliable bidirectional message channel" the core protocol treats
// as an external boundary (spec §6).
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/purplesyringa/sunwalker-conductor/iox"
	"github.com/purplesyringa/sunwalker-conductor/log"
	"github.com/purplesyringa/sunwalker-conductor/polygon"
	"github.com/purplesyringa/sunwalker-conductor/session"
	"github.com/purplesyringa/sunwalker-conductor/types"
	"github.com/purplesyringa/sunwalker-conductor/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server accepts invoker websocket connections and drives each one against
// a Conductor.
type Server struct {
	conductor    *session.Conductor
	logger       *log.Logger
	problemsRoot string
}

// NewServer creates a Server dispatching handled messages to conductor.
// problemsRoot is the filesystem directory (conf.DataConfig.Problems) that
// relative package directories passed to the ingest admin route are
// resolved against.
func NewServer(conductor *session.Conductor, logger *log.Logger, problemsRoot string) *Server {
	return &Server{conductor: conductor, logger: logger, problemsRoot: problemsRoot}
}

// Handler returns the HTTP handler serving the invoker websocket endpoint
// ("/invokers"), the ingestion and dispatch admin routes
// ("/problems/{id}/revisions/{id}", "/submissions"), and a small
// read/finalize admin surface over submissions ("/submissions/{id}",
// "/submissions/{id}/finalize"), used by the ingest, submit, and inspect
// CLI commands.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/invokers", s.serveWebsocket)
	mux.HandleFunc("/problems/", s.serveIngest)
	mux.HandleFunc("/submissions", s.serveDispatch)
	mux.HandleFunc("/submissions/", s.serveSubmission)
	mux.HandleFunc("/metrics", s.serveMetrics)
	return mux
}

// serveIngest handles POST /problems/{problemID}/revisions/{revisionID},
// reading a Polygon package from a directory named by the "dir" query
// parameter (relative to problemsRoot) and publishing it to the conductor,
// wiring the ingestion pipeline (spec §4.1–§4.4) into the shipped binary.
func (s *Server) serveIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/problems/")
	problemID, tail, _ := strings.Cut(rest, "/revisions/")
	revisionID := tail
	if problemID == "" || revisionID == "" {
		http.NotFound(w, r)
		return
	}

	dir := r.URL.Query().Get("dir")
	if dir == "" {
		http.Error(w, "missing required query parameter: dir", http.StatusBadRequest)
		return
	}

	reader := polygon.DirReader(filepath.Join(s.problemsRoot, filepath.FromSlash(dir)))
	revision, err := polygon.CreateArchiveFromPolygon(r.Context(), reader, s.conductor.Store())
	if err != nil {
		writeClassifiedError(w, err)
		return
	}

	s.conductor.PublishRevision(problemID, revisionID, revision)
	w.WriteHeader(http.StatusCreated)
}

// dispatchRequest is the JSON body of POST /submissions, shared with the
// submit CLI command.
type dispatchRequest struct {
	InvokerName      string                          `json:"invoker_name"`
	CompilationCore  uint64                          `json:"compilation_core"`
	SubmissionID     string                          `json:"submission_id"`
	ProblemID        string                          `json:"problem_id"`
	RevisionID       string                          `json:"revision_id"`
	Language         string                          `json:"language"`
	Files            map[string][]byte               `json:"files"`
	InvocationLimits map[string]types.InvocationLimit `json:"invocation_limits"`
}

// serveDispatch handles POST /submissions, decoding a dispatchRequest and
// dispatching it to the named invoker via Conductor.AddSubmission, wiring
// submission dispatch (spec §4.6) into the shipped binary.
func (s *Server) serveDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	err := s.conductor.AddSubmission(
		req.InvokerName,
		req.CompilationCore,
		req.SubmissionID,
		req.ProblemID,
		req.RevisionID,
		req.Language,
		req.Files,
		req.InvocationLimits,
	)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// writeClassifiedError maps a classified types.Error to an HTTP status:
// bad ingestion/dispatch input is a client error, everything else (an
// invoker failure, an internal conductor invariant violation) is a server
// error.
func writeClassifiedError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if types.IsKind(err, types.ErrConfigurationFailure) {
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) serveMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.conductor.Metrics().Snapshot())
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}
	s.handleConnection(r.Context(), conn)
}

// submissionView is the JSON shape returned by GET /submissions/{id}.
type submissionView struct {
	SubmissionID string `json:"submission_id"`
	PendingTests int    `json:"pending_tests"`
	TotalTests   int    `json:"total_tests"`
	IgnoredTests int    `json:"ignored_tests"`
	Failed       bool   `json:"failed"`
	FailureKind  string `json:"failure_kind,omitempty"`
	FailureMsg   string `json:"failure_message,omitempty"`
}

func (s *Server) serveSubmission(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/submissions/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	sub, ok := s.conductor.Submission(id)
	if !ok {
		http.Error(w, "submission not found", http.StatusNotFound)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		total, ignored, failed, failure := sub.Summary()
		view := submissionView{
			SubmissionID: id,
			PendingTests: sub.PendingCount(),
			TotalTests:   total,
			IgnoredTests: ignored,
			Failed:       failed,
		}
		if failure != nil {
			view.FailureKind = string(failure.Kind)
			view.FailureMsg = failure.Message
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(view)

	case action == "finalize" && r.Method == http.MethodPost:
		if err := s.conductor.FinalizeSubmission(r.Context(), id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

// handleConnection runs one invoker session: a handshake, then message
// dispatch until the connection closes or a CommunicationError occurs
// (spec §4.6, mirroring the original accept_invoker_connection loop).
func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn) {
	defer iox.DiscardClose(conn)

	logger := s.logger
	var writeMu sync.Mutex
	send := func(msg *wire.C2I) error {
		payload, err := wire.EncodeC2I(msg)
		if err != nil {
			return fmt.Errorf("transport: failed to encode message: %w", err)
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.BinaryMessage, payload)
	}

	var inv *session.Invoker
	defer func() {
		if inv != nil {
			s.conductor.Disconnect(inv)
		}
	}()

	for {
		kind, buf, err := conn.ReadMessage()
		if err != nil {
			if !isCleanClose(err) {
				logger.Warn("invoker connection errored", map[string]any{"error": err.Error()})
			}
			return
		}

		switch kind {
		case websocket.CloseMessage:
			return
		case websocket.PingMessage:
			continue
		case websocket.BinaryMessage:
			// handled below
		default:
			logger.Warn("message of unknown type received from invoker", map[string]any{"type": kind})
			continue
		}

		msg, err := wire.DecodeI2C(buf)
		if err != nil {
			logger.Warn("failed to decode message from invoker", map[string]any{"error": err.Error()})
			return
		}

		if inv == nil {
			if msg.Kind != wire.I2CHandshake || msg.Handshake == nil {
				logger.Warn("first message of invoker was not a handshake", map[string]any{"kind": string(msg.Kind)})
				return
			}
			inv = s.conductor.Handshake(msg.Handshake.InvokerName, send)
			logger = logger.WithInvoker(msg.Handshake.InvokerName)
			continue
		}

		if err := s.conductor.HandleMessage(ctx, inv, msg); err != nil {
			logger.Warn("invoker session failed", map[string]any{
				"invoker_name": inv.Name,
				"error":        err.Error(),
			})
			if types.IsKind(err, types.ErrCommunicationError) {
				return
			}
		}
	}
}

func isCleanClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) || errors.Is(err, websocket.ErrCloseSent)
}
