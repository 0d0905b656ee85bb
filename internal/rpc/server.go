package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"

	"axiom/engine/internal/errinfo"
	"axiom/engine/internal/logging"
)

const maxMessageSize = 10 * 1024 * 1024

// Request is one line from the editor.
type Request struct {
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Result is the flat JSON object written back for a request.
type Result map[string]any

type Handler func(ctx context.Context, data json.RawMessage) (Result, *Error)

// Error is a failed request. Message becomes the "error" field and Info the
// "error_info" object.
type Error struct {
	Message string
	Info    *errinfo.ErrorInfo
}

// Server reads newline-delimited requests and answers each with exactly one
// line, in order.
type Server struct {
	reader   *bufio.Reader
	writer   *bufio.Writer
	mu       sync.Mutex
	handlers map[string]Handler
	logger   *slog.Logger
}

func NewServer(r io.Reader, w io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		reader:   bufio.NewReader(r),
		writer:   bufio.NewWriter(w),
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

func (s *Server) Register(command string, handler Handler) {
	s.handlers[command] = handler
}

// Serve processes requests until the input closes or ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := s.reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			s.handleLine(ctx, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			s.logger.Error("rpc.read_failed", "error", err.Error())
			return err
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	if len(line) > maxMessageSize {
		s.logger.Warn("rpc.message_too_large", "bytes", len(line))
		s.sendError(nil, &Error{Message: "message too large", Info: errinfo.ValidationFailed(errinfo.PhaseProtocol, "request exceeds 10 MiB")})
		return
	}
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Warn("rpc.invalid_json", "error", err.Error())
		s.sendError(nil, &Error{Message: "invalid json", Info: errinfo.ValidationFailed(errinfo.PhaseProtocol, err.Error())})
		return
	}
	handler, ok := s.handlers[req.Command]
	if !ok {
		s.logger.Warn("rpc.unknown_command", "command", req.Command)
		s.sendError(req.ID, &Error{Message: "Unknown command", Info: errinfo.UnknownCommand(req.Command)})
		return
	}
	s.logger.Debug("rpc.request", "command", req.Command, "id", string(req.ID), "data", logging.RedactJSON(req.Data))
	s.handleRequest(ctx, req, handler)
}

func (s *Server) handleRequest(ctx context.Context, req Request, handler Handler) {
	start := time.Now()
	var (
		result Result
		rpcErr *Error
	)
	var pc panics.Catcher
	pc.Try(func() {
		result, rpcErr = handler(ctx, req.Data)
	})
	if recovered := pc.Recovered(); recovered != nil {
		s.logger.Error("rpc.handler_panic", "command", req.Command, "panic", fmt.Sprint(recovered.Value), "stack", string(recovered.Stack))
		rpcErr = &Error{Message: "internal error", Info: errinfo.Internal(errinfo.PhaseProtocol, fmt.Sprint(recovered.Value))}
	}
	elapsed := time.Since(start).Milliseconds()
	if rpcErr != nil {
		s.logger.Error("rpc.response_error", "command", req.Command, "id", string(req.ID), "duration_ms", elapsed, "error", rpcErr.Message)
		s.sendError(req.ID, rpcErr)
		return
	}
	if result == nil {
		result = Result{}
	}
	s.logger.Debug("rpc.response", "command", req.Command, "id", string(req.ID), "duration_ms", elapsed, "result", logging.RedactAny(map[string]any(result)))
	s.send(req.ID, result)
}

func (s *Server) sendError(id json.RawMessage, rpcErr *Error) {
	out := Result{"error": rpcErr.Message}
	if rpcErr.Info != nil {
		out["error_info"] = rpcErr.Info
	}
	s.send(id, out)
}

func (s *Server) send(id json.RawMessage, payload Result) {
	if len(id) > 0 {
		payload["id"] = id
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("rpc.encode_failed", "error", err.Error())
		data, _ = json.Marshal(Result{"error": "internal error", "id": id})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(append(data, '\n'))
	_ = s.writer.Flush()
}
