// Package ipc provides a Unix domain socket server mirroring the browser
// extension's runtime messages.
//
// Local processes (a native-messaging bridge, editor plugins, scripts) connect
// to the socket and send JSON-RPC style requests without needing a TCP port.
//
// Protocol:
//   - Client connects to the Unix socket
//   - Client sends a JSON request (newline-terminated)
//   - Server responds with a JSON response (newline-terminated)
//   - Connection stays open for multiple request/response cycles
//
// Request format:
//
//	{"method": "analyzePrivacy", "id": 1}
//	{"method": "checkCookies", "id": 2, "params": {"url": "https://example.com/"}}
//	{"method": "applySetting", "id": 3, "params": {"settingType": "enableDoNotTrack"}}
//	{"method": "generateReport", "id": 4, "params": {"url": "...", "title": "...", "privacyResults": {...}, "cookieResults": {...}}}
//	{"method": "getReportHistory", "id": 5}
//
// Response format:
//
//	{"id": 1, "result": {...}, "error": null}
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/privacycheck/privacycheck/internal/cookies"
	"github.com/privacycheck/privacycheck/internal/host"
	"github.com/privacycheck/privacycheck/internal/privacy"
	"github.com/privacycheck/privacycheck/internal/scanner"
	"github.com/privacycheck/privacycheck/pkg/buildinfo"
)

// DefaultSocketPath is the default Unix socket path.
const DefaultSocketPath = "/tmp/privacycheck/privacyd.sock"

// Methods served over the socket.
const (
	MethodAnalyzePrivacy   = "analyzePrivacy"
	MethodCheckCookies     = "checkCookies"
	MethodApplySetting     = "applySetting"
	MethodGenerateReport   = "generateReport"
	MethodGetReportHistory = "getReportHistory"
	MethodGetReport        = "getReport"
	MethodClearHistory     = "clearHistory"
	MethodAutoScan         = "autoScan"
	MethodPing             = "ping"
)

// Request represents a JSON-RPC style request.
type Request struct {
	Method string          `json:"method"`
	ID     int             `json:"id"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC style response.
type Response struct {
	ID     int         `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *string     `json:"error"`
}

// URLParams carries a page URL.
type URLParams struct {
	URL string `json:"url"`
}

// TabParams carries a page URL and title.
type TabParams struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ApplyParams names the remediation to perform.
type ApplyParams struct {
	SettingType privacy.Action `json:"settingType"`
}

// ReportParams carries previously computed analyses to assemble into a report.
type ReportParams struct {
	URL            string            `json:"url"`
	Title          string            `json:"title"`
	PrivacyResults *privacy.Analysis `json:"privacyResults"`
	CookieResults  *cookies.Analysis `json:"cookieResults"`
}

// IDParams names a saved report.
type IDParams struct {
	ID string `json:"id"`
}

// Server is the IPC Unix socket server.
type Server struct {
	socketPath string
	svc        *scanner.Service
	logger     *log.Logger
	listener   net.Listener
	mu         sync.Mutex
	clients    map[net.Conn]struct{}
}

// NewServer creates a new IPC server. A nil logger uses log.Default().
func NewServer(socketPath string, svc *scanner.Service, logger *log.Logger) *Server {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		socketPath: socketPath,
		svc:        svc,
		logger:     logger,
		clients:    make(map[net.Conn]struct{}),
	}
}

// Start begins listening on the Unix socket. Blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	// Ensure the socket directory exists
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}

	// Remove stale socket file
	os.Remove(s.socketPath)

	var err error
	s.listener, err = net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}

	// Owner only: the socket can change browser settings.
	os.Chmod(s.socketPath, 0600)
	s.logger.Printf("ipc: listening on %s", s.socketPath)

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		s.mu.Lock()
		s.clients[conn] = struct{}{}
		s.mu.Unlock()

		go s.handleConn(ctx, conn)
	}
}

// SocketPath returns the configured socket path.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// ActiveConnections returns the number of active client connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB max message

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Bytes()
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			errMsg := fmt.Sprintf("invalid request: %v", err)
			writeResponse(conn, Response{Error: &errMsg})
			continue
		}

		writeResponse(conn, s.dispatch(ctx, req))
	}
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID}

	result, err := s.call(ctx, req)
	if err != nil {
		errMsg := err.Error()
		resp.Error = &errMsg
		return resp
	}
	resp.Result = result
	return resp
}

func (s *Server) call(ctx context.Context, req Request) (interface{}, error) {
	switch req.Method {
	case MethodAnalyzePrivacy:
		return s.svc.AnalyzePrivacy(ctx)

	case MethodCheckCookies:
		var p URLParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		if p.URL == "" {
			return nil, fmt.Errorf("url is required")
		}
		return s.svc.CheckCookies(ctx, p.URL)

	case MethodApplySetting:
		var p ApplyParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return s.svc.ApplySetting(ctx, p.SettingType), nil

	case MethodGenerateReport:
		var p ReportParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return s.svc.GenerateReport(ctx, host.Tab{URL: p.URL, Title: p.Title}, p.PrivacyResults, p.CookieResults)

	case MethodGetReportHistory:
		return s.svc.History(ctx)

	case MethodGetReport:
		var p IDParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return s.svc.Report(ctx, p.ID)

	case MethodClearHistory:
		if err := s.svc.ClearHistory(ctx); err != nil {
			return nil, err
		}
		return map[string]bool{"cleared": true}, nil

	case MethodAutoScan:
		var p TabParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return s.svc.AutoScan(ctx, host.Tab{URL: p.URL, Title: p.Title})

	case MethodPing:
		return map[string]string{
			"status":  "ok",
			"version": buildinfo.Version,
		}, nil

	default:
		return nil, fmt.Errorf("unknown method: %s", req.Method)
	}
}

func decodeParams(req Request, v interface{}) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("%s: params are required", req.Method)
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return fmt.Errorf("%s: invalid params: %w", req.Method, err)
	}
	return nil
}

func writeResponse(conn net.Conn, resp Response) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	conn.Write(data)
}
