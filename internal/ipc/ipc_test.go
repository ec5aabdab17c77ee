package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/privacycheck/privacycheck/internal/cookies"
	"github.com/privacycheck/privacycheck/internal/history"
	"github.com/privacycheck/privacycheck/internal/host"
	"github.com/privacycheck/privacycheck/internal/prefs"
	"github.com/privacycheck/privacycheck/internal/privacy"
	"github.com/privacycheck/privacycheck/internal/report"
	"github.com/privacycheck/privacycheck/internal/scanner"
)

func testService(t *testing.T) *scanner.Service {
	t.Helper()
	h := host.NewStatic(map[host.SettingID]bool{
		privacy.SettingThirdPartyCookies: true,
		privacy.SettingDoNotTrack:        true,
		privacy.SettingJavascript:        false,
		privacy.SettingHyperlinkAuditing: false,
	})
	h.SetCookies("", []host.Cookie{{Name: "a", Domain: "example.com", Secure: true, HTTPOnly: true}})
	svc, err := scanner.New(scanner.Config{
		Settings: h,
		Cookies:  h,
		Prefs:    prefs.NewMemoryStore(prefs.Defaults()),
		History:  history.NewMemoryStore(),
		Logger:   log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("scanner.New: %v", err)
	}
	return svc
}

func startTestServer(t *testing.T) (*Server, string, context.CancelFunc) {
	t.Helper()
	// Unix socket paths are length-limited; keep them short.
	dir, err := os.MkdirTemp("", "pc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	socketPath := filepath.Join(dir, "t.sock")

	server := NewServer(socketPath, testService(t), log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	go server.Start(ctx)

	// Wait for server to start
	for i := 0; i < 50; i++ {
		if _, err := os.Stat(socketPath); err == nil {
			return server, socketPath, cancel
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	t.Fatal("server did not start in time")
	return nil, "", nil
}

func sendRaw(t *testing.T, conn net.Conn, line string) Response {
	t.Helper()
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		t.Fatal("no response received")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func dialClient(t *testing.T, socketPath string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewServer(t *testing.T) {
	s := NewServer("", nil, nil)
	if s.SocketPath() != DefaultSocketPath {
		t.Errorf("expected default path %q, got %q", DefaultSocketPath, s.SocketPath())
	}

	s2 := NewServer("/custom/path.sock", nil, nil)
	if s2.SocketPath() != "/custom/path.sock" {
		t.Errorf("expected /custom/path.sock, got %q", s2.SocketPath())
	}
}

func TestServerPing(t *testing.T) {
	_, socketPath, cancel := startTestServer(t)
	defer cancel()

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	resp := sendRaw(t, conn, `{"method":"ping","id":1}`)
	if resp.ID != 1 {
		t.Errorf("expected ID 1, got %d", resp.ID)
	}
	if resp.Error != nil {
		t.Errorf("expected no error, got %q", *resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map result, got %T", resp.Result)
	}
	if result["status"] != "ok" {
		t.Errorf("status = %v, want ok", result["status"])
	}
}

func TestServerInvalidJSON(t *testing.T) {
	_, socketPath, cancel := startTestServer(t)
	defer cancel()

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	resp := sendRaw(t, conn, `not json`)
	if resp.Error == nil || !strings.Contains(*resp.Error, "invalid request") {
		t.Errorf("expected invalid request error, got %+v", resp)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	_, socketPath, cancel := startTestServer(t)
	defer cancel()

	c := dialClient(t, socketPath)
	err := c.Call(context.Background(), "analyzeAds", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown method") {
		t.Errorf("err = %v, want unknown method", err)
	}
}

func TestServerAnalyzePrivacy(t *testing.T) {
	_, socketPath, cancel := startTestServer(t)
	defer cancel()

	c := dialClient(t, socketPath)
	var a privacy.Analysis
	if err := c.Call(context.Background(), MethodAnalyzePrivacy, nil, &a); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if a.Summary.TotalIssues != 1 {
		t.Errorf("TotalIssues = %d, want 1", a.Summary.TotalIssues)
	}
	if a.Summary.MaxCVSS != 6.5 {
		t.Errorf("MaxCVSS = %v, want 6.5", a.Summary.MaxCVSS)
	}
}

func TestServerCheckCookies(t *testing.T) {
	_, socketPath, cancel := startTestServer(t)
	defer cancel()

	c := dialClient(t, socketPath)
	ctx := context.Background()

	if err := c.Call(ctx, MethodCheckCookies, nil, nil); err == nil {
		t.Error("expected error without params")
	}

	var a cookies.Analysis
	if err := c.Call(ctx, MethodCheckCookies, URLParams{URL: "https://example.com/"}, &a); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if a.TotalCount != 1 || len(a.Issues) != 0 {
		t.Errorf("analysis = %+v", a)
	}
}

func TestServerApplySetting(t *testing.T) {
	_, socketPath, cancel := startTestServer(t)
	defer cancel()

	c := dialClient(t, socketPath)
	var res privacy.Result
	err := c.Call(context.Background(), MethodApplySetting,
		ApplyParams{SettingType: privacy.ActionDisableThirdPartyCookies}, &res)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !res.Success || res.Message != "Setting updated successfully" {
		t.Errorf("result = %+v", res)
	}
}

func TestServerGenerateReportAndHistory(t *testing.T) {
	_, socketPath, cancel := startTestServer(t)
	defer cancel()

	c := dialClient(t, socketPath)
	ctx := context.Background()

	var a privacy.Analysis
	if err := c.Call(ctx, MethodAnalyzePrivacy, nil, &a); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var r report.Report
	err := c.Call(ctx, MethodGenerateReport, ReportParams{
		URL:            "https://example.com/",
		Title:          "Example",
		PrivacyResults: &a,
	}, &r)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if r.Summary.PrivacyIssues != 1 || r.Summary.MaxCVSS != "6.5" {
		t.Errorf("summary = %+v", r.Summary)
	}

	var hist []report.Report
	if err := c.Call(ctx, MethodGetReportHistory, nil, &hist); err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].ID != r.ID {
		t.Fatalf("history = %+v", hist)
	}

	var got report.Report
	if err := c.Call(ctx, MethodGetReport, IDParams{ID: r.ID}, &got); err != nil {
		t.Fatalf("getReport: %v", err)
	}
	if got.Title != "Example" {
		t.Errorf("Title = %q", got.Title)
	}

	if err := c.Call(ctx, MethodClearHistory, nil, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := c.Call(ctx, MethodGetReportHistory, nil, &hist); err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 0 {
		t.Errorf("history after clear = %d", len(hist))
	}
}

func TestServerAutoScanDisabled(t *testing.T) {
	_, socketPath, cancel := startTestServer(t)
	defer cancel()

	c := dialClient(t, socketPath)
	var res scanner.AutoScanResult
	err := c.Call(context.Background(), MethodAutoScan, TabParams{URL: "https://example.com/"}, &res)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.Scanned {
		t.Error("auto-scan ran although disabled by default")
	}
}

func TestActiveConnections(t *testing.T) {
	server, socketPath, cancel := startTestServer(t)
	defer cancel()

	c := dialClient(t, socketPath)
	if err := c.Call(context.Background(), MethodPing, nil, nil); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if n := server.ActiveConnections(); n != 1 {
		t.Errorf("ActiveConnections = %d, want 1", n)
	}
}
