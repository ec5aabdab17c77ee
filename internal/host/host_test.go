package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const cookiesTxt = `# Netscape HTTP Cookie File
# comment line

.example.com	TRUE	/	TRUE	1900000000	_ga	GA1.2
#HttpOnly_www.example.com	FALSE	/	TRUE	0	sid	abc
www.example.com	FALSE	/account	FALSE	0	pref	dark
.tracker.net	TRUE	/	TRUE	1900000000	uid	42
`

func TestParseNetscape(t *testing.T) {
	cookies, err := ParseNetscape(strings.NewReader(cookiesTxt))
	if err != nil {
		t.Fatalf("ParseNetscape: %v", err)
	}
	if len(cookies) != 4 {
		t.Fatalf("expected 4 cookies, got %d", len(cookies))
	}

	ga := cookies[0]
	if ga.Domain != ".example.com" || !ga.Secure || ga.HTTPOnly {
		t.Errorf("unexpected _ga cookie: %+v", ga)
	}
	if ga.ExpirationDate == nil || *ga.ExpirationDate != 1900000000 {
		t.Errorf("expected expiry 1900000000, got %v", ga.ExpirationDate)
	}

	sid := cookies[1]
	if !sid.HTTPOnly {
		t.Error("expected sid to be HttpOnly")
	}
	if sid.Domain != "www.example.com" {
		t.Errorf("HttpOnly prefix not stripped: %q", sid.Domain)
	}
	if sid.ExpirationDate != nil {
		t.Error("expected session cookie to have no expiry")
	}
}

func TestParseNetscape_BadLine(t *testing.T) {
	_, err := ParseNetscape(strings.NewReader("example.com\tTRUE\t/\n"))
	if err == nil {
		t.Fatal("expected error for short line")
	}
}

func TestNetscapeCookieFile_FiltersByURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(path, []byte(cookiesTxt), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NetscapeCookieFile{Path: path}
	got, err := src.GetCookies(context.Background(), "https://www.example.com/")
	if err != nil {
		t.Fatalf("GetCookies: %v", err)
	}
	// _ga and sid match; pref is path-scoped to /account; uid is another site.
	if len(got) != 2 {
		t.Fatalf("expected 2 cookies, got %d: %+v", len(got), got)
	}

	got, err = src.GetCookies(context.Background(), "https://www.example.com/account/settings")
	if err != nil {
		t.Fatalf("GetCookies: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 cookies under /account, got %d", len(got))
	}
}

func TestNetscapeCookieFile_MissingFile(t *testing.T) {
	src := NetscapeCookieFile{Path: filepath.Join(t.TempDir(), "missing.txt")}
	_, err := src.GetCookies(context.Background(), "https://example.com")

	var hostErr *Error
	if !errors.As(err, &hostErr) {
		t.Fatalf("expected *host.Error, got %T (%v)", err, err)
	}
	if hostErr.Reason == "" {
		t.Error("expected a reason from the host")
	}
}

func TestJSONCookieFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	data := `[
		{"name":"a","domain":".shop.example","secure":true,"httpOnly":true,"sameSite":"lax","expirationDate":1900000000},
		{"name":"b","domain":"shop.example","secure":false,"httpOnly":false,"sameSite":"no_restriction"},
		{"name":"c","domain":"other.example"}
	]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := JSONCookieFile{Path: path}.GetCookies(context.Background(), "http://shop.example/cart")
	if err != nil {
		t.Fatalf("GetCookies: %v", err)
	}
	// "a" is secure and the URL is plain http, so only "b" is sent.
	if len(got) != 1 || got[0].Name != "b" {
		t.Fatalf("unexpected cookies: %+v", got)
	}
}

func TestFilterForURL_RejectsHostless(t *testing.T) {
	if _, err := filterForURL(nil, "about:blank"); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestPathMatch(t *testing.T) {
	tests := []struct {
		req, cookie string
		want        bool
	}{
		{"/foo", "/foo", true},
		{"/foo/bar", "/foo", true},
		{"/foo/bar", "/foo/", true},
		{"/foobar", "/foo", false},
		{"/fo", "/foo", false},
		{"/anything", "/", true},
	}
	for _, tt := range tests {
		if got := pathMatch(tt.req, tt.cookie); got != tt.want {
			t.Errorf("pathMatch(%q, %q) = %v, want %v", tt.req, tt.cookie, got, tt.want)
		}
	}
}

func TestFilterForURL_PathBoundary(t *testing.T) {
	all := []Cookie{
		{Name: "foo", Domain: "a.example", Path: "/foo"},
		{Name: "root", Domain: "a.example", Path: "/"},
	}
	got, err := filterForURL(all, "https://a.example/foobar")
	if err != nil {
		t.Fatalf("filterForURL: %v", err)
	}
	if len(got) != 1 || got[0].Name != "root" {
		t.Fatalf("unexpected cookies: %+v", got)
	}

	got, err = filterForURL(all, "https://a.example/foo/page")
	if err != nil {
		t.Fatalf("filterForURL: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected cookies: %+v", got)
	}
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := NewStatic(map[SettingID]bool{"javascriptEnabled": true})

	v, err := s.GetSetting(ctx, "javascriptEnabled")
	if err != nil || !v {
		t.Fatalf("GetSetting = %v, %v", v, err)
	}
	if _, err := s.GetSetting(ctx, "doNotTrackEnabled"); !errors.Is(err, ErrSettingUnavailable) {
		t.Errorf("expected ErrSettingUnavailable, got %v", err)
	}

	s.FailWrite("javascriptEnabled", errors.New("managed by policy"))
	err = s.SetSetting(ctx, "javascriptEnabled", false)
	var hostErr *Error
	if !errors.As(err, &hostErr) || hostErr.Reason != "managed by policy" {
		t.Fatalf("expected host error with policy reason, got %v", err)
	}

	s.SetCookies("", []Cookie{{Name: "fallback"}})
	s.SetCookies("https://a.example", []Cookie{{Name: "exact"}})
	got, _ := s.GetCookies(ctx, "https://a.example")
	if len(got) != 1 || got[0].Name != "exact" {
		t.Errorf("expected exact match, got %+v", got)
	}
	got, _ = s.GetCookies(ctx, "https://b.example")
	if len(got) != 1 || got[0].Name != "fallback" {
		t.Errorf("expected fallback, got %+v", got)
	}
}

func TestProfile_ReadWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profile", "browser.yaml")
	p := NewProfile(path)

	if _, err := p.GetSetting(ctx, "doNotTrackEnabled"); err == nil {
		t.Fatal("expected missing setting error on empty profile")
	}

	if err := p.SetSetting(ctx, "doNotTrackEnabled", true); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	// A fresh Profile on the same path sees the persisted value.
	v, err := NewProfile(path).GetSetting(ctx, "doNotTrackEnabled")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if !v {
		t.Error("expected doNotTrackEnabled=true after write")
	}
}

func TestProfile_Cookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "browser.yaml")
	data := `settings:
  javascriptEnabled: true
cookies:
  - name: sid
    domain: .news.example
    secure: true
    httpOnly: true
  - name: other
    domain: unrelated.example
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NewProfile(path).GetCookies(context.Background(), "https://news.example/")
	if err != nil {
		t.Fatalf("GetCookies: %v", err)
	}
	if len(got) != 1 || got[0].Name != "sid" {
		t.Errorf("unexpected cookies: %+v", got)
	}
}

func TestProfile_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "browser.yaml")
	if err := os.WriteFile(path, []byte("settings: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewProfile(path).GetSetting(context.Background(), "javascriptEnabled")
	var hostErr *Error
	if !errors.As(err, &hostErr) {
		t.Fatalf("expected *host.Error, got %v", err)
	}
}
