package host

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
)

const httpOnlyPrefix = "#HttpOnly_"

// NetscapeCookieFile reads cookies from a cookies.txt export
// (tab-separated: domain, subdomains flag, path, secure, expiry, name, value).
type NetscapeCookieFile struct {
	Path string
}

// GetCookies implements CookieSource.
func (f NetscapeCookieFile) GetCookies(_ context.Context, rawURL string) ([]Cookie, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, Failure("get cookies for "+rawURL, err)
	}
	defer file.Close()

	all, err := ParseNetscape(file)
	if err != nil {
		return nil, Failure("get cookies for "+rawURL, err)
	}
	out, err := filterForURL(all, rawURL)
	return out, Failure("get cookies for "+rawURL, err)
}

// ParseNetscape parses a cookies.txt stream. HttpOnly cookies carry the
// "#HttpOnly_" domain prefix; other lines starting with '#' are comments.
func ParseNetscape(r io.Reader) ([]Cookie, error) {
	var cookies []Cookie
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		} else if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			return nil, fmt.Errorf("line %d: expected 7 fields, got %d", lineNo, len(fields))
		}

		c := Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HTTPOnly: httpOnly,
			Name:     fields[5],
			Value:    fields[6],
		}
		expiry, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad expiry %q: %w", lineNo, fields[4], err)
		}
		if expiry > 0 {
			c.ExpirationDate = &expiry
		}
		cookies = append(cookies, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}

// JSONCookieFile reads a JSON array of cookie objects in the shape browser
// extensions export (name, domain, secure, httpOnly, sameSite, expirationDate).
type JSONCookieFile struct {
	Path string
}

// GetCookies implements CookieSource.
func (f JSONCookieFile) GetCookies(_ context.Context, rawURL string) ([]Cookie, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, Failure("get cookies for "+rawURL, err)
	}
	var all []Cookie
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, Failure("get cookies for "+rawURL, fmt.Errorf("parse %s: %w", f.Path, err))
	}
	out, err := filterForURL(all, rawURL)
	return out, Failure("get cookies for "+rawURL, err)
}

// filterForURL keeps the cookies whose domain and path match rawURL, in
// their original order.
func filterForURL(all []Cookie, rawURL string) ([]Cookie, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return nil, fmt.Errorf("url %q has no host", rawURL)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	out := []Cookie{}
	for _, c := range all {
		if !domainMatch(hostname, c.Domain) {
			continue
		}
		if c.Path != "" && !pathMatch(path, c.Path) {
			continue
		}
		if c.Secure && u.Scheme == "http" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// pathMatch applies RFC 6265 section 5.1.4: the cookie path must equal the
// request path or be a prefix ending at a '/' boundary.
func pathMatch(reqPath, cookiePath string) bool {
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return len(reqPath) == len(cookiePath) ||
		strings.HasSuffix(cookiePath, "/") ||
		reqPath[len(cookiePath)] == '/'
}

func domainMatch(hostname, domain string) bool {
	d := strings.ToLower(strings.TrimPrefix(domain, "."))
	if d == "" {
		return false
	}
	return hostname == d || strings.HasSuffix(hostname, "."+d)
}
