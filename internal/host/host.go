// Package host defines the contracts the privacy checker needs from a browser:
// reading and writing privacy settings and enumerating cookies for a URL.
//
// The checker never talks to a browser directly. Callers inject one of the
// implementations in this package (Static for tests, Profile and the cookie
// file readers for the CLI) or their own adapter.
package host

import (
	"context"
	"fmt"
)

// SettingID names a browser privacy setting.
type SettingID string

// SettingReader reads the current value of a privacy setting.
type SettingReader interface {
	GetSetting(ctx context.Context, id SettingID) (bool, error)
}

// SettingWriter changes a privacy setting.
type SettingWriter interface {
	SetSetting(ctx context.Context, id SettingID, value bool) error
}

// SettingStore reads and writes settings.
type SettingStore interface {
	SettingReader
	SettingWriter
}

// CookieSource enumerates the cookies a browser would send to a URL.
type CookieSource interface {
	GetCookies(ctx context.Context, url string) ([]Cookie, error)
}

// Tab identifies the page an analysis is about.
type Tab struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Cookie is one cookie as reported by the browser. ExpirationDate is in
// epoch seconds and is nil for session cookies.
type Cookie struct {
	Name           string   `json:"name" yaml:"name"`
	Value          string   `json:"value,omitempty" yaml:"value,omitempty"`
	Domain         string   `json:"domain" yaml:"domain"`
	Path           string   `json:"path,omitempty" yaml:"path,omitempty"`
	Secure         bool     `json:"secure" yaml:"secure"`
	HTTPOnly       bool     `json:"httpOnly" yaml:"httpOnly"`
	SameSite       string   `json:"sameSite,omitempty" yaml:"sameSite,omitempty"`
	ExpirationDate *float64 `json:"expirationDate,omitempty" yaml:"expirationDate,omitempty"`
}

// Error is a failure reported by the host. Reason is the host's own message
// and is shown to the user unchanged.
type Error struct {
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Failure wraps err as a host Error for op. A nil err returns nil.
func Failure(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Reason: err.Error(), Err: err}
}
