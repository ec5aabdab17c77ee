package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrSettingUnavailable is returned by Static for settings it does not hold.
var ErrSettingUnavailable = errors.New("setting unavailable")

// Static is an in-memory host. Cookies are keyed by URL; the empty key
// matches any URL without an exact entry.
type Static struct {
	mu        sync.Mutex
	settings  map[SettingID]bool
	cookies   map[string][]Cookie
	readErr   map[SettingID]error
	writeErr  map[SettingID]error
	cookieErr error
}

// NewStatic returns a Static host holding the given settings.
func NewStatic(settings map[SettingID]bool) *Static {
	s := &Static{
		settings: make(map[SettingID]bool, len(settings)),
		cookies:  make(map[string][]Cookie),
		readErr:  make(map[SettingID]error),
		writeErr: make(map[SettingID]error),
	}
	for k, v := range settings {
		s.settings[k] = v
	}
	return s
}

// SetCookies replaces the cookies returned for url.
func (s *Static) SetCookies(url string, cookies []Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies[url] = append([]Cookie(nil), cookies...)
}

// FailRead makes reads of id fail with err.
func (s *Static) FailRead(id SettingID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr[id] = err
}

// FailWrite makes writes of id fail with err.
func (s *Static) FailWrite(id SettingID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr[id] = err
}

// FailCookies makes cookie enumeration fail with err.
func (s *Static) FailCookies(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookieErr = err
}

// GetSetting implements SettingReader.
func (s *Static) GetSetting(_ context.Context, id SettingID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readErr[id]; err != nil {
		return false, Failure("get "+string(id), err)
	}
	v, ok := s.settings[id]
	if !ok {
		return false, Failure("get "+string(id), ErrSettingUnavailable)
	}
	return v, nil
}

// SetSetting implements SettingWriter.
func (s *Static) SetSetting(_ context.Context, id SettingID, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeErr[id]; err != nil {
		return Failure("set "+string(id), err)
	}
	s.settings[id] = value
	return nil
}

// GetCookies implements CookieSource.
func (s *Static) GetCookies(_ context.Context, url string) ([]Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cookieErr != nil {
		return nil, Failure(fmt.Sprintf("get cookies for %s", url), s.cookieErr)
	}
	if c, ok := s.cookies[url]; ok {
		return append([]Cookie(nil), c...), nil
	}
	return append([]Cookie(nil), s.cookies[""]...), nil
}
