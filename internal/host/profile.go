package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// ProfileFile is the on-disk shape of a browser profile snapshot.
//
//	settings:
//	  thirdPartyCookiesAllowed: true
//	  doNotTrackEnabled: false
//	cookies:
//	  - name: sid
//	    domain: .example.com
//	    secure: true
type ProfileFile struct {
	Settings map[SettingID]bool `yaml:"settings"`
	Cookies  []Cookie           `yaml:"cookies,omitempty"`
}

// Profile is a SettingStore and CookieSource backed by a YAML profile file.
// Setting writes are persisted immediately.
type Profile struct {
	path string
	mu   sync.Mutex
}

// NewProfile returns a Profile reading and writing path. The file does not
// need to exist yet.
func NewProfile(path string) *Profile {
	return &Profile{path: path}
}

// Path returns the profile file location.
func (p *Profile) Path() string {
	return p.path
}

func (p *Profile) load() (*ProfileFile, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return &ProfileFile{Settings: map[SettingID]bool{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var f ProfileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", p.path, err)
	}
	if f.Settings == nil {
		f.Settings = map[SettingID]bool{}
	}
	return &f, nil
}

func (p *Profile) save(f *ProfileFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	return os.WriteFile(p.path, data, 0o644)
}

// GetSetting implements SettingReader.
func (p *Profile) GetSetting(_ context.Context, id SettingID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.load()
	if err != nil {
		return false, Failure("get "+string(id), err)
	}
	v, ok := f.Settings[id]
	if !ok {
		return false, Failure("get "+string(id), ErrSettingUnavailable)
	}
	return v, nil
}

// SetSetting implements SettingWriter.
func (p *Profile) SetSetting(_ context.Context, id SettingID, value bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.load()
	if err != nil {
		return Failure("set "+string(id), err)
	}
	f.Settings[id] = value
	return Failure("set "+string(id), p.save(f))
}

// GetCookies implements CookieSource, returning the profile's cookies that
// the browser would send to url.
func (p *Profile) GetCookies(_ context.Context, url string) ([]Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := p.load()
	if err != nil {
		return nil, Failure("get cookies for "+url, err)
	}
	out, err := filterForURL(f.Cookies, url)
	return out, Failure("get cookies for "+url, err)
}
