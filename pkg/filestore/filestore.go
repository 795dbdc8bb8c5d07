// Package filestore keeps the legacy human-readable data file (data.json)
// used as a mirror of group preferences and tenant records.
package filestore

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type FeatureSwitch struct {
	Features  []string `json:"features" yaml:"features"`
	Token     string   `json:"token" yaml:"token"`
	CreatedAt string   `json:"created_at" yaml:"created_at"`
}

type TenantStats struct {
	TranslateCount int64 `json:"translate_count" yaml:"translate_count"`
	CharCount      int64 `json:"char_count" yaml:"char_count"`
}

type Tenant struct {
	Token     string      `json:"token" yaml:"token"`
	ExpiresAt string      `json:"expires_at" yaml:"expires_at"`
	Groups    []string    `json:"groups" yaml:"groups"`
	Stats     TenantStats `json:"stats" yaml:"stats"`
	CreatedAt string      `json:"created_at" yaml:"created_at"`
}

// Data mirrors the top-level sections of the data file.
type Data struct {
	UserWhitelist       []string                 `json:"user_whitelist" yaml:"user_whitelist"`
	UserPrefs           map[string][]string      `json:"user_prefs" yaml:"user_prefs"`
	VoiceTranslation    map[string]any           `json:"voice_translation" yaml:"voice_translation"`
	GroupAdmin          map[string]string        `json:"group_admin" yaml:"group_admin"`
	TranslateEnginePref map[string]string        `json:"translate_engine_pref" yaml:"translate_engine_pref"`
	AutoTranslate       map[string]bool          `json:"auto_translate" yaml:"auto_translate"`
	FeatureSwitches     map[string]FeatureSwitch `json:"feature_switches" yaml:"feature_switches"`
	Tenants             map[string]Tenant        `json:"tenants" yaml:"tenants"`
}

func (d *Data) ensure() {
	if d.UserWhitelist == nil {
		d.UserWhitelist = []string{}
	}
	if d.UserPrefs == nil {
		d.UserPrefs = map[string][]string{}
	}
	if d.VoiceTranslation == nil {
		d.VoiceTranslation = map[string]any{}
	}
	if d.GroupAdmin == nil {
		d.GroupAdmin = map[string]string{}
	}
	if d.TranslateEnginePref == nil {
		d.TranslateEnginePref = map[string]string{}
	}
	if d.AutoTranslate == nil {
		d.AutoTranslate = map[string]bool{}
	}
	if d.FeatureSwitches == nil {
		d.FeatureSwitches = map[string]FeatureSwitch{}
	}
	if d.Tenants == nil {
		d.Tenants = map[string]Tenant{}
	}
}

type codec interface {
	marshal(d *Data) ([]byte, error)
	unmarshal(b []byte, d *Data) error
}

type jsonCodec struct{}

func (jsonCodec) marshal(d *Data) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (jsonCodec) unmarshal(b []byte, d *Data) error { return json.Unmarshal(b, d) }

type yamlCodec struct{}

func (yamlCodec) marshal(d *Data) ([]byte, error) { return yaml.Marshal(d) }

func (yamlCodec) unmarshal(b []byte, d *Data) error { return yaml.Unmarshal(b, d) }

func codecFor(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec{}
	default:
		return jsonCodec{}
	}
}

// Store holds the decoded file in memory. Reads see a consistent snapshot;
// writes replace the snapshot only after the file was written successfully.
type Store struct {
	mu    sync.RWMutex
	path  string
	codec codec
	data  *Data
	// digest is the hash of the bytes last written or loaded.
	digest [sha256.Size]byte
}

// Open loads path, creating an empty file when it does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, codec: codecFor(path)}

	data, digest, err := s.load()
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = &Data{}
		data.ensure()
		if err := s.write(data); err != nil {
			return nil, fmt.Errorf("failed to create data file: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		s.digest = digest
	}

	s.data = data
	zap.L().Info("[FileStore] ✅ Data file loaded", zap.String("path", path))
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Read runs fn against the current snapshot. fn must not retain or mutate d.
func (s *Store) Read(fn func(d *Data)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

// Update applies fn to a copy of the data and persists it. When fn or the
// write fails, the in-memory snapshot is left unchanged.
func (s *Store) Update(fn func(d *Data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.clone(s.data)
	if err != nil {
		return err
	}
	if err := fn(next); err != nil {
		return err
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

// Reload re-reads the file, picking up edits made outside the process. The
// read and the swap happen under the write lock, and a file whose content
// matches the last write or load is left alone.
func (s *Store) Reload() error {
	_, err := s.reload()
	return err
}

// reload reports whether the snapshot was replaced.
func (s *Store) reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, digest, err := s.load()
	if err != nil {
		return false, err
	}
	if digest == s.digest {
		return false, nil
	}
	s.data, s.digest = data, digest
	return true, nil
}

func (s *Store) load() (*Data, [sha256.Size]byte, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}

	digest := sha256.Sum256(b)
	var d Data
	if len(bytes.TrimSpace(b)) > 0 {
		if err := s.codec.unmarshal(b, &d); err != nil {
			return nil, digest, fmt.Errorf("failed to decode %s: %w", s.path, err)
		}
	}
	d.ensure()
	return &d, digest, nil
}

func (s *Store) clone(d *Data) (*Data, error) {
	b, err := s.codec.marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode data: %w", err)
	}
	var out Data
	if err := s.codec.unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	out.ensure()
	return &out, nil
}

func (s *Store) write(d *Data) error {
	b, err := s.codec.marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write data file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close data file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	s.digest = sha256.Sum256(b)
	return nil
}

// FormatTime renders timestamps the way the data file stores them.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime accepts RFC 3339 and the naive ISO-8601 timestamps written by
// older versions of the file.
func ParseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
