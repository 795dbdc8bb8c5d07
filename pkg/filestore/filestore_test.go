package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestOpenCreatesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")

	s, err := Open(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)

	s.Read(func(d *Data) {
		require.NotNil(t, d.UserPrefs)
		require.NotNil(t, d.Tenants)
		require.Empty(t, d.UserWhitelist)
	})
}

func TestUpdatePersistsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Update(func(d *Data) error {
		d.UserPrefs["G1"] = []string{"en", "ja"}
		d.TranslateEnginePref["G1"] = "deepl"
		return nil
	}))

	reopened, err := Open(path)
	require.NoError(t, err)
	reopened.Read(func(d *Data) {
		require.Equal(t, []string{"en", "ja"}, d.UserPrefs["G1"])
		require.Equal(t, "deepl", d.TranslateEnginePref["G1"])
	})
}

func TestUpdatePersistsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Update(func(d *Data) error {
		d.Tenants["owner"] = Tenant{Token: "tok", Groups: []string{"G1"}, Stats: TenantStats{TranslateCount: 2}}
		return nil
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "translate_count: 2")

	reopened, err := Open(path)
	require.NoError(t, err)
	reopened.Read(func(d *Data) {
		require.Equal(t, []string{"G1"}, d.Tenants["owner"].Groups)
	})
}

func TestFailedUpdateLeavesSnapshot(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Update(func(d *Data) error {
		d.GroupAdmin["G1"] = "U1"
		return boom
	})
	require.ErrorIs(t, err, boom)

	s.Read(func(d *Data) {
		_, ok := d.GroupAdmin["G1"]
		require.False(t, ok)
	})
}

func TestWriteFailureIsReported(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "data.json"))
	require.NoError(t, err)

	s.path = filepath.Join(dir, "missing", "data.json")
	err = s.Update(func(d *Data) error {
		d.UserPrefs["G1"] = []string{"en"}
		return nil
	})
	require.Error(t, err)

	s.Read(func(d *Data) {
		_, ok := d.UserPrefs["G1"]
		require.False(t, ok)
	})
}

func TestReloadPicksUpExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"user_whitelist":["U9"],"auto_translate":{"G1":false}}`), 0o600))
	require.NoError(t, s.Reload())

	s.Read(func(d *Data) {
		require.Equal(t, []string{"U9"}, d.UserWhitelist)
		require.False(t, d.AutoTranslate["G1"])
		require.NotNil(t, d.UserPrefs)
	})
}

func TestReloadSkipsOwnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Update(func(d *Data) error {
		d.GroupAdmin["G1"] = "U1"
		return nil
	}))
	changed, err := s.reload()
	require.NoError(t, err)
	require.False(t, changed)

	require.NoError(t, os.WriteFile(path, []byte(`{"group_admin":{"G1":"U2"}}`), 0o600))
	changed, err = s.reload()
	require.NoError(t, err)
	require.True(t, changed)
	s.Read(func(d *Data) {
		require.Equal(t, "U2", d.GroupAdmin["G1"])
	})
}

func TestConcurrentUpdatesSurviveWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s, err := Open(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx)
	time.Sleep(50 * time.Millisecond)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("G%d-%d", w, i)
				require.NoError(t, s.Update(func(d *Data) error {
					d.GroupAdmin[key] = "U1"
					return nil
				}))
			}
		}()
	}
	wg.Wait()

	// Let the watcher drain the events raised by the writes above.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, s.Update(func(d *Data) error {
		d.GroupAdmin["final"] = "U1"
		return nil
	}))
	time.Sleep(100 * time.Millisecond)

	s.Read(func(d *Data) {
		require.Len(t, d.GroupAdmin, workers*perWorker+1)
	})
	reopened, err := Open(path)
	require.NoError(t, err)
	reopened.Read(func(d *Data) {
		require.Len(t, d.GroupAdmin, workers*perWorker+1)
	})
}

func TestParseTimeLegacyFormats(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	got, err := ParseTime("2024-03-01T12:30:00Z")
	require.NoError(t, err)
	require.True(t, want.Equal(got))

	got, err = ParseTime("2024-03-01T12:30:00.000000")
	require.NoError(t, err)
	require.True(t, want.Equal(got))

	got, err = ParseTime(FormatTime(want))
	require.NoError(t, err)
	require.True(t, want.Equal(got))

	_, err = ParseTime("yesterday")
	require.Error(t, err)
}
