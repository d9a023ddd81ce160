package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/pano360/internal/domain/clip"
	"github.com/osa030/pano360/internal/domain/playlist"
)

type fakeTarget struct {
	mu      sync.Mutex
	names   []string
	reject  error
	running chan struct{} // Closed when the active run ends
}

func (f *fakeTarget) SetPlaylist(pl *playlist.Playlist) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject != nil {
		return f.reject
	}
	f.names = append(f.names, pl.Name)
	return nil
}

func (f *fakeTarget) Wait(ctx context.Context) error {
	f.mu.Lock()
	running := f.running
	f.mu.Unlock()
	if running == nil {
		return nil
	}
	select {
	case <-running:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// endRun lets SetPlaylist succeed again.
func (f *fakeTarget) endRun() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reject = nil
	if f.running != nil {
		close(f.running)
	}
}

func (f *fakeTarget) got() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.names...)
}

// lineLoader names the playlist after the first line of the file.
func lineLoader(path string) (*playlist.Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
	if name == "" {
		return nil, errors.New("empty file")
	}
	return playlist.New(name, []clip.Clip{{ID: "c0", Source: "c0.mp4"}}), nil
}

func startWatcher(t *testing.T, target Target, results chan error) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("initial\n"), 0o644))

	w, err := New(path, target, lineLoader,
		WithDebounce(20*time.Millisecond),
		WithRetryInterval(10*time.Millisecond),
		WithReloadHook(func(err error) { results <- err }),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return path
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	target := &fakeTarget{}
	results := make(chan error, 10)
	path := startWatcher(t, target, results)

	require.NoError(t, os.WriteFile(path, []byte("updated\n"), 0o644))

	select {
	case err := <-results:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reload not triggered")
	}
	assert.Equal(t, []string{"updated"}, target.got())
}

func TestWatcher_RejectedWhilePlaying(t *testing.T) {
	target := &fakeTarget{reject: errors.New("a run is already active"), running: make(chan struct{})}
	results := make(chan error, 10)
	path := startWatcher(t, target, results)

	require.NoError(t, os.WriteFile(path, []byte("updated\n"), 0o644))

	select {
	case err := <-results:
		assert.ErrorContains(t, err, "playlist rejected")
	case <-time.After(5 * time.Second):
		t.Fatal("reload not triggered")
	}
	assert.Empty(t, target.got())
}

func TestWatcher_AppliesRejectedPlaylistAfterRun(t *testing.T) {
	target := &fakeTarget{reject: errors.New("a run is already active"), running: make(chan struct{})}
	results := make(chan error, 10)
	path := startWatcher(t, target, results)

	require.NoError(t, os.WriteFile(path, []byte("updated\n"), 0o644))

	select {
	case err := <-results:
		require.ErrorContains(t, err, "playlist rejected")
	case <-time.After(5 * time.Second):
		t.Fatal("reload not triggered")
	}

	deadline := time.After(100 * time.Millisecond)
	for active := true; active; {
		select {
		case err := <-results:
			require.Error(t, err, "playlist applied while the run is active")
		case <-deadline:
			active = false
		}
	}
	assert.Empty(t, target.got())

	target.endRun()
	select {
	case err := <-results:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("rejected playlist not applied after the run ended")
	}
	assert.Equal(t, []string{"updated"}, target.got())
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	target := &fakeTarget{}
	results := make(chan error, 10)
	path := startWatcher(t, target, results)

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("other\n"), 0o644))

	select {
	case err := <-results:
		t.Fatalf("unexpected reload: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Empty(t, target.got())
}
