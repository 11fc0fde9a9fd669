package credstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatch_ReportsChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, err := NewFileStore(t.TempDir(), "https://api.sphere.example", "my-project")
	require.NoError(t, err)

	changes := make(chan struct{}, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, store.Path(), func() { changes <- struct{}{} }, WithDebounce(20*time.Millisecond))
	}()
	// Give the watcher a moment to register.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, store.StoreCredential(testCredential()))
	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported after store")
	}

	require.NoError(t, store.ClearCredential())
	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported after clear")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	watched, err := NewFileStore(dir, "https://api.sphere.example", "my-project")
	require.NoError(t, err)
	other, err := NewFileStore(dir, "https://api.sphere.example", "other-project")
	require.NoError(t, err)

	changes := make(chan struct{}, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, watched.Path(), func() { changes <- struct{}{} }, WithDebounce(10*time.Millisecond))
	}()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, other.StoreCredential(testCredential()))

	select {
	case <-changes:
		t.Fatal("change to another credential must not be reported")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing", "cred.json"), func() {})
	assert.Error(t, err)
}
