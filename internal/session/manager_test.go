package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/gestureboard/internal/detector"
)

func TestManager_CreateGetRemove(t *testing.T) {
	m := NewManager(testOptions())
	defer m.Close()

	a, err := m.Create()
	require.NoError(t, err)
	b, err := m.Create()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotEqual(t, a.GameID(), b.GameID())
	assert.Equal(t, 2, m.Len())

	got, ok := m.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)

	infos := m.List()
	require.Len(t, infos, 2)
	assert.Equal(t, a.ID(), infos[0].ID)
	assert.Equal(t, 0, infos[0].Clients)
	assert.False(t, infos[0].CameraActive)

	require.NoError(t, m.Remove(a.ID()))
	_, ok = m.Get(a.ID())
	assert.False(t, ok)
	assert.ErrorIs(t, m.Remove(a.ID()), ErrNotFound)
}

func TestManager_Default(t *testing.T) {
	m := NewManager(testOptions())
	defer m.Close()

	s1, err := m.Default()
	require.NoError(t, err)
	s2, err := m.Default()
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Equal(t, DefaultID, s1.ID())
	assert.Equal(t, 1, m.Len())
}

func TestManager_DetectorError(t *testing.T) {
	opts := testOptions()
	want := errors.New("no detector")
	opts.NewDetector = func() (detector.Detector, error) { return nil, want }
	m := NewManager(opts)
	defer m.Close()

	_, err := m.Create()
	assert.ErrorIs(t, err, want)
	assert.Zero(t, m.Len())
}

func TestManager_Cleanup(t *testing.T) {
	m := NewManager(testOptions())
	defer m.Close()

	idle, err := m.Create()
	require.NoError(t, err)
	busy, err := m.Create()
	require.NoError(t, err)
	busy.AddClient(newFakeClient("c1"))
	_, err = m.Default()
	require.NoError(t, err)

	assert.Empty(t, m.Cleanup(time.Now()))

	removed := m.Cleanup(time.Now().Add(2 * time.Minute))
	assert.Equal(t, []string{idle.ID()}, removed)

	_, ok := m.Get(busy.ID())
	assert.True(t, ok)
	_, ok = m.Get(DefaultID)
	assert.True(t, ok)
}

func TestManager_CleanupDisabled(t *testing.T) {
	opts := testOptions()
	opts.IdleTimeout = 0
	m := NewManager(opts)
	defer m.Close()

	_, err := m.Create()
	require.NoError(t, err)
	assert.Empty(t, m.Cleanup(time.Now().Add(24*time.Hour)))
}

func TestManager_Run(t *testing.T) {
	opts := testOptions()
	opts.IdleTimeout = 20 * time.Millisecond
	m := NewManager(opts)
	defer m.Close()

	_, err := m.Create()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestManager_SetEnabled(t *testing.T) {
	m := NewManager(testOptions())
	defer m.Close()

	assert.True(t, m.Enabled())
	m.SetEnabled(false)
	assert.False(t, m.Enabled())
	m.SetEnabled(true)
	assert.True(t, m.Enabled())
}

func TestManager_Close(t *testing.T) {
	mock := detector.NewMockDetector()
	opts := testOptions()
	opts.NewDetector = func() (detector.Detector, error) { return mock, nil }
	m := NewManager(opts)

	_, err := m.Create()
	require.NoError(t, err)
	require.NoError(t, m.Close())

	assert.True(t, mock.Closed())
	assert.Zero(t, m.Len())
	_, err = m.Create()
	assert.Error(t, err)
}
