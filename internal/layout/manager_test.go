package layout

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/keyprefs/internal/storage"
)

// --- Mock store ---

type mockLayouts struct {
	mu      sync.Mutex
	layouts map[string]string
	saves   int
	saveErr error
	getErr  error

	// beforeSave runs ahead of every save, outside mu.
	beforeSave func()
}

func newMockLayouts() *mockLayouts {
	return &mockLayouts{layouts: make(map[string]string)}
}

func (m *mockLayouts) GetLayout(page string) (storage.Layout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return storage.Layout{}, m.getErr
	}
	c, ok := m.layouts[page]
	if !ok {
		return storage.Layout{}, storage.ErrNotFound
	}
	return storage.Layout{Page: page, Content: c}, nil
}

func (m *mockLayouts) SaveLayout(page, content string) error {
	if m.beforeSave != nil {
		m.beforeSave()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.layouts[page] = content
	return nil
}

func (m *mockLayouts) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// --- Tests ---

func TestActivate_OpensOnce(t *testing.T) {
	m := NewManager(SymbolsPage, newMockLayouts(), nil)
	assert.Equal(t, Idle, m.State())

	opened, err := m.Activate()
	require.NoError(t, err)
	assert.True(t, opened)
	assert.Equal(t, Pending, m.State())

	opened, err = m.Activate()
	require.NoError(t, err)
	assert.False(t, opened, "second activation must not open a new session")
}

func TestActivate_SeedsDraftFromCommitted(t *testing.T) {
	store := newMockLayouts()
	store.layouts[SymbolsPage] = "old"
	m := NewManager(SymbolsPage, store, nil)

	_, err := m.Activate()
	require.NoError(t, err)

	draft, ok := m.Draft()
	assert.True(t, ok)
	assert.Equal(t, "old", draft)
}

func TestActivate_StoreError(t *testing.T) {
	store := newMockLayouts()
	store.getErr = errors.New("disk I/O error")
	m := NewManager(SymbolsPage, store, nil)

	_, err := m.Activate()
	require.ErrorIs(t, err, store.getErr)
	assert.Equal(t, Idle, m.State())
}

// TestActivate_RepeatSkipsStore verifies re-activating an open session does
// not read the store, so a store fault cannot fail an ordinary re-resume.
func TestActivate_RepeatSkipsStore(t *testing.T) {
	store := newMockLayouts()
	m := NewManager(SymbolsPage, store, nil)

	_, err := m.Activate()
	require.NoError(t, err)
	require.NoError(t, m.Stage("edit"))

	store.mu.Lock()
	store.getErr = errors.New("disk gone")
	store.mu.Unlock()

	opened, err := m.Activate()
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, Pending, m.State())

	draft, ok := m.Draft()
	assert.True(t, ok)
	assert.Equal(t, "edit", draft)

	require.NoError(t, NewScreen(m).OnResume())
}

// TestActivate_WaitsForPreviousCommit opens a new session while the previous
// session's commit is still in flight. The new draft must be seeded from the
// content that commit wrote, so confirming it unedited keeps that content.
func TestActivate_WaitsForPreviousCommit(t *testing.T) {
	store := newMockLayouts()
	store.layouts[SymbolsPage] = "A"
	m := NewManager(SymbolsPage, store, nil)

	_, err := m.Activate()
	require.NoError(t, err)
	require.NoError(t, m.Stage("B"))

	entered := make(chan struct{})
	release := make(chan struct{})
	store.beforeSave = func() {
		close(entered)
		<-release
	}

	confirmed := make(chan error, 1)
	go func() { confirmed <- m.ConfirmPendingRestore() }()
	<-entered

	type result struct {
		opened bool
		err    error
	}
	activated := make(chan result, 1)
	go func() {
		opened, err := m.Activate()
		activated <- result{opened, err}
	}()

	// Give Activate a chance to run against the half-finished commit.
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-confirmed)
	res := <-activated
	require.NoError(t, res.err)
	require.True(t, res.opened)

	draft, ok := m.Draft()
	require.True(t, ok)
	assert.Equal(t, "B", draft)

	store.beforeSave = nil
	require.NoError(t, m.ConfirmPendingRestore())
	assert.Equal(t, "B", store.layouts[SymbolsPage])
}

func TestStage_RequiresSession(t *testing.T) {
	m := NewManager(SymbolsPage, newMockLayouts(), nil)

	assert.ErrorIs(t, m.Stage("x"), ErrNoSession)

	_, ok := m.Draft()
	assert.False(t, ok)
}

func TestConfirm_PersistsEdit(t *testing.T) {
	store := newMockLayouts()
	store.layouts[SymbolsPage] = "old"
	m := NewManager(SymbolsPage, store, nil)

	_, err := m.Activate()
	require.NoError(t, err)
	require.NoError(t, m.Stage("new"))
	require.NoError(t, m.ConfirmPendingRestore())

	assert.Equal(t, Idle, m.State())
	assert.Equal(t, "new", store.layouts[SymbolsPage])

	// Second resolution is a no-op.
	require.NoError(t, m.ConfirmPendingRestore())
	m.ClearPendingRestore()
	assert.Equal(t, 1, store.saveCount())
	assert.Equal(t, "new", store.layouts[SymbolsPage])
	assert.Equal(t, Idle, m.State())
}

func TestClear_KeepsPreviousLayout(t *testing.T) {
	store := newMockLayouts()
	store.layouts[SymbolsPage] = "old"
	m := NewManager(SymbolsPage, store, nil)

	_, err := m.Activate()
	require.NoError(t, err)
	require.NoError(t, m.Stage("new"))
	m.ClearPendingRestore()

	assert.Equal(t, Idle, m.State())
	assert.Equal(t, "old", store.layouts[SymbolsPage])
	assert.Equal(t, 0, store.saveCount())
}

func TestClearThenConfirm_DoesNotCommit(t *testing.T) {
	store := newMockLayouts()
	m := NewManager(SymbolsPage, store, nil)

	_, err := m.Activate()
	require.NoError(t, err)
	require.NoError(t, m.Stage("new"))

	m.ClearPendingRestore()
	require.NoError(t, m.ConfirmPendingRestore())

	assert.Equal(t, 0, store.saveCount())
	_, ok := store.layouts[SymbolsPage]
	assert.False(t, ok)
}

func TestResolveWithoutSession_NoOp(t *testing.T) {
	store := newMockLayouts()
	m := NewManager(SymbolsPage, store, nil)

	require.NoError(t, m.ConfirmPendingRestore())
	m.ClearPendingRestore()

	assert.Equal(t, Idle, m.State())
	assert.Equal(t, 0, store.saveCount())
}

func TestConfirm_SaveErrorSurfaces(t *testing.T) {
	store := newMockLayouts()
	store.saveErr = errors.New("database is locked")
	m := NewManager(SymbolsPage, store, nil)

	_, err := m.Activate()
	require.NoError(t, err)
	err = m.ConfirmPendingRestore()
	require.ErrorIs(t, err, store.saveErr)
	assert.Equal(t, Idle, m.State())
}

// TestConcurrentResolution races confirm and clear; exactly one must win.
func TestConcurrentResolution(t *testing.T) {
	for i := 0; i < 100; i++ {
		store := newMockLayouts()
		m := NewManager(SymbolsPage, store, nil)
		_, err := m.Activate()
		require.NoError(t, err)
		require.NoError(t, m.Stage("new"))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.ConfirmPendingRestore())
		}()
		go func() {
			defer wg.Done()
			m.ClearPendingRestore()
		}()
		wg.Wait()

		assert.LessOrEqual(t, store.saveCount(), 1)
		assert.Equal(t, Idle, m.State())
	}
}

func TestNewSessionAfterResolution(t *testing.T) {
	store := newMockLayouts()
	m := NewManager(SymbolsPage, store, nil)

	_, err := m.Activate()
	require.NoError(t, err)
	require.NoError(t, m.Stage("first"))
	require.NoError(t, m.ConfirmPendingRestore())

	opened, err := m.Activate()
	require.NoError(t, err)
	assert.True(t, opened)

	draft, _ := m.Draft()
	assert.Equal(t, "first", draft)
}

func TestManager_WithSQLite(t *testing.T) {
	s, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	m := NewManager(SymbolsPage, s, nil)

	committed, err := m.Committed()
	require.NoError(t, err)
	assert.Empty(t, committed)

	_, err = m.Activate()
	require.NoError(t, err)
	require.NoError(t, m.Stage(`["@","#","$"]`))
	require.NoError(t, m.ConfirmPendingRestore())

	committed, err = m.Committed()
	require.NoError(t, err)
	assert.Equal(t, `["@","#","$"]`, committed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "State(7)", State(7).String())
}
