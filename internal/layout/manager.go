// Package layout guards in-progress keyboard page customizations. A session
// opens when the customization screen becomes active and is resolved exactly
// once: confirmed (the draft becomes the persisted layout) or cleared (the
// draft is dropped).
package layout

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kalambet/keyprefs/internal/logging"
	"github.com/kalambet/keyprefs/internal/storage"
)

// SymbolsPage is the only customizable page today.
const SymbolsPage = "symbols"

// ErrNoSession is returned when a draft is staged while no session is pending.
var ErrNoSession = errors.New("no pending customization session")

// State of a page's pending-restore flag.
type State int32

const (
	Idle State = iota
	Pending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// LayoutStore persists committed layouts. Implemented by storage.Store.
type LayoutStore interface {
	GetLayout(page string) (storage.Layout, error)
	SaveLayout(page, content string) error
}

// Manager tracks the pending-restore flag for one page.
type Manager struct {
	page  string
	store LayoutStore
	log   *zap.Logger

	state atomic.Int32

	mu        sync.Mutex
	draft     string
	sessionID string
}

// NewManager creates a Manager for page. log may be nil.
func NewManager(page string, store LayoutStore, log *zap.Logger) *Manager {
	return &Manager{
		page:  page,
		store: store,
		log:   logging.OrNop(log).With(zap.String("page", page)),
	}
}

// State returns the current flag state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Activate opens a session if none is pending and seeds the draft from the
// persisted layout. It reports whether a new session was opened; repeated
// activations of an open session are no-ops and do not touch the store.
func (m *Manager) Activate() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.CompareAndSwap(int32(Idle), int32(Pending)) {
		return false, nil
	}

	// Seeding under mu orders this read after any commit of the previous session.
	current, err := m.Committed()
	if err != nil {
		m.state.Store(int32(Idle))
		return false, err
	}
	m.draft = current
	m.sessionID = uuid.NewString()
	m.log.Debug("customization session opened", zap.String("session", m.sessionID))
	return true, nil
}

// Committed returns the persisted layout content, or "" if none was ever committed.
func (m *Manager) Committed() (string, error) {
	l, err := m.store.GetLayout(m.page)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading %s layout: %w", m.page, err)
	}
	return l.Content, nil
}

// Stage replaces the in-progress draft.
func (m *Manager) Stage(content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.State() != Pending {
		return ErrNoSession
	}
	m.draft = content
	return nil
}

// Draft returns the in-progress draft and whether a session is pending.
func (m *Manager) Draft() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.State() != Pending {
		return "", false
	}
	return m.draft, true
}

// ConfirmPendingRestore resolves the pending session by committing the draft.
// It is a no-op if no session is pending, including when the session was
// already cleared.
func (m *Manager) ConfirmPendingRestore() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, session, ok := m.resolveLocked()
	if !ok {
		return nil
	}
	if err := m.store.SaveLayout(m.page, draft); err != nil {
		m.log.Error("committing layout failed; draft lost",
			zap.String("session", session), zap.Error(err))
		return fmt.Errorf("committing %s layout: %w", m.page, err)
	}
	m.log.Debug("customization session confirmed", zap.String("session", session))
	return nil
}

// ClearPendingRestore resolves the pending session by discarding the draft.
// The persisted layout is left as it was before the session opened.
func (m *Manager) ClearPendingRestore() {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, session, ok := m.resolveLocked()
	if !ok {
		return
	}
	m.log.Debug("customization session cleared", zap.String("session", session))
}

// resolveLocked moves Pending to Idle and hands back the draft. Only the
// first caller for a session gets ok == true. m.mu must be held.
func (m *Manager) resolveLocked() (draft, session string, ok bool) {
	if !m.state.CompareAndSwap(int32(Pending), int32(Idle)) {
		return "", "", false
	}
	draft, session = m.draft, m.sessionID
	m.draft, m.sessionID = "", ""
	return draft, session, true
}
