package layout

import "sync/atomic"

// Resolver is the two-method interface lifecycle events are fed into.
// Implemented by Manager.
type Resolver interface {
	ConfirmPendingRestore() error
	ClearPendingRestore()
}

// Session is a Resolver that can also be opened.
type Session interface {
	Resolver
	Activate() (bool, error)
}

// Screen translates host lifecycle callbacks of a customization screen into
// session transitions. Leaving through the exit affordance confirms; being
// torn down without finishing clears.
type Screen struct {
	session   Session
	finishing atomic.Bool
}

func NewScreen(s Session) *Screen {
	return &Screen{session: s}
}

// OnResume is called whenever the screen becomes active.
func (s *Screen) OnResume() error {
	opened, err := s.session.Activate()
	if err != nil {
		return err
	}
	if opened {
		s.finishing.Store(false)
	}
	return nil
}

// OnBack is called when the user leaves through the exit affordance.
func (s *Screen) OnBack() error {
	s.finishing.Store(true)
	return s.session.ConfirmPendingRestore()
}

// OnDestroy is called when the host tears the screen down. isFinishing is
// the host's own view of whether the screen is closing normally.
func (s *Screen) OnDestroy(isFinishing bool) error {
	if s.finishing.Load() {
		return nil
	}
	if isFinishing {
		s.finishing.Store(true)
		return s.session.ConfirmPendingRestore()
	}
	s.session.ClearPendingRestore()
	return nil
}
