package promotion

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core/school"
)

const noSessionWarning = "No current academic session: promotions are disabled until one is activated."

// SessionProvider holds the academic session promotions are recorded against.
type SessionProvider struct {
	backend Backend

	mu      sync.RWMutex
	session *school.AcademicSession
	loaded  bool
}

func NewSessionProvider(backend Backend) *SessionProvider {
	return &SessionProvider{backend: backend}
}

// Load queries the current session. Any failure leaves the provider without a session,
// the error is returned so that the caller can log or escalate it.
func (p *SessionProvider) Load(ctx context.Context) (*school.AcademicSession, error) {
	session, err := p.backend.GetCurrentSession(ctx)
	if err != nil {
		session = nil
		err = errors.Wrap(err, "getting current session")
	} else if session != nil && session.Status == school.SessionClosed {
		// a closed session cannot take promotions
		session = nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = session
	p.loaded = true
	return p.copySession(), err
}

// Current returns the last loaded session or nil.
func (p *SessionProvider) Current() *school.AcademicSession {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.copySession()
}

// Warning is the persistent blocking warning shown while no session is current.
func (p *SessionProvider) Warning() string {
	if p.Current() == nil {
		return noSessionWarning
	}
	return ""
}

func (p *SessionProvider) require() (school.AcademicSession, error) {
	s := p.Current()
	if s == nil {
		return school.AcademicSession{}, ErrNoCurrentSession
	}
	return *s, nil
}

func (p *SessionProvider) copySession() *school.AcademicSession {
	if p.session == nil {
		return nil
	}
	s := *p.session
	return &s
}
