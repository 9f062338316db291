package promotion

import (
	"context"
	"sync"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/school"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultDebounce = 300 * time.Millisecond
)

type Tab int

const (
	TabIndividual Tab = iota
	TabBulk
)

func (t Tab) String() string {
	if t == TabBulk {
		return "bulk"
	}
	return "individual"
}

type options struct {
	logger     core.Logger
	boundary   SessionBoundary
	timeout    time.Duration
	debounce   time.Duration
	noticeTTL  time.Duration
	validate   *validator.Validate
	translator ut.Translator
	observer   func(Phase)
}

type Option func(*options)

func WithLogger(logger core.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBoundary sets who is told about rejected credentials.
func WithBoundary(b SessionBoundary) Option {
	return func(o *options) { o.boundary = b }
}

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithDebounce delays validation and preview queries; a newer selection made
// during the delay supersedes the pending query before it is sent.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

func WithNoticeTTL(d time.Duration) Option {
	return func(o *options) { o.noticeTTL = d }
}

func WithValidator(validate *validator.Validate, translator ut.Translator) Option {
	return func(o *options) {
		o.validate = validate
		o.translator = translator
	}
}

// WithBulkObserver registers fn to be called with every bulk phase entered.
func WithBulkObserver(fn func(Phase)) Option {
	return func(o *options) { o.observer = fn }
}

// deps is what both promotion forms share.
type deps struct {
	backend    Backend
	catalog    *Catalog
	sessions   *SessionProvider
	roster     *Roster
	notices    *Notifier
	logger     core.Logger
	boundary   SessionBoundary
	timeout    time.Duration
	debounce   time.Duration
	validate   *validator.Validate
	translator ut.Translator
	wg         sync.WaitGroup
	surface    func(tab Tab, kind NoticeKind, msg string, details ...string)
}

func (d *deps) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.timeout)
}

func (d *deps) async(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

// escalate hands authentication errors over to the session boundary.
func (d *deps) escalate(err error) bool {
	if !IsUnauthenticated(err) {
		return false
	}
	d.logger.Warn("credential rejected by the school server", err)
	d.boundary.Unauthenticated(err)
	return true
}

// check runs the request rules against the class catalog and returns a *core.ValidationError.
func (d *deps) check(ctx context.Context, req interface{}) error {
	err := d.validate.StructCtx(WithLevelFinder(ctx, d.catalog), req)
	return core.TranslateValidationErrors(err, d.translator)
}

// refreshRoster re-queries the active roster filter after a state change.
func (d *deps) refreshRoster(ctx context.Context) {
	rctx, cancel := d.withTimeout(ctx)
	defer cancel()
	if _, err := d.roster.Refresh(rctx); err != nil && !errors.Is(err, context.Canceled) {
		if !d.escalate(err) {
			d.logger.Error("refreshing roster", err)
		}
	}
}

// Orchestrator ties the providers and both promotion forms together.
type Orchestrator struct {
	d          *deps
	individual *IndividualForm
	bulk       *BulkForm

	mu  sync.RWMutex
	tab Tab
}

func New(backend Backend, opts ...Option) *Orchestrator {
	o := options{
		logger:    core.NopLogger{},
		boundary:  nopBoundary{},
		timeout:   DefaultTimeout,
		debounce:  DefaultDebounce,
		noticeTTL: DefaultNoticeTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.validate == nil {
		o.validate, o.translator = core.NewValidator()
		InitValidators(o.validate, o.translator)
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}

	orc := &Orchestrator{}
	orc.d = &deps{
		backend:    backend,
		catalog:    NewCatalog(backend),
		sessions:   NewSessionProvider(backend),
		roster:     NewRoster(backend),
		notices:    NewNotifier(o.noticeTTL),
		logger:     o.logger,
		boundary:   o.boundary,
		timeout:    o.timeout,
		debounce:   o.debounce,
		validate:   o.validate,
		translator: o.translator,
		surface:    orc.surface,
	}
	orc.individual = newIndividualForm(orc.d)
	orc.bulk = newBulkForm(orc.d, o.observer)
	return orc
}

// Load fetches the current session, the class catalog and the full roster.
// A missing or unreadable session does not fail Load: submissions stay blocked instead.
func (o *Orchestrator) Load(ctx context.Context) error {
	sctx, cancel := o.d.withTimeout(ctx)
	session, err := o.d.sessions.Load(sctx)
	cancel()
	if err != nil {
		if o.d.escalate(err) {
			return err
		}
		o.d.logger.Error("loading current session", err)
	}
	if session == nil {
		o.d.logger.Warn(noSessionWarning)
	}

	cctx, cancel := o.d.withTimeout(ctx)
	_, err = o.d.catalog.Load(cctx)
	cancel()
	if err != nil {
		if !o.d.escalate(err) {
			o.d.logger.Error("loading class catalog", err)
		}
		return err
	}

	rctx, cancel := o.d.withTimeout(ctx)
	defer cancel()
	if _, err = o.d.roster.Query(rctx, school.StudentFilter{}); err != nil {
		if !o.d.escalate(err) {
			o.d.logger.Error("loading roster", err)
		}
		return err
	}
	return nil
}

// QueryRoster changes the active roster filter; it is the filter refreshed after every promotion.
func (o *Orchestrator) QueryRoster(ctx context.Context, filter school.StudentFilter) ([]school.Student, error) {
	rctx, cancel := o.d.withTimeout(ctx)
	defer cancel()
	students, err := o.d.roster.Query(rctx, filter)
	if err != nil {
		o.d.escalate(err)
	}
	return students, err
}

func (o *Orchestrator) SwitchTab(tab Tab) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tab = tab
}

func (o *Orchestrator) ActiveTab() Tab {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.tab
}

// SessionWarning is non-empty, and both forms refuse to submit, while no session is current.
func (o *Orchestrator) SessionWarning() string {
	return o.d.sessions.Warning()
}

func (o *Orchestrator) CanSubmit() bool {
	return o.d.sessions.Current() != nil
}

// Wait blocks until all in-flight validation and preview queries settled.
func (o *Orchestrator) Wait() {
	o.d.wg.Wait()
}

func (o *Orchestrator) Individual() *IndividualForm { return o.individual }
func (o *Orchestrator) Bulk() *BulkForm             { return o.bulk }
func (o *Orchestrator) Catalog() *Catalog           { return o.d.catalog }
func (o *Orchestrator) Sessions() *SessionProvider  { return o.d.sessions }
func (o *Orchestrator) Roster() *Roster             { return o.d.roster }
func (o *Orchestrator) Notices() *Notifier          { return o.d.notices }

// surface posts a notice for an operation started on tab, unless the operator navigated away.
func (o *Orchestrator) surface(tab Tab, kind NoticeKind, msg string, details ...string) {
	if o.ActiveTab() != tab {
		o.d.logger.Debug("notice not surfaced: tab inactive", map[string]interface{}{"tab": tab.String(), "message": msg})
		return
	}
	o.d.notices.Post(kind, msg, details...)
}
