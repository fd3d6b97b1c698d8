// Package approval watches a submitted template until the provider decides on
// it, and creates the follow-up flow once it is approved.
package approval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"whatsapp-template-studio/internal/metrics"
	"whatsapp-template-studio/internal/submission"
)

var ErrFlowCreationFailed = errors.New("template approved but flow creation failed")

// Status is the provider review state of a template.
type Status string

const (
	Pending  Status = "PENDING"
	Approved Status = "APPROVED"
	Rejected Status = "REJECTED"
)

// ParseStatus maps a provider status string. Anything that is not a decision
// (PAUSED, IN_APPEAL, ...) counts as still pending.
func ParseStatus(s string) Status {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case Approved:
		return Approved
	case Rejected:
		return Rejected
	default:
		return Pending
	}
}

func (s Status) Terminal() bool {
	return s == Approved || s == Rejected
}

// SuggestedFlow is the flow outline produced during analysis.
type SuggestedFlow struct {
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
}

// FlowRequest is sent once when a template is approved.
type FlowRequest struct {
	TemplateName         string        `json:"template_name"`
	OriginalRequirements string        `json:"original_requirements"`
	SuggestedFlow        SuggestedFlow `json:"suggested_flow"`
}

type StatusChecker interface {
	CheckStatus(ctx context.Context, templateName string) (Status, error)
}

type FlowCreator interface {
	CreateFlow(ctx context.Context, req FlowRequest) (string, error)
}

// EventKind names what a Poller reports to its Listener.
type EventKind string

const (
	EventStatusChecked EventKind = "status_checked"
	EventCheckFailed   EventKind = "check_failed"
	EventStatusChanged EventKind = "status_changed"
	EventFlowCreated   EventKind = "flow_created"
	EventFlowFailed    EventKind = "flow_failed"
)

type Event struct {
	Kind   EventKind
	Record submission.Record
	Status Status
	FlowID string
	Err    error
}

// Listener is called from the poller goroutine. It must not call Stop.
type Listener func(Event)

type Config struct {
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: 10 * time.Second}
}

// Poller checks the status of one submission on a fixed cadence. There is no
// timeout while the template stays pending; the owner stops it.
type Poller struct {
	config   Config
	record   submission.Record
	request  FlowRequest
	checker  StatusChecker
	flows    FlowCreator
	listener Listener
	logger   *zap.Logger

	mu      sync.Mutex
	status  Status
	flowID  string
	flowErr error
	started bool
	stopped bool

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewPoller prepares a poller in PENDING. flows may be nil when no flow should
// follow approval.
func NewPoller(config Config, record submission.Record, request FlowRequest, checker StatusChecker, flows FlowCreator, listener Listener, logger *zap.Logger) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if request.TemplateName == "" {
		request.TemplateName = record.TemplateName
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		config:   config,
		record:   record,
		request:  request,
		checker:  checker,
		flows:    flows,
		listener: listener,
		logger:   logger.Named("poller").With(zap.String("template_name", record.TemplateName)),
		status:   Pending,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start launches the polling goroutine. The first check happens one interval
// after Start. Calling Start twice, or after Stop, does nothing.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	metrics.ActivePollers.Inc()
	go p.run()
}

// Stop cancels polling and waits for the goroutine to exit. Safe to call
// more than once and from any goroutine except the Listener.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		started := p.started
		p.mu.Unlock()

		p.cancel()
		if started {
			<-p.done
		} else {
			close(p.done)
		}
	})
}

// Done is closed once the poller will make no further calls.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) Record() submission.Record {
	return p.record
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Flow returns the created flow id, or the flow creation error.
func (p *Poller) Flow() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flowID, p.flowErr
}

func (p *Poller) run() {
	defer close(p.done)
	defer metrics.ActivePollers.Dec()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.logger.Info("polling template status", zap.Duration("interval", p.config.Interval))

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("poller stopped")
			return
		case <-ticker.C:
			if p.check() {
				return
			}
		}
	}
}

// check runs one status check and reports whether polling is over.
func (p *Poller) check() bool {
	status, err := p.checker.CheckStatus(p.ctx, p.record.TemplateName)
	if p.ctx.Err() != nil {
		return true
	}
	if err != nil {
		metrics.StatusChecks.WithLabelValues("error").Inc()
		p.logger.Warn("status check failed", zap.Error(err))
		p.emit(Event{Kind: EventCheckFailed, Status: p.Status(), Err: err})
		return false
	}
	metrics.StatusChecks.WithLabelValues(string(status)).Inc()

	p.mu.Lock()
	changed := p.status != status
	p.status = status
	p.mu.Unlock()

	p.emit(Event{Kind: EventStatusChecked, Status: status})
	if changed {
		p.logger.Info("template status changed", zap.String("status", string(status)))
		p.emit(Event{Kind: EventStatusChanged, Status: status})
	}

	switch status {
	case Approved:
		p.createFlow()
		return true
	case Rejected:
		return true
	default:
		return false
	}
}

func (p *Poller) createFlow() {
	if p.flows == nil {
		return
	}
	// Stop may have landed while the listener handled the status events.
	if p.ctx.Err() != nil {
		p.logger.Debug("poller stopped before flow creation")
		return
	}
	flowID, err := p.flows.CreateFlow(p.ctx, p.request)
	if err != nil && p.ctx.Err() != nil {
		p.logger.Debug("flow creation cancelled", zap.Error(err))
		return
	}
	if err != nil {
		err = errors.Join(ErrFlowCreationFailed, err)
		metrics.FlowCreations.WithLabelValues("failed").Inc()
		p.logger.Error("flow creation failed", zap.Error(err))

		p.mu.Lock()
		p.flowErr = err
		p.mu.Unlock()
		p.emit(Event{Kind: EventFlowFailed, Status: Approved, Err: err})
		return
	}

	metrics.FlowCreations.WithLabelValues("created").Inc()
	p.logger.Info("flow created", zap.String("flow_id", flowID))

	p.mu.Lock()
	p.flowID = flowID
	p.mu.Unlock()
	p.emit(Event{Kind: EventFlowCreated, Status: Approved, FlowID: flowID})
}

func (p *Poller) emit(e Event) {
	if p.listener == nil {
		return
	}
	e.Record = p.record
	p.listener(e)
}
