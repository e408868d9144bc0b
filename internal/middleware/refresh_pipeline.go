package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinChart/internal/domain/models"
	domrepo "FinChart/internal/domain/repository"
	applogger "FinChart/pkg/logger"
	xutil "FinChart/pkg/util"
)

// Proc redraws everything that depends on a subject.
type Proc interface {
	Refresh(ctx context.Context, s models.Subject) error
}

// ProcFunc adapts a function to Proc.
type ProcFunc func(ctx context.Context, s models.Subject) error

func (f ProcFunc) Refresh(ctx context.Context, s models.Subject) error { return f(ctx, s) }

// RefreshPipeline sits between the candles.updated consumer and the chart
// refresh. It validates subjects, limits each subject to one refresh per
// interval and coalesces the updates in between into one trailing refresh.
// Failed refreshes are buffered and retried with backoff, at most maxRetries
// times in a row per subject.
type RefreshPipeline struct {
	proc       Proc
	metrics    domrepo.Metrics
	l          *applogger.Logger
	interval   time.Duration
	maxRetries int
	bufCh      chan models.Subject
	stopCh     chan struct{}
	started    bool

	mu      sync.Mutex
	lastRun map[models.Subject]time.Time
	pending map[models.Subject]struct{}
	now     func() time.Time
}

type PipelineOption func(*RefreshPipeline)

// WithInterval sets the minimum time between two refreshes of one subject.
func WithInterval(d time.Duration) PipelineOption {
	return func(p *RefreshPipeline) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithBufferSize sets how many failed refreshes are kept for retry.
func WithBufferSize(n int) PipelineOption {
	return func(p *RefreshPipeline) {
		if n > 0 {
			p.bufCh = make(chan models.Subject, n)
		}
	}
}

// WithMaxRetries bounds the consecutive retries of one failing subject.
func WithMaxRetries(n int) PipelineOption {
	return func(p *RefreshPipeline) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

func NewRefreshPipeline(proc Proc, metrics domrepo.Metrics, l *applogger.Logger, opts ...PipelineOption) *RefreshPipeline {
	p := &RefreshPipeline{
		proc:       proc,
		metrics:    metrics,
		l:          l,
		interval:   time.Second,
		maxRetries: 5,
		bufCh:      make(chan models.Subject, 256),
		lastRun:    make(map[models.Subject]time.Time),
		pending:    make(map[models.Subject]struct{}),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the background loop that flushes coalesced subjects and
// retries failed ones. A stopped pipeline can be started again.
func (p *RefreshPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	stop := make(chan struct{})
	p.stopCh = stop
	p.mu.Unlock()

	go p.loop(ctx, stop)
}

func (p *RefreshPipeline) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(max(p.interval/2, time.Millisecond))
	defer ticker.Stop()

	attempts := make(map[models.Subject]int)
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flushPending(ctx)
		case s := <-p.bufCh:
			err := p.proc.Refresh(ctx, s)
			if err == nil {
				delete(attempts, s)
				backoff = 50 * time.Millisecond
				continue
			}
			p.metrics.RecordError("pipeline_retry")
			attempts[s]++
			if attempts[s] >= p.maxRetries {
				delete(attempts, s)
				p.metrics.RecordError("pipeline_retry_exhausted")
				p.l.Warn("refresh given up",
					applogger.String("subject", s.String()),
					applogger.Int("attempts", p.maxRetries),
					applogger.Error(err),
				)
				continue
			}
			if backoff < 2*time.Second {
				backoff *= 2
			}
			select {
			case <-time.After(backoff):
			case <-stop:
				return
			}
			select {
			case p.bufCh <- s:
			default:
				p.metrics.RecordError("pipeline_buffer_drop")
				p.l.Warn("refresh dropped", applogger.String("subject", s.String()), applogger.Error(err))
			}
		}
	}
}

// Stop stops the background loop.
func (p *RefreshPipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
}

// Process refreshes s now, or marks it for a trailing refresh when s was
// refreshed less than one interval ago.
func (p *RefreshPipeline) Process(ctx context.Context, s models.Subject) error {
	start := p.now()
	if err := validateSubject(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	if !p.allow(s, start) {
		p.metrics.RecordError("pipeline_coalesced")
		return nil
	}
	return p.run(ctx, s, start)
}

func (p *RefreshPipeline) run(ctx context.Context, s models.Subject, start time.Time) error {
	if err := p.proc.Refresh(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- s:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline refresh %s: %w", s, err)
	}
	p.metrics.RecordLatency("pipeline_refresh", p.now().Sub(start).Seconds())
	return nil
}

func (p *RefreshPipeline) allow(s models.Subject, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if last, ok := p.lastRun[s]; ok && now.Sub(last) < p.interval {
		p.pending[s] = struct{}{}
		return false
	}
	p.lastRun[s] = now
	delete(p.pending, s)
	return true
}

// flushPending refreshes coalesced subjects whose interval has passed.
func (p *RefreshPipeline) flushPending(ctx context.Context) {
	now := p.now()

	p.mu.Lock()
	var due []models.Subject
	for s := range p.pending {
		if now.Sub(p.lastRun[s]) >= p.interval {
			due = append(due, s)
			p.lastRun[s] = now
			delete(p.pending, s)
		}
	}
	p.mu.Unlock()

	for _, s := range due {
		if err := p.run(ctx, s, now); err != nil {
			p.l.Warn("trailing refresh failed", applogger.String("subject", s.String()), applogger.Error(err))
		}
	}
}

// Pending returns how many subjects wait for a trailing refresh.
func (p *RefreshPipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func validateSubject(s models.Subject) error {
	if s.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if _, ok := xutil.TimeframeDuration(s.Timeframe); !ok {
		return fmt.Errorf("timeframe %q invalid", s.Timeframe)
	}
	return nil
}
