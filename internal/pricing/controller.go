// Package pricing drives one pricing-form submission at a time: it validates
// the form, calls the prediction service, animates a cosmetic progress value
// while the call is outstanding, and holds the result or failure for display.
package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/priceoptima/internal/form"
	"github.com/sells-group/priceoptima/pkg/optima"
)

// Options tunes the progress animation and the minimum loading time.
type Options struct {
	TickInterval time.Duration
	TickStep     int
	TickCeiling  int // must be < 100
	MinDisplay   time.Duration
}

// DefaultOptions mirrors the web form: +10 every 300ms up to 90, and the
// loading view stays up for at least 3s.
func DefaultOptions() Options {
	return Options{
		TickInterval: 300 * time.Millisecond,
		TickStep:     10,
		TickCeiling:  90,
		MinDisplay:   3 * time.Second,
	}
}

// Controller owns the submission state machine. All methods are safe for
// concurrent use. Observers must not call Submit or Dismiss.
type Controller struct {
	form   *form.State
	client optima.Client
	opts   Options

	mu         sync.Mutex
	status     Status
	progress   int
	result     *optima.PriceResponse
	alert      string
	current    string
	stopTicker context.CancelFunc

	pubMu     sync.Mutex
	observers []func(Snapshot)

	tickLog rate.Sometimes
}

// New creates an idle controller reading from f and sending through client.
func New(f *form.State, client optima.Client, opts Options) *Controller {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultOptions().TickInterval
	}
	if opts.TickStep <= 0 {
		opts.TickStep = DefaultOptions().TickStep
	}
	if opts.TickCeiling >= 100 {
		opts.TickCeiling = 99
	}
	return &Controller{
		form:    f,
		client:  client,
		opts:    opts,
		status:  StatusIdle,
		tickLog: rate.Sometimes{Interval: time.Second},
	}
}

// OnChange registers fn to receive a snapshot after every state change.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	c.observers = append(c.observers, fn)
}

// Snapshot returns the current renderable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SubmissionID: c.current,
		Status:       c.status,
		Progress:     c.progress,
		Result:       c.result,
		Alert:        c.alert,
		Errors:       c.form.Errors(),
	}
}

// CanSubmit reports whether the submit trigger is enabled.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status != StatusSubmitting
}

// Dismiss acknowledges a finished submission and returns to idle. It is a
// no-op while idle or submitting.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	if c.status != StatusSucceeded && c.status != StatusFailed {
		c.mu.Unlock()
		return
	}
	c.status = StatusIdle
	c.alert = ""
	c.result = nil
	c.progress = 0
	c.mu.Unlock()
	c.publish()
}

// Submit runs one submission and blocks until it resolves.
//
// It returns ErrInFlight if a submission is already outstanding,
// *InvalidError if validation failed (no request is made), or an
// *optima.TransportError if the request/response cycle failed.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusSubmitting {
		c.mu.Unlock()
		return ErrInFlight
	}

	values := c.form.Values()
	errs := form.Validate(values)
	c.form.SetErrors(errs)
	if len(errs) > 0 {
		c.mu.Unlock()
		c.publish()
		return &InvalidError{Errors: errs}
	}

	payload, err := form.Payload(values)
	if err != nil {
		c.mu.Unlock()
		return eris.Wrap(err, "pricing: build payload")
	}

	// A finished submission has already joined its ticker; cancelling again
	// is harmless.
	if c.stopTicker != nil {
		c.stopTicker()
	}
	id := uuid.NewString()
	tickCtx, stopTick := context.WithCancel(ctx)
	c.current = id
	c.status = StatusSubmitting
	c.result = nil
	c.alert = ""
	c.progress = 0
	c.stopTicker = stopTick
	c.mu.Unlock()

	start := time.Now()
	log := zap.L().With(zap.String("submission_id", id))
	log.Info("pricing: submission started",
		zap.Float64("price", payload.Price),
		zap.Int64("stock_level", payload.StockLevel),
		zap.Int("day_of_week", payload.DayOfWeek),
		zap.Int("is_weekend", payload.IsWeekend),
		zap.Int("month", payload.Month),
	)
	c.publish()

	var resp *optima.PriceResponse
	var g errgroup.Group
	g.Go(func() error {
		c.runTicker(tickCtx, id)
		return nil
	})
	g.Go(func() error {
		defer stopTick()
		r, reqErr := c.client.PredictPrice(ctx, payload)
		if reqErr != nil {
			return reqErr
		}
		resp = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return c.fail(log, id, err)
	}
	if resp == nil {
		return c.fail(log, id, optima.NewTransportError(optima.ReasonDecode, 0, eris.New("pricing: empty response")))
	}

	c.mu.Lock()
	c.progress = 100
	c.mu.Unlock()
	c.publish()

	if remaining := c.opts.MinDisplay - time.Since(start); remaining > 0 {
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return c.fail(log, id, optima.NewTransportError(optima.ReasonCanceled, 0,
				eris.Wrap(ctx.Err(), "pricing: canceled while displaying progress")))
		case <-timer.C:
		}
	}

	c.mu.Lock()
	c.result = resp
	c.status = StatusSucceeded
	c.mu.Unlock()

	log.Info("pricing: submission succeeded",
		zap.Bool("complete", resp.Complete()),
		zap.Float64("predicted_demand", resp.PredictedDemand),
		zap.Float64("recommended_price", resp.RecommendedPrice),
		zap.Duration("elapsed", time.Since(start)),
	)
	c.publish()
	return nil
}

// fail moves submission id to failed and raises the alert. Any error is
// reported as a TransportError.
func (c *Controller) fail(log *zap.Logger, id string, err error) error {
	te, ok := optima.AsTransport(err)
	if !ok {
		te = optima.NewTransportError(optima.ReasonConnect, 0, err)
	}

	c.mu.Lock()
	if c.stopTicker != nil {
		c.stopTicker()
	}
	if c.current == id {
		c.status = StatusFailed
		c.alert = AlertMessage
		c.result = nil
	}
	c.mu.Unlock()

	log.Warn("pricing: submission failed",
		zap.String("reason", string(te.Reason)),
		zap.Int("status_code", te.StatusCode),
		zap.Error(err),
	)
	c.publish()
	return te
}

// publish delivers one snapshot to every observer. Holding pubMu while
// snapshotting keeps deliveries in state order.
func (c *Controller) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if len(c.observers) == 0 {
		return
	}
	snap := c.Snapshot()
	for _, fn := range c.observers {
		fn(snap)
	}
}
