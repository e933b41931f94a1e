package pricing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/priceoptima/internal/form"
	"github.com/sells-group/priceoptima/internal/model"
	"github.com/sells-group/priceoptima/pkg/optima"
)

func testOptions() Options {
	return Options{
		TickInterval: 5 * time.Millisecond,
		TickStep:     10,
		TickCeiling:  90,
		MinDisplay:   80 * time.Millisecond,
	}
}

func filledForm(t *testing.T) *form.State {
	t.Helper()
	f := form.NewState()
	require.NoError(t, f.Fill(model.Values{
		model.FieldPrice:      "49.99",
		model.FieldStockLevel: "1200",
		model.FieldDayOfWeek:  "6",
		model.FieldIsWeekend:  "1",
		model.FieldMonth:      "12",
	}))
	return f
}

// fakeClient answers with resp/err, optionally blocking until release closes.
type fakeClient struct {
	calls   atomic.Int32
	release chan struct{}
	resp    *optima.PriceResponse
	err     error

	mu  sync.Mutex
	got []optima.PriceRequest
}

func (f *fakeClient) PredictPrice(ctx context.Context, req optima.PriceRequest) (*optima.PriceResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.got = append(f.got, req)
	f.mu.Unlock()

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

func okResponse(t *testing.T) *optima.PriceResponse {
	t.Helper()
	r, err := optima.ParseResponse([]byte(`{"predicted_demand":340,"recommended_price":54.5}`))
	require.NoError(t, err)
	return r
}

// recorder collects every published snapshot.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func TestSubmit_SuccessOverHTTP(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"price":49.99,"stock_level":1200,"day_of_week":6,"is_weekend":1,"month":12}`, string(body))
		w.Write([]byte(`{"predicted_demand":340,"recommended_price":54.5}`))
	}))
	defer srv.Close()

	opts := testOptions()
	c := New(filledForm(t), optima.NewClient(srv.URL+"/predict-price"), opts)

	start := time.Now()
	require.NoError(t, c.Submit(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, opts.MinDisplay)
	assert.Equal(t, int32(1), hits.Load())

	snap := c.Snapshot()
	assert.Equal(t, StatusSucceeded, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	assert.Empty(t, snap.Alert)
	assert.False(t, snap.Loading())
	require.True(t, snap.ShowResult())
	assert.True(t, snap.Result.Complete())
	assert.InDelta(t, 340, snap.Result.PredictedDemand, 1e-9)
	assert.InDelta(t, 54.5, snap.Result.RecommendedPrice, 1e-9)
	assert.NotEmpty(t, snap.SubmissionID)
	assert.True(t, c.CanSubmit())
}

func TestSubmit_InvalidSkipsNetwork(t *testing.T) {
	t.Parallel()

	f := filledForm(t)
	require.NoError(t, f.SetField(model.FieldPrice, "0"))
	require.NoError(t, f.SetField(model.FieldMonth, "13"))

	client := &fakeClient{resp: okResponse(t)}
	c := New(f, client, testOptions())
	rec := &recorder{}
	c.OnChange(rec.observe)

	err := c.Submit(context.Background())

	var inv *InvalidError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, model.Errors{
		model.FieldPrice: form.MsgPrice,
		model.FieldMonth: form.MsgMonth,
	}, inv.Errors)
	assert.Equal(t, int32(0), client.calls.Load())
	assert.Equal(t, StatusIdle, c.Snapshot().Status)
	assert.Equal(t, inv.Errors, f.Errors(), "errors published to the form")

	snaps := rec.all()
	require.NotEmpty(t, snaps)
	assert.Equal(t, inv.Errors, snaps[len(snaps)-1].Errors)
	assert.Empty(t, snaps[len(snaps)-1].Alert, "validation never raises the alert")
}

func TestSubmit_ValidationRecomputedEachAttempt(t *testing.T) {
	t.Parallel()

	f := filledForm(t)
	require.NoError(t, f.SetField(model.FieldDayOfWeek, "9"))
	c := New(f, &fakeClient{resp: okResponse(t)}, testOptions())

	require.Error(t, c.Submit(context.Background()))
	assert.Contains(t, f.Errors(), model.FieldDayOfWeek)

	require.NoError(t, f.SetField(model.FieldDayOfWeek, "0"))
	assert.Empty(t, f.Errors())

	require.NoError(t, c.Submit(context.Background()))
	assert.Empty(t, f.Errors())
	assert.Equal(t, StatusSucceeded, c.Snapshot().Status)
}

func TestSubmit_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	opts := testOptions()
	opts.MinDisplay = time.Second
	c := New(filledForm(t), optima.NewClient(addr), opts)

	start := time.Now()
	err := c.Submit(context.Background())

	require.Error(t, err)
	te, ok := optima.AsTransport(err)
	require.True(t, ok)
	assert.Equal(t, optima.ReasonConnect, te.Reason)
	assert.Less(t, time.Since(start), opts.MinDisplay, "failures do not wait out the minimum display")

	snap := c.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, AlertMessage, snap.Alert)
	assert.Nil(t, snap.Result)
	assert.False(t, snap.Loading())
	assert.False(t, snap.ShowResult())
	assert.True(t, c.CanSubmit())

	c.Dismiss()
	snap = c.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Alert)
}

func TestSubmit_UnparsableBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`Internal Server Error`))
	}))
	defer srv.Close()

	c := New(filledForm(t), optima.NewClient(srv.URL), testOptions())
	err := c.Submit(context.Background())

	te, ok := optima.AsTransport(err)
	require.True(t, ok)
	assert.Equal(t, optima.ReasonDecode, te.Reason)
	assert.Equal(t, StatusFailed, c.Snapshot().Status)
	assert.Nil(t, c.Snapshot().Result)
}

func TestSubmit_ErrorStatusIsTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"msg":"value is not a valid integer"}]}`))
	}))
	defer srv.Close()

	c := New(filledForm(t), optima.NewClient(srv.URL), testOptions())
	err := c.Submit(context.Background())

	te, ok := optima.AsTransport(err)
	require.True(t, ok)
	assert.Equal(t, optima.ReasonStatus, te.Reason)
	assert.Equal(t, http.StatusUnprocessableEntity, te.StatusCode)
	assert.Equal(t, AlertMessage, c.Snapshot().Alert)
}

func TestSubmit_NonTransportClientErrorIsWrapped(t *testing.T) {
	t.Parallel()

	c := New(filledForm(t), &fakeClient{err: errors.New("boom")}, testOptions())
	err := c.Submit(context.Background())

	te, ok := optima.AsTransport(err)
	require.True(t, ok)
	assert.Equal(t, "boom", te.Err.Error())
	assert.Equal(t, StatusFailed, c.Snapshot().Status)
}

func TestSubmit_UnexpectedShapeStillSucceeds(t *testing.T) {
	t.Parallel()

	resp, err := optima.ParseResponse([]byte(`{"detail":"warming up"}`))
	require.NoError(t, err)

	opts := testOptions()
	opts.MinDisplay = 0
	c := New(filledForm(t), &fakeClient{resp: resp}, opts)

	require.NoError(t, c.Submit(context.Background()))
	snap := c.Snapshot()
	assert.Equal(t, StatusSucceeded, snap.Status)
	require.NotNil(t, snap.Result)
	assert.False(t, snap.Result.Complete())
}

func TestSubmit_ProgressOnlyHits100OnResponse(t *testing.T) {
	t.Parallel()

	client := &fakeClient{release: make(chan struct{}), resp: okResponse(t)}
	opts := testOptions()
	opts.MinDisplay = 0
	c := New(filledForm(t), client, opts)
	rec := &recorder{}
	c.OnChange(rec.observe)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()

	// Let the ticker run well past the point where it would have reached 100.
	require.Eventually(t, func() bool {
		return c.Snapshot().Progress == opts.TickCeiling
	}, 2*time.Second, time.Millisecond)
	time.Sleep(10 * opts.TickInterval)
	assert.Equal(t, opts.TickCeiling, c.Snapshot().Progress)
	assert.True(t, c.Snapshot().Loading())

	close(client.release)
	require.NoError(t, <-done)

	snaps := rec.all()
	last := -1
	saw100 := false
	for _, s := range snaps {
		if s.Status != StatusSubmitting {
			continue
		}
		assert.GreaterOrEqual(t, s.Progress, last, "progress is monotonic within a submission")
		last = s.Progress
		if s.Progress == 100 {
			saw100 = true
		}
	}
	assert.True(t, saw100, "progress forced to 100 while still loading")
	assert.Equal(t, 100, c.Snapshot().Progress)
}

func TestSubmit_InFlightIsNoop(t *testing.T) {
	t.Parallel()

	client := &fakeClient{release: make(chan struct{}), resp: okResponse(t)}
	opts := testOptions()
	opts.MinDisplay = 0
	c := New(filledForm(t), client, opts)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()

	require.Eventually(t, func() bool {
		return c.Snapshot().Status == StatusSubmitting
	}, time.Second, time.Millisecond)
	before := c.Snapshot()

	assert.False(t, c.CanSubmit())
	assert.ErrorIs(t, c.Submit(context.Background()), ErrInFlight)
	assert.ErrorIs(t, c.Submit(context.Background()), ErrInFlight)
	c.Dismiss()

	after := c.Snapshot()
	assert.Equal(t, before.SubmissionID, after.SubmissionID)
	assert.Equal(t, StatusSubmitting, after.Status)

	close(client.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), client.calls.Load())
	assert.True(t, c.CanSubmit())
}

func TestSubmit_NewSubmissionResetsState(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.MinDisplay = 0
	client := &fakeClient{resp: okResponse(t)}
	c := New(filledForm(t), client, opts)

	require.NoError(t, c.Submit(context.Background()))
	first := c.Snapshot()
	require.NotNil(t, first.Result)

	client.release = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.Status == StatusSubmitting && s.SubmissionID != first.SubmissionID
	}, time.Second, time.Millisecond)

	snap := c.Snapshot()
	assert.Nil(t, snap.Result, "previous result cleared on submit")
	assert.Less(t, snap.Progress, 100, "progress restarted")

	close(client.release)
	require.NoError(t, <-done)
}

func TestSubmit_NoTicksAfterFailure(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	client := &fakeClient{release: make(chan struct{}), err: optima.NewTransportError(optima.ReasonConnect, 0, errors.New("refused"))}
	c := New(filledForm(t), client, opts)
	rec := &recorder{}
	c.OnChange(rec.observe)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()

	require.Eventually(t, func() bool { return c.Snapshot().Progress >= 20 }, time.Second, time.Millisecond)
	close(client.release)
	require.Error(t, <-done)

	settled := c.Snapshot()
	count := len(rec.all())
	time.Sleep(10 * opts.TickInterval)

	assert.Equal(t, settled.Progress, c.Snapshot().Progress)
	assert.Len(t, rec.all(), count, "no snapshots after the submission resolved")
	assert.Less(t, settled.Progress, 100)
}

func TestSubmit_CanceledDuringMinDisplay(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.MinDisplay = 5 * time.Second
	c := New(filledForm(t), &fakeClient{resp: okResponse(t)}, opts)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	err := c.Submit(ctx)

	te, ok := optima.AsTransport(err)
	require.True(t, ok)
	assert.Equal(t, optima.ReasonCanceled, te.Reason)
	assert.Equal(t, StatusFailed, c.Snapshot().Status)
	assert.Nil(t, c.Snapshot().Result)
}

func TestDismiss_IdleIsNoop(t *testing.T) {
	t.Parallel()

	c := New(form.NewState(), &fakeClient{}, testOptions())
	rec := &recorder{}
	c.OnChange(rec.observe)

	c.Dismiss()
	assert.Equal(t, StatusIdle, c.Snapshot().Status)
	assert.Empty(t, rec.all())
}

func TestNew_ClampsCeiling(t *testing.T) {
	t.Parallel()

	c := New(form.NewState(), &fakeClient{}, Options{TickStep: 10, TickCeiling: 150})
	assert.Equal(t, 99, c.opts.TickCeiling)
	assert.Equal(t, DefaultOptions().TickInterval, c.opts.TickInterval)
}

func TestNew_DefaultsNonPositiveStep(t *testing.T) {
	t.Parallel()

	for _, step := range []int{0, -10} {
		c := New(form.NewState(), &fakeClient{}, Options{TickStep: step, TickCeiling: 90})
		assert.Equal(t, DefaultOptions().TickStep, c.opts.TickStep, "step %d", step)
	}
}

func TestSubmit_NegativeStepStillAdvances(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.TickStep = -10
	client := &fakeClient{release: make(chan struct{}), resp: okResponse(t)}
	c := New(filledForm(t), client, opts)
	rec := &recorder{}
	c.OnChange(rec.observe)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background()) }()

	require.Eventually(t, func() bool { return c.Snapshot().Progress >= 20 }, time.Second, time.Millisecond)
	close(client.release)
	require.NoError(t, <-done)

	for _, s := range rec.all() {
		assert.GreaterOrEqual(t, s.Progress, 0)
	}
}

func TestSubmit_NilResponseIsTransportFailure(t *testing.T) {
	t.Parallel()

	c := New(filledForm(t), &fakeClient{}, testOptions())

	var err error
	require.NotPanics(t, func() { err = c.Submit(context.Background()) })

	te, ok := optima.AsTransport(err)
	require.True(t, ok)
	assert.Equal(t, optima.ReasonDecode, te.Reason)

	snap := c.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Nil(t, snap.Result)
	assert.Equal(t, AlertMessage, snap.Alert)
}

func TestAdvance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cur, step, ceiling, want int
	}{
		{0, 10, 90, 10},
		{80, 10, 90, 90},
		{85, 10, 90, 90},
		{90, 10, 90, 90},
		{0, 7, 20, 7},
		{14, 7, 20, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Advance(tt.cur, tt.step, tt.ceiling), "Advance(%d, %d, %d)", tt.cur, tt.step, tt.ceiling)
	}

	// Repeated ticks from zero settle at the ceiling, never 100.
	p := 0
	for i := 0; i < 1000; i++ {
		p = Advance(p, 10, 90)
	}
	assert.Equal(t, 90, p)
}
