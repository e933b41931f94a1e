// Package display renders the pricing form, its progress indicator, results
// and alerts to a terminal.
package display

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/priceoptima/internal/model"
	"github.com/sells-group/priceoptima/internal/pricing"
	"github.com/sells-group/priceoptima/pkg/optima"
)

const (
	barWidth     = 30
	progressText = "Analyzing demand & pricing..."
)

// Renderer writes results to out and everything transient (prompts,
// progress, field errors, alerts) to status.
type Renderer struct {
	out      io.Writer
	status   io.Writer
	currency string
	format   string
	printer  *message.Printer

	mu       sync.Mutex
	drawing  bool
	lastDraw int
}

// New creates a renderer. format is text, json or yaml.
func New(out, status io.Writer, currency, format string) *Renderer {
	return &Renderer{
		out:      out,
		status:   status,
		currency: currency,
		format:   format,
		printer:  message.NewPrinter(language.English),
		lastDraw: -1,
	}
}

// Prompt returns the input prompt for one field.
func Prompt(spec model.FieldSpec) string {
	return fmt.Sprintf("%s (%s): ", spec.Label, spec.Placeholder)
}

// FieldErrors lists validation messages in form order.
func (r *Renderer) FieldErrors(errs model.Errors) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fe := range errs.Ordered() {
		label := string(fe.Field)
		if s, ok := model.Spec(fe.Field); ok {
			label = s.Label
		}
		fmt.Fprintf(r.status, "  x %s: %s\n", label, fe.Message)
	}
}

// Fields prints the form definition.
func (r *Renderer) Fields() error {
	switch r.format {
	case "json":
		return r.writeJSON(model.Fields)
	case "yaml":
		return r.writeYAML(model.Fields)
	}
	for _, f := range model.Fields {
		fmt.Fprintf(r.out, "%-12s %-22s %s\n", f.Name, f.Label, f.Rule)
	}
	return nil
}

// Observe redraws the progress line while a submission is loading. Pass it
// to pricing.Controller.OnChange.
func (r *Renderer) Observe(s pricing.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Loading() {
		if r.drawing && s.Progress == r.lastDraw {
			return
		}
		fmt.Fprintf(r.status, "\r%s %3d%% %s", ProgressBar(s.Progress, barWidth), s.Progress, progressText)
		r.drawing = true
		r.lastDraw = s.Progress
		return
	}

	if r.drawing {
		fmt.Fprintln(r.status)
		r.drawing = false
		r.lastDraw = -1
	}
}

// ProgressBar draws a fixed-width bar for p percent.
func ProgressBar(p, width int) string {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	filled := p * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// Alert shows a blocking-style failure message.
func (r *Renderer) Alert(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := strings.Repeat("-", len(msg)+4)
	fmt.Fprintf(r.status, "%s\n| %s |\n%s\n", line, msg, line)
}

// Result renders a successful response. Responses without the expected keys
// are shown as returned.
func (r *Renderer) Result(resp *optima.PriceResponse) error {
	if resp == nil {
		return eris.New("display: no result")
	}

	if !resp.Complete() {
		return r.raw(resp.Raw)
	}

	switch r.format {
	case "json":
		return r.writeJSON(resp)
	case "yaml":
		return r.writeYAML(resp)
	}

	fmt.Fprintf(r.out, "Predicted Demand:  %s\n", r.decimal(resp.PredictedDemand))
	fmt.Fprintf(r.out, "Recommended Price: %s%s\n", r.currency, r.decimal(resp.RecommendedPrice))
	return nil
}

func (r *Renderer) raw(body json.RawMessage) error {
	switch r.format {
	case "json":
		_, err := fmt.Fprintln(r.out, string(body))
		return err
	case "yaml":
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return eris.Wrap(err, "display: decode raw response")
		}
		return r.writeYAML(v)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		buf.Reset()
		buf.Write(body)
	}
	fmt.Fprintf(r.out, "Unexpected response from the prediction service:\n%s\n", buf.String())
	return nil
}

func (r *Renderer) decimal(v float64) string {
	return r.printer.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(2)))
}

func (r *Renderer) writeJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "display: encode json")
	}
	return nil
}

func (r *Renderer) writeYAML(v any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "display: encode yaml")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "display: close yaml encoder")
	}
	return nil
}
