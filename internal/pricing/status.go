package pricing

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/priceoptima/internal/model"
	"github.com/sells-group/priceoptima/pkg/optima"
)

// Status is the submission state machine:
// idle -> submitting -> (succeeded | failed) -> idle.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// AlertMessage is shown, blocking, after any transport failure.
const AlertMessage = "API error. Please try again."

// ErrInFlight is returned by Submit while another submission is outstanding.
var ErrInFlight = eris.New("pricing: submission already in flight")

// InvalidError reports that validation failed and nothing was sent.
type InvalidError struct {
	Errors model.Errors
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("pricing: %d invalid field(s)", len(e.Errors))
}

// Snapshot is an immutable view of the controller for rendering.
type Snapshot struct {
	SubmissionID string
	Status       Status
	Progress     int
	Result       *optima.PriceResponse
	Alert        string
	Errors       model.Errors
}

// Loading reports whether the progress indicator should be visible.
func (s Snapshot) Loading() bool {
	return s.Status == StatusSubmitting
}

// ShowResult reports whether the result panel should be visible.
func (s Snapshot) ShowResult() bool {
	return s.Status == StatusSucceeded && s.Result != nil
}
