package dispatch

import "fmt"

type Reason string

const (
	ReasonUnnamed      Reason = "unnamed-event"
	ReasonUnknown      Reason = "unknown-event"
	ReasonBadParameter Reason = "bad-parameter"
	ReasonNoController Reason = "no-controller"
	ReasonFailed       Reason = "handler-failed"
)

// Warning is a non-fatal, per-event dispatch problem.
type Warning struct {
	Index  int
	Event  string
	Reason Reason
	Err    error
}

func (w *Warning) Error() string {
	return fmt.Sprintf("event %d %q: %s: %v", w.Index, w.Event, w.Reason, w.Err)
}

func (w *Warning) Unwrap() error { return w.Err }

type Outcome struct {
	Index   int
	Name    string
	Applied bool
	Warning *Warning
}

// Report has one outcome per dispatched event, in event order.
type Report struct {
	Outcomes []Outcome
}

func (r Report) Applied() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Applied {
			n++
		}
	}
	return n
}

func (r Report) Warnings() []*Warning {
	var ws []*Warning
	for _, o := range r.Outcomes {
		if o.Warning != nil {
			ws = append(ws, o.Warning)
		}
	}
	return ws
}
