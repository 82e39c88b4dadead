package saga

import (
	"time"

	apperrors "purchases/internal/errors"
)

type State string

const (
	StateVerifying           State = "VERIFYING"
	StateCharging            State = "CHARGING"
	StateCommitting          State = "COMMITTING"
	StateDone                State = "DONE"
	StateAborted             State = "ABORTED"
	StateCompensatingFailure State = "COMPENSATING_FAILURE"
)

func (s State) IsFinal() bool {
	return s == StateDone || s == StateAborted || s == StateCompensatingFailure
}

// next lists the states reachable from each state.
var next = map[State][]State{
	StateVerifying:  {StateCharging, StateAborted},
	StateCharging:   {StateCommitting, StateAborted},
	StateCommitting: {StateDone, StateCompensatingFailure},
}

func (s State) canMoveTo(to State) bool {
	for _, allowed := range next[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Reason string

const (
	ReasonAvailable         Reason = "AVAILABLE"
	ReasonInsufficientStock Reason = "INSUFFICIENT_STOCK"
	ReasonProductNotFound   Reason = "PRODUCT_NOT_FOUND"
	ReasonStockUnknown      Reason = "STOCK_UNKNOWN"
	ReasonUnreachable       Reason = "UNREACHABLE"
)

// ItemAvailability is the verification verdict for one order item. Stock is
// nil when the catalog did not report a number.
type ItemAvailability struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	Requested int    `json:"requested"`
	Stock     *int   `json:"stock,omitempty"`
	Available bool   `json:"available"`
	Reason    Reason `json:"reason"`
}

type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
	Note string    `json:"note,omitempty"`
}

// Run is the record of one confirmation attempt.
type Run struct {
	OrderID            string                `json:"orderId"`
	State              State                 `json:"state"`
	Transcript         []Transition          `json:"transcript"`
	Availability       []ItemAvailability    `json:"availability,omitempty"`
	PaymentID          string                `json:"paymentId,omitempty"`
	Committed          []apperrors.StockItem `json:"committed,omitempty"`
	Compensated        []apperrors.StockItem `json:"compensated,omitempty"`
	CompensationFailed []apperrors.StockItem `json:"compensationFailed,omitempty"`
	StartedAt          time.Time             `json:"startedAt"`
	FinishedAt         *time.Time            `json:"finishedAt,omitempty"`
}

func newRun(orderID string, now time.Time) *Run {
	return &Run{
		OrderID:   orderID,
		State:     StateVerifying,
		StartedAt: now,
	}
}

func (r *Run) moveTo(to State, now time.Time, note string) bool {
	if !r.State.canMoveTo(to) {
		return false
	}
	r.Transcript = append(r.Transcript, Transition{From: r.State, To: to, At: now, Note: note})
	r.State = to
	if to.IsFinal() {
		r.FinishedAt = &now
	}
	return true
}

// States returns the visited states in order, starting with VERIFYING.
func (r *Run) States() []State {
	states := []State{StateVerifying}
	for _, t := range r.Transcript {
		states = append(states, t.To)
	}
	return states
}
