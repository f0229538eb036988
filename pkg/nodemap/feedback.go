package nodemap

import (
	"sync"
	"time"
)

// Indicator is the transient save feedback shown to the user.
type Indicator string

// Indicators. Success and failure are mutually exclusive.
const (
	IndicatorNone    Indicator = ""
	IndicatorSaving  Indicator = "saving"
	IndicatorSuccess Indicator = "success"
	IndicatorFailure Indicator = "failure"
)

// SuccessMessage is shown with IndicatorSuccess.
const SuccessMessage = "Map saved successfully!"

// FeedbackState is the indicator currently visible.
type FeedbackState struct {
	Indicator Indicator `json:"indicator"`
	Message   string    `json:"message,omitempty"`
}

// Visible reports whether anything is shown.
func (s FeedbackState) Visible() bool { return s.Indicator != IndicatorNone }

// Feedback drives the save indicator. Success and failure auto-hide after
// a fixed duration. Every transition bumps a generation so a hide timer
// armed for an older state never clears a newer one.
type Feedback struct {
	clock    Clock
	duration time.Duration

	mu    sync.Mutex
	state FeedbackState
	gen   uint64
	timer Timer
}

// NewFeedback creates a hidden indicator.
func NewFeedback(opts ...Option) *Feedback {
	o := buildOptions(opts)
	return &Feedback{clock: o.clock, duration: o.feedbackDuration}
}

// Begin marks a save as in flight and hides any previous outcome.
func (f *Feedback) Begin() {
	f.set(FeedbackState{Indicator: IndicatorSaving}, false)
}

// Succeed shows the success indicator.
func (f *Feedback) Succeed() {
	f.set(FeedbackState{Indicator: IndicatorSuccess, Message: SuccessMessage}, true)
}

// Fail shows the failure indicator with msg.
func (f *Feedback) Fail(msg string) {
	f.set(FeedbackState{Indicator: IndicatorFailure, Message: msg}, true)
}

// Hide clears the indicator immediately.
func (f *Feedback) Hide() {
	f.set(FeedbackState{}, false)
}

// State returns what is currently shown.
func (f *Feedback) State() FeedbackState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Feedback) set(state FeedbackState, autoHide bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.gen++
	f.state = state
	if !autoHide {
		return
	}
	gen := f.gen
	f.timer = f.clock.AfterFunc(f.duration, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.gen != gen {
			return
		}
		f.state = FeedbackState{}
		f.timer = nil
	})
}
