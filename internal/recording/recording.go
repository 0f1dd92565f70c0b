// Package recording drives the calibration session that captures samples
// for a new gesture. Exactly one session exists per process; inbound
// RECORDING_EVENT messages and local start/cancel requests move it through
// idle → countdown → capturing → complete/cancelled.
package recording

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lotas/gestured/internal/applog"
	"github.com/lotas/gestured/internal/types"
	"github.com/lotas/gestured/internal/wire"
)

// State is the session status.
type State string

const (
	StateIdle      State = "idle"
	StateCountdown State = "countdown"
	StateCapturing State = "capturing"
	StateComplete  State = "complete"
	StateCancelled State = "cancelled"
)

// ErrBusy rejects a start while a session is active.
var ErrBusy = errors.New("recording already in progress")

// Snapshot is the observable session state handed to observers and
// consumer surfaces.
type Snapshot struct {
	SessionID    string `json:"session_id,omitempty"`
	Status       State  `json:"status"`
	GestureID    string `json:"gesture_id,omitempty"`
	Label        string `json:"label,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Hand         string `json:"hand,omitempty"`
	SamplesDone  int    `json:"samples_done"`
	SamplesTotal int    `json:"samples_total"`
	Countdown    int    `json:"countdown,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Active reports whether the snapshot is mid-session.
func (s Snapshot) Active() bool {
	return s.Status == StateCountdown || s.Status == StateCapturing
}

// Session is the process-wide recording state machine. The send function is
// the pipeline connection's Send; notify observes every visible transition.
type Session struct {
	mu     sync.Mutex
	snap   Snapshot
	send   func(wire.Request) error
	notify func(Snapshot)
}

// NewSession builds an idle session.
func NewSession(send func(wire.Request) error, notify func(Snapshot)) *Session {
	return &Session{
		snap:   Snapshot{Status: StateIdle},
		send:   send,
		notify: notify,
	}
}

// Start begins a new session. The request must actually reach the pipeline:
// only a confirmed send moves idle → countdown, otherwise the session stays
// idle and the caller gets the send error.
func (s *Session) Start(gestureID, label, kind, hand string) error {
	if gestureID == "" {
		return fmt.Errorf("start recording: gesture_id is required")
	}
	if label == "" {
		return fmt.Errorf("start recording: label is required")
	}
	if kind == "" {
		kind = "dynamic"
	}
	if kind != "static" && kind != "dynamic" {
		return fmt.Errorf("start recording: gesture_type %q must be static or dynamic", kind)
	}
	if hand == "" {
		hand = types.HandRight
	}

	s.mu.Lock()
	if s.snap.Status != StateIdle {
		s.mu.Unlock()
		return ErrBusy
	}

	if err := s.send(wire.StartRecording(gestureID, label, kind, hand)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("start recording: %w", err)
	}

	s.snap = Snapshot{
		SessionID:    uuid.NewString(),
		Status:       StateCountdown,
		GestureID:    gestureID,
		Label:        label,
		Kind:         kind,
		Hand:         hand,
		SamplesTotal: types.RecordingTargetSamples,
	}
	snap := s.snap
	s.mu.Unlock()

	applog.Info("recording.start", "gesture", gestureID, "kind", kind, "hand", hand)
	s.emit(snap)
	return nil
}

// Cancel aborts the session. The pipeline notification is best-effort; the
// local reset always happens because the user's intent to stop must win
// even with a dead connection.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.snap.Status == StateIdle {
		s.mu.Unlock()
		return
	}

	if err := s.send(wire.CancelRecording()); err != nil {
		applog.Error("recording.cancel_send", err)
	}

	snap := s.snap
	snap.Status = StateCancelled
	s.snap = Snapshot{Status: StateIdle}
	s.mu.Unlock()

	applog.Info("recording.cancelled", "gesture", snap.GestureID)
	s.emit(snap)
}

// HandleEvent applies one inbound RECORDING_EVENT. The pipeline attaches
// the sample counters to every event it emits; the countdown number is what
// separates a countdown tick (the initial 3-2-1 and the between-samples
// re-countdown) from the capture phase.
func (s *Session) HandleEvent(ev *wire.RecordingEvent) {
	s.mu.Lock()

	if s.snap.Status == StateIdle {
		// No local session (e.g. the bridge restarted mid-capture). The
		// router still caches the payload for display; the machine itself
		// has nothing to move.
		s.mu.Unlock()
		applog.Info("recording.orphan_event", "event", ev.Event)
		return
	}

	switch ev.Event {
	case wire.RecEventComplete:
		snap := s.snap
		snap.Status = StateComplete
		if ev.SamplesTotal > 0 {
			snap.SamplesTotal = ev.SamplesTotal
		}
		snap.SamplesDone = snap.SamplesTotal
		snap.Message = ev.Message
		snap.Countdown = 0
		s.snap = Snapshot{Status: StateIdle}
		s.mu.Unlock()

		applog.Info("recording.complete", "gesture", snap.GestureID, "samples", snap.SamplesDone)
		s.emit(snap)
		return

	case wire.RecEventCancelled:
		snap := s.snap
		snap.Status = StateCancelled
		snap.Message = ev.Message
		s.snap = Snapshot{Status: StateIdle}
		s.mu.Unlock()

		applog.Info("recording.cancelled_by_pipeline", "gesture", snap.GestureID)
		s.emit(snap)
		return
	}

	// Progress. Sample counters apply monotonically whatever the event is; a
	// countdown number means the pipeline is counting down (before the first
	// capture or between samples), its absence means the capture phase.
	if ev.SamplesTotal > 0 {
		s.snap.SamplesTotal = ev.SamplesTotal
	}
	if ev.SamplesDone > s.snap.SamplesDone {
		s.snap.SamplesDone = ev.SamplesDone
	}
	if s.snap.SamplesDone > s.snap.SamplesTotal {
		s.snap.SamplesDone = s.snap.SamplesTotal
	}
	if ev.Countdown != nil {
		s.snap.Status = StateCountdown
		s.snap.Countdown = *ev.Countdown
	} else {
		s.snap.Status = StateCapturing
		s.snap.Countdown = 0
	}
	if ev.Message != "" {
		s.snap.Message = ev.Message
	}
	snap := s.snap
	s.mu.Unlock()

	s.emit(snap)
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Session) emit(snap Snapshot) {
	if s.notify != nil {
		s.notify(snap)
	}
}
