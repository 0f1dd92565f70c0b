// Package wire implements the JSON message protocol spoken over the
// pipeline connection. Inbound payloads parse into a closed set of typed
// messages; anything outside the set is rejected at this boundary so the
// router never digs through raw maps.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lotas/gestured/internal/types"
)

// Kind is the required "type" discriminator of every envelope.
type Kind string

const (
	KindAction         Kind = "ACTION"
	KindExecution      Kind = "EXECUTION"
	KindStatus         Kind = "STATUS"
	KindConfigSnapshot Kind = "CONFIG_SNAPSHOT"
	KindRecordingEvent Kind = "RECORDING_EVENT"
	KindPong           Kind = "PONG"
	KindAck            Kind = "ACK"

	KindPing                Kind = "PING"
	KindGetConfig           Kind = "GET_CONFIG"
	KindUpdateBinding       Kind = "UPDATE_BINDING"
	KindResetBindings       Kind = "RESET_BINDINGS"
	KindUpdateSetting       Kind = "UPDATE_SETTING"
	KindSaveCustomGesture   Kind = "SAVE_CUSTOM_GESTURE"
	KindDeleteCustomGesture Kind = "DELETE_CUSTOM_GESTURE"
	KindStartRecording      Kind = "START_RECORDING"
	KindCancelRecording     Kind = "CANCEL_RECORDING"
)

// ErrMissingType marks an envelope without a "type" field.
var ErrMissingType = errors.New("wire: missing type field")

// UnknownTypeError is returned for a well-formed envelope whose type is
// outside the inbound union. Callers log and drop these.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("wire: unknown message type %q", e.Type)
}

// Message is an inbound pipeline message.
type Message interface {
	Kind() Kind
}

// Action reports a recognized gesture and the action the pipeline resolved
// it to. An action id equal to types.ActionDelegate means the consumer owns
// execution via its extension mapping.
type Action struct {
	ActionID   string          `json:"action_id"`
	GestureID  string          `json:"gesture_id"`
	Hand       string          `json:"hand,omitempty"`
	Magnitude  float64         `json:"magnitude,omitempty"`
	Repeatable bool            `json:"repeatable,omitempty"`
	Timestamp  float64         `json:"timestamp,omitempty"`
	Meta       json.RawMessage `json:"meta,omitempty"`
}

func (*Action) Kind() Kind { return KindAction }

// Execution reports the outcome of a pipeline-side action, or carries a
// browser-level command the pipeline delegates to the consumer surfaces.
type Execution struct {
	Success  bool            `json:"success"`
	ActionID string          `json:"action_id"`
	Command  string          `json:"command,omitempty"`
	Params   json.RawMessage `json:"params,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func (*Execution) Kind() Kind { return KindExecution }

// Status is the pipeline's periodic telemetry heartbeat.
type Status struct {
	Status    string  `json:"status"`
	FPS       float64 `json:"fps"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

func (*Status) Kind() Kind { return KindStatus }

// ConfigSnapshot is the authoritative full-config push, sent on connect and
// in reply to GET_CONFIG.
type ConfigSnapshot struct {
	types.ConfigSnapshot
}

func (*ConfigSnapshot) Kind() Kind { return KindConfigSnapshot }

// Recording event discriminators.
const (
	RecEventStateChange = "state_change"
	RecEventSampleSaved = "sample_saved"
	RecEventComplete    = "complete"
	RecEventCancelled   = "cancelled"
)

// RecordingEvent carries recording-session progress. The message text is
// opaque display material; the event discriminator and the sample counters
// are load-bearing.
type RecordingEvent struct {
	Event        string `json:"event"`
	State        string `json:"state,omitempty"`
	GestureID    string `json:"gesture_id,omitempty"`
	SamplesDone  int    `json:"samples_done,omitempty"`
	SamplesTotal int    `json:"samples_total,omitempty"`
	Countdown    *int   `json:"countdown,omitempty"`
	Message      string `json:"message,omitempty"`
}

func (*RecordingEvent) Kind() Kind { return KindRecordingEvent }

// Pong answers our keepalive PING. The heartbeat is fire-and-forget, so the
// bridge only acknowledges receipt.
type Pong struct {
	Timestamp float64 `json:"timestamp,omitempty"`
}

func (*Pong) Kind() Kind { return KindPong }

// Ack confirms a config write on the pipeline side. Confirmation is not
// awaited anywhere; the next CONFIG_SNAPSHOT is the real authority.
type Ack struct {
	GestureID string `json:"gesture_id,omitempty"`
	ActionID  string `json:"action_id,omitempty"`
	Key       string `json:"key,omitempty"`
	Saved     bool   `json:"saved,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

func (*Ack) Kind() Kind { return KindAck }

// Parse decodes one inbound envelope. A JSON-level failure or a missing
// type is a protocol error; a well-formed envelope with an unrecognized
// type yields *UnknownTypeError.
func Parse(data []byte) (Message, error) {
	var env struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: parse envelope: %w", err)
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}

	var msg Message
	switch env.Type {
	case KindAction:
		msg = &Action{}
	case KindExecution:
		msg = &Execution{}
	case KindStatus:
		msg = &Status{}
	case KindConfigSnapshot:
		msg = &ConfigSnapshot{}
	case KindRecordingEvent:
		msg = &RecordingEvent{}
	case KindPong:
		msg = &Pong{}
	case KindAck:
		msg = &Ack{}
	default:
		return nil, &UnknownTypeError{Type: string(env.Type)}
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("wire: parse %s: %w", env.Type, err)
	}
	return msg, nil
}
