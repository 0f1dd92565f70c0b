package wire

import "encoding/json"

// Request is an outbound envelope for the pipeline. Constructors below are
// the only way to build one, which keeps the outbound vocabulary closed.
type Request struct {
	Type        Kind            `json:"type"`
	GestureID   string          `json:"gesture_id,omitempty"`
	ActionID    string          `json:"action_id,omitempty"`
	Key         string          `json:"key,omitempty"`
	Value       any             `json:"value,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Label       string          `json:"label,omitempty"`
	GestureType string          `json:"gesture_type,omitempty"`
	Hand        string          `json:"hand,omitempty"`
}

// Encode marshals the request for the transport.
func (r Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Ping is the keepalive heartbeat.
func Ping() Request {
	return Request{Type: KindPing}
}

// GetConfig asks for a fresh CONFIG_SNAPSHOT.
func GetConfig() Request {
	return Request{Type: KindGetConfig}
}

// UpdateBinding rebinds a gesture to an action id ("none" unbinds).
func UpdateBinding(gestureID, actionID string) Request {
	return Request{Type: KindUpdateBinding, GestureID: gestureID, ActionID: actionID}
}

// ResetBindings restores the pipeline's built-in default bindings.
func ResetBindings() Request {
	return Request{Type: KindResetBindings}
}

// UpdateSetting writes one pipeline-side setting.
func UpdateSetting(key string, value any) Request {
	return Request{Type: KindUpdateSetting, Key: key, Value: value}
}

// SaveCustomGesture uploads recorded gesture data under a gesture id.
func SaveCustomGesture(gestureID string, data json.RawMessage) Request {
	return Request{Type: KindSaveCustomGesture, GestureID: gestureID, Data: data}
}

// DeleteCustomGesture removes a recorded gesture from the pipeline.
func DeleteCustomGesture(gestureID string) Request {
	return Request{Type: KindDeleteCustomGesture, GestureID: gestureID}
}

// StartRecording begins a calibration session for a new gesture.
func StartRecording(gestureID, label, gestureType, hand string) Request {
	return Request{
		Type:        KindStartRecording,
		GestureID:   gestureID,
		Label:       label,
		GestureType: gestureType,
		Hand:        hand,
	}
}

// CancelRecording aborts the active calibration session.
func CancelRecording() Request {
	return Request{Type: KindCancelRecording}
}
