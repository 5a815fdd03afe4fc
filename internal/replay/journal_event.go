package replay

import (
	"encoding/json"
	"time"
)

// JournalEventType classifies entries of the playback journal
type JournalEventType uint8

const (
	JournalUnknown JournalEventType = iota
	JournalSessionLoaded
	JournalPlay
	JournalPause
	JournalSeek
	JournalSpeed
	JournalSlowMo
	JournalCapture // playback crossed a capture
	JournalPing    // playback crossed a ping broadcast
	JournalEnd     // playback reached the end of the session
)

// JournalVersion is bumped when payloads change shape
const JournalVersion uint8 = 1

// String returns the journal name of the event type
func (t JournalEventType) String() string {
	switch t {
	case JournalSessionLoaded:
		return "session_loaded"
	case JournalPlay:
		return "play"
	case JournalPause:
		return "pause"
	case JournalSeek:
		return "seek"
	case JournalSpeed:
		return "speed"
	case JournalSlowMo:
		return "slow_mo"
	case JournalCapture:
		return "capture"
	case JournalPing:
		return "ping"
	case JournalEnd:
		return "end"
	default:
		return "unknown"
	}
}

// MarshalText writes the event type by name
func (t JournalEventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// JournalEvent is one line of the journal
type JournalEvent struct {
	Version       uint8            `json:"version"`
	Type          JournalEventType `json:"type"`
	WallTime      int64            `json:"wallTime"`    // Unix nano
	Sequence      uint64           `json:"sequence"`    // assigned on emit
	SessionTime   int64            `json:"sessionTime"` // replay time in ms
	ParticipantID string           `json:"participantId,omitempty"`
	Payload       json.RawMessage  `json:"payload,omitempty"`
}

// SessionPayload describes a freshly loaded session
type SessionPayload struct {
	SessionID    string `json:"sessionId"`
	Participants int    `json:"participants"`
	MinTime      int64  `json:"minTime"`
	MaxTime      int64  `json:"maxTime"`
	Pings        int    `json:"pings"`
	Warnings     int    `json:"warnings"`
}

// SeekPayload records a jump of the playback position
type SeekPayload struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// SpeedPayload records a speed change
type SpeedPayload struct {
	Factor float64 `json:"factor"`
}

// SlowMoPayload records a slow-motion toggle
type SlowMoPayload struct {
	Enabled bool `json:"enabled"`
}

// CapturePayload records a capture crossed during playback
type CapturePayload struct {
	HunterID  string `json:"hunterId"`
	RunawayID string `json:"runawayId"`
}

// PingPayload records a ping broadcast crossed during playback
type PingPayload struct {
	Time         int64 `json:"time"`
	Participants int   `json:"participants"`
}

// encodePayload marshals a payload, dropping it on failure
func encodePayload(payload interface{}) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewJournalEvent stamps an event with the current wall clock
func NewJournalEvent(eventType JournalEventType, sessionTime int64, participantID string, payload interface{}) JournalEvent {
	return JournalEvent{
		Version:       JournalVersion,
		Type:          eventType,
		WallTime:      time.Now().UnixNano(),
		SessionTime:   sessionTime,
		ParticipantID: participantID,
		Payload:       encodePayload(payload),
	}
}
