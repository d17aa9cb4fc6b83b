package models

import (
	"encoding/json"
	"time"
)

// SampleFrame is one raw PPG intensity value from the acquisition layer. The
// timestamp is optional milliseconds since the Unix epoch; when absent the
// server stamps the frame on arrival.
type SampleFrame struct {
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// SampleBatch is a group of frames sent together. Browsers batch a few camera
// frames per message to keep the socket chatter down.
type SampleBatch struct {
	Frames []SampleFrame `json:"frames"`
}

// ChatRequest is the payload of the assistant endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the assistant reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// ArrhythmiaRecord is a stored rhythm-irregularity event.
type ArrhythmiaRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	BPM       float64   `json:"bpm"`
	RRMs      float64   `json:"rr"`
}

// SessionRecord summarizes one finished monitoring session.
type SessionRecord struct {
	ID         int64           `json:"id"`
	SessionID  string          `json:"sessionId"`
	StartedAt  time.Time       `json:"startedAt"`
	EndedAt    time.Time       `json:"endedAt"`
	AvgBPM     float64         `json:"avgBpm"`
	MinBPM     uint32          `json:"minBpm"`
	MaxBPM     uint32          `json:"maxBpm"`
	BeatCount  int             `json:"beatCount"`
	EventCount int             `json:"eventCount"`
	Events     json.RawMessage `json:"events,omitempty"` // per-type tallies
}
