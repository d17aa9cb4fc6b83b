package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"sync"
	"time"

	"pulse-monitor/db"
	"pulse-monitor/models"
	"pulse-monitor/ppg"
	"pulse-monitor/sessions"
	"pulse-monitor/tts"
	"pulse-monitor/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"
)

// monitorSession owns one connection's detector. The detector itself is not
// safe for concurrent use, so every touch goes through the session mutex.
type monitorSession struct {
	mu sync.Mutex

	id        string
	detector  *ppg.Detector
	startedAt time.Time

	beatCount  int
	bpmSum     float64
	bpmSamples int
	minBPM     uint32
	maxBPM     uint32
	eventCount int
}

type socketController struct {
	cfg     ppg.Config
	store   db.DBClient
	speech  *tts.GoogleTTSClient
	voiceOn bool

	mu       sync.Mutex
	sessions map[string]*monitorSession
}

func newSocketController(cfg ppg.Config, store db.DBClient, speech *tts.GoogleTTSClient, voiceAlerts bool) *socketController {
	return &socketController{
		cfg:      cfg,
		store:    store,
		speech:   speech,
		voiceOn:  voiceAlerts,
		sessions: make(map[string]*monitorSession),
	}
}

// socketBeeper forwards detector beeps to the connected client.
type socketBeeper struct {
	socket socketio.Conn
}

func (b *socketBeeper) PlayBeep(intensity float64) {
	b.socket.Emit("beep", map[string]float64{"intensity": intensity})
}

func (c *socketController) session(socketID string) *monitorSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[socketID]
}

func (c *socketController) handleStartMonitoring(socket socketio.Conn) {
	logger := utils.GetLogger()
	ctx := context.Background()

	c.mu.Lock()
	if existing, ok := c.sessions[socket.ID()]; ok {
		c.mu.Unlock()
		// Restart in place rather than leaking the old session.
		existing.mu.Lock()
		existing.detector.Reset()
		existing.detector.SetMonitoring(true)
		existing.resetAggregates()
		existing.mu.Unlock()
		socket.Emit("monitoringStarted", map[string]string{"sessionId": existing.id})
		return
	}

	session := &monitorSession{
		id:        utils.GenerateSessionID(),
		detector:  ppg.NewDetector(c.cfg),
		startedAt: time.Now(),
	}
	session.detector.SetBeeper(&socketBeeper{socket: socket})
	session.detector.OnArrhythmia(func(event ppg.ArrhythmiaEvent) {
		c.handleArrhythmia(socket, session, event)
	})
	c.sessions[socket.ID()] = session
	c.mu.Unlock()

	logger.InfoContext(ctx, "monitoring started",
		slog.String("socketID", socket.ID()),
		slog.String("sessionID", session.id),
	)
	socket.Emit("monitoringStarted", map[string]string{"sessionId": session.id})
}

func (c *socketController) handleStopMonitoring(socket socketio.Conn) {
	c.finishSession(socket.ID())
	socket.Emit("monitoringStopped", map[string]bool{"stopped": true})
}

func (c *socketController) handleReset(socket socketio.Conn) {
	session := c.session(socket.ID())
	if session == nil {
		return
	}
	session.mu.Lock()
	session.detector.Reset()
	session.resetAggregates()
	session.mu.Unlock()
	socket.Emit("resetDone", map[string]bool{"reset": true})
}

func (c *socketController) handleSample(socket socketio.Conn, payload string) {
	session := c.session(socket.ID())
	if session == nil {
		socket.Emit("monitorError", map[string]string{"message": "monitoring not started"})
		return
	}

	var frame models.SampleFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		logger := utils.GetLogger()
		logger.ErrorContext(context.Background(), "failed to parse sample payload",
			slog.String("socketID", socket.ID()),
			slog.Any("error", xerrors.New(err)),
		)
		socket.Emit("monitorError", map[string]string{"message": "invalid sample payload"})
		return
	}

	result := session.process(frame)
	socket.Emit("heartbeat", result)
}

func (c *socketController) handleSamples(socket socketio.Conn, payload string) {
	session := c.session(socket.ID())
	if session == nil {
		socket.Emit("monitorError", map[string]string{"message": "monitoring not started"})
		return
	}

	var batch models.SampleBatch
	if err := json.Unmarshal([]byte(payload), &batch); err != nil {
		logger := utils.GetLogger()
		logger.ErrorContext(context.Background(), "failed to parse sample batch",
			slog.String("socketID", socket.ID()),
			slog.Any("error", xerrors.New(err)),
		)
		socket.Emit("monitorError", map[string]string{"message": "invalid sample batch"})
		return
	}
	if len(batch.Frames) == 0 {
		return
	}

	for _, frame := range batch.Frames {
		result := session.process(frame)
		socket.Emit("heartbeat", result)
	}
}

func (c *socketController) handleRRIntervals(socket socketio.Conn) {
	session := c.session(socket.ID())
	if session == nil {
		socket.Emit("rrIntervals", ppg.RRSnapshot{})
		return
	}
	session.mu.Lock()
	snapshot := session.detector.RRIntervals()
	session.mu.Unlock()
	socket.Emit("rrIntervals", snapshot)
}

// handleArrhythmia runs inside the detector callback, which already holds the
// session mutex via process; it must not re-lock the session.
func (c *socketController) handleArrhythmia(socket socketio.Conn, session *monitorSession, event ppg.ArrhythmiaEvent) {
	logger := utils.GetLogger()
	ctx := context.Background()

	session.eventCount++

	logger.InfoContext(ctx, "arrhythmia detected",
		slog.String("socketID", socket.ID()),
		slog.String("sessionID", session.id),
		slog.String("type", string(event.Type)),
		slog.Float64("bpm", event.BPM),
		slog.Float64("rr", event.RRMs),
	)
	socket.Emit("arrhythmia", event)

	record := &models.ArrhythmiaRecord{
		SessionID: session.id,
		Type:      string(event.Type),
		Timestamp: event.Timestamp,
		BPM:       event.BPM,
		RRMs:      event.RRMs,
	}
	go func() {
		if err := c.store.StoreArrhythmiaEvent(record); err != nil {
			log.Printf("[Socket] Failed to store arrhythmia event: %v\n", err)
		}
	}()

	if c.voiceOn && c.speech != nil {
		go c.emitVoiceAlert(socket, event)
	}
}

// emitVoiceAlert synthesizes a spoken warning and streams it to the client as
// base64 MP3. Failures only log; the visual alert already went out.
func (c *socketController) emitVoiceAlert(socket socketio.Conn, event ppg.ArrhythmiaEvent) {
	audio, err := c.speech.SynthesizeAlert(string(event.Type), event.BPM)
	if err != nil {
		log.Printf("[Socket] Voice alert synthesis failed: %v\n", err)
		return
	}
	socket.Emit("voiceAlert", map[string]string{
		"type":  string(event.Type),
		"audio": tts.EncodeAudio(audio),
	})
}

// finishSession persists the summary and removes the session. Safe to call
// for unknown IDs (disconnect after stop).
func (c *socketController) finishSession(socketID string) {
	c.mu.Lock()
	session, ok := c.sessions[socketID]
	if ok {
		delete(c.sessions, socketID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	session.mu.Lock()
	session.detector.SetMonitoring(false)
	record := session.summary()
	tallies := session.detector.ArrhythmiaCounts()
	session.mu.Unlock()

	if talliesJSON, err := json.Marshal(tallies); err == nil && len(tallies) > 0 {
		record.Events = talliesJSON
	}

	if err := c.store.StoreSession(record); err != nil {
		log.Printf("[Socket] Failed to store session %s: %v\n", record.SessionID, err)
	}
	if err := sessions.SaveSession(record); err != nil {
		log.Printf("[Socket] Failed to log session %s: %v\n", record.SessionID, err)
	}

	logger := utils.GetLogger()
	logger.InfoContext(context.Background(), "monitoring stopped",
		slog.String("sessionID", record.SessionID),
		slog.Int("beats", record.BeatCount),
		slog.Float64("avgBpm", record.AvgBPM),
		slog.Int("events", record.EventCount),
	)
}

// process runs one frame through the detector and folds the result into the
// session aggregates.
func (s *monitorSession) process(frame models.SampleFrame) ppg.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result ppg.Result
	if frame.Timestamp > 0 {
		result = s.detector.ProcessSampleAt(frame.Value, time.UnixMilli(frame.Timestamp))
	} else {
		result = s.detector.ProcessSample(frame.Value)
	}

	if result.IsPeak {
		s.beatCount++
	}
	if result.BPM > 0 {
		s.bpmSum += float64(result.BPM)
		s.bpmSamples++
		if s.minBPM == 0 || result.BPM < s.minBPM {
			s.minBPM = result.BPM
		}
		if result.BPM > s.maxBPM {
			s.maxBPM = result.BPM
		}
	}
	return result
}

func (s *monitorSession) summary() *models.SessionRecord {
	record := &models.SessionRecord{
		SessionID:  s.id,
		StartedAt:  s.startedAt,
		EndedAt:    time.Now(),
		MinBPM:     s.minBPM,
		MaxBPM:     s.maxBPM,
		BeatCount:  s.beatCount,
		EventCount: s.eventCount,
	}
	if s.bpmSamples > 0 {
		record.AvgBPM = s.bpmSum / float64(s.bpmSamples)
	}
	return record
}

func (s *monitorSession) resetAggregates() {
	s.startedAt = time.Now()
	s.beatCount = 0
	s.bpmSum = 0
	s.bpmSamples = 0
	s.minBPM = 0
	s.maxBPM = 0
	s.eventCount = 0
}
