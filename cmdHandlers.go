package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pulse-monitor/chat"
	"pulse-monitor/db"
	"pulse-monitor/models"
	"pulse-monitor/ppg"
	"pulse-monitor/sessions"
	"pulse-monitor/tts"
	"pulse-monitor/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
)

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

// detectorConfigFromEnv starts from the tuned defaults and applies the
// environment overrides that operators actually change in the field.
func detectorConfigFromEnv() ppg.Config {
	cfg := ppg.DefaultConfig()
	cfg.SampleRate = utils.GetEnvFloat("PPG_SAMPLE_RATE", cfg.SampleRate)
	cfg.MinBPM = utils.GetEnvFloat("PPG_MIN_BPM", cfg.MinBPM)
	cfg.MaxBPM = utils.GetEnvFloat("PPG_MAX_BPM", cfg.MaxBPM)
	cfg.MotionThreshold = utils.GetEnvFloat("PPG_MOTION_THRESHOLD", cfg.MotionThreshold)
	cfg.AcceptConfidence = utils.GetEnvFloat("PPG_ACCEPT_CONFIDENCE", cfg.AcceptConfidence)
	cfg.BradycardiaBPM = utils.GetEnvFloat("PPG_BRADYCARDIA_BPM", cfg.BradycardiaBPM)
	cfg.TachycardiaBPM = utils.GetEnvFloat("PPG_TACHYCARDIA_BPM", cfg.TachycardiaBPM)
	if seconds := utils.GetEnvInt("PPG_WARMUP_SECONDS", 0); seconds > 0 {
		cfg.WarmupDuration = time.Duration(seconds) * time.Second
	}
	return cfg
}

func newSessionsHandler(store db.DBClient) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		records, err := store.GetRecentSessions(limit)
		if err != nil {
			logger.ErrorContext(ctx, "failed to load sessions from store, falling back to file log",
				slog.Any("error", xerrors.New(err)))
			records, err = sessions.LoadSessions()
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "failed to load sessions")
				return
			}
		}

		writeJSON(w, http.StatusOK, records)
	}
}

func newEventsHandler(store db.DBClient) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		sessionID := r.URL.Query().Get("sessionId")
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		events, err := store.GetArrhythmiaEvents(sessionID, limit)
		if err != nil {
			logger.ErrorContext(ctx, "failed to load arrhythmia events", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load events")
			return
		}

		writeJSON(w, http.StatusOK, events)
	}
}

func newChatHandler(assistant *chat.GeminiClient) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if assistant == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "assistant is not configured")
			return
		}

		var req models.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request payload")
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeJSONError(w, http.StatusBadRequest, "message is required")
			return
		}

		reply, err := assistant.GenerateResponse(req.Message)
		if err != nil {
			logger.ErrorContext(ctx, "assistant request failed", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "assistant error")
			return
		}

		writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func serve(protocol, port string) {
	protocol = strings.ToLower(protocol)
	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}

	cfg := detectorConfigFromEnv()
	log.Printf("Detector configured: rate=%.0f Hz, band=[%.0f, %.0f] BPM, warmup=%s",
		cfg.SampleRate, cfg.MinBPM, cfg.MaxBPM, cfg.WarmupDuration)

	store, err := db.NewDBClient()
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	defer store.Close()

	var speech *tts.GoogleTTSClient
	voiceAlerts := strings.EqualFold(utils.GetEnv("VOICE_ALERTS", "true"), "true")
	if voiceAlerts {
		speech, err = tts.NewGoogleTTSClient()
		if err != nil {
			log.Printf("Voice alerts disabled: %v\n", err)
			voiceAlerts = false
		}
	}

	var assistant *chat.GeminiClient
	if assistant, err = chat.NewGeminiClient(); err != nil {
		log.Printf("Chat assistant disabled: %v\n", err)
		assistant = nil
	}

	controller := newSocketController(cfg, store, speech, voiceAlerts)

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		connURL := socket.URL()
		log.Printf("CONNECTED: %s, transport: %s, remote addr: %s\n", socket.ID(), connURL.String(), socket.RemoteAddr())
		socket.Emit("config", map[string]float64{
			"sampleRate": cfg.SampleRate,
			"minBpm":     cfg.MinBPM,
			"maxBpm":     cfg.MaxBPM,
		})
		return nil
	})

	server.OnEvent("/", "startMonitoring", func(socket socketio.Conn) {
		log.Printf("startMonitoring received from %s\n", socket.ID())
		controller.handleStartMonitoring(socket)
	})

	server.OnEvent("/", "stopMonitoring", func(socket socketio.Conn) {
		log.Printf("stopMonitoring received from %s\n", socket.ID())
		controller.handleStopMonitoring(socket)
	})

	server.OnEvent("/", "reset", func(socket socketio.Conn) {
		controller.handleReset(socket)
	})

	server.OnEvent("/", "sample", func(socket socketio.Conn, msg string) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC RECOVERED in sample handler: %v\n", r)
			}
		}()
		controller.handleSample(socket, msg)
	})

	server.OnEvent("/", "samples", func(socket socketio.Conn, msg string) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC RECOVERED in samples handler: %v\n", r)
			}
		}()
		controller.handleSamples(socket, msg)
	})

	server.OnEvent("/", "requestRRIntervals", func(socket socketio.Conn) {
		controller.handleRRIntervals(socket)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
		controller.finishSession(s.ID())
	})

	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	serveHTTPS := protocol == "https"

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", server)
	mux.HandleFunc("/api/sessions", newSessionsHandler(store))
	mux.HandleFunc("/api/events", newEventsHandler(store))
	mux.HandleFunc("/api/chat", newChatHandler(assistant))
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/", http.FileServer(http.Dir("static")))

	serveHTTP(server, serveHTTPS, port, mux)
}

func serveHTTP(socketServer *socketio.Server, serveHTTPS bool, port string, handler http.Handler) {
	if handler == nil {
		handler = socketServer
	}
	if serveHTTPS {
		httpsAddr := ":" + port
		httpsServer := &http.Server{
			Addr: httpsAddr,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler: handler,
		}

		cert_key_default := "/etc/letsencrypt/live/localport.online/privkey.pem"
		cert_file_default := "/etc/letsencrypt/live/localport.online/fullchain.pem"

		cert_key := utils.GetEnv("CERT_KEY", cert_key_default)
		cert_file := utils.GetEnv("CERT_FILE", cert_file_default)
		if cert_key == "" || cert_file == "" {
			log.Fatal("Missing cert")
		}

		log.Printf("Starting HTTPS server on %s\n", httpsAddr)
		if err := httpsServer.ListenAndServeTLS(cert_file, cert_key); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
	}

	log.Printf("Starting HTTP server on port %v", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
