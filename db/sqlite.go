package db

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"pulse-monitor/models"
	"pulse-monitor/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	// Create the directory if it doesn't exist (cross-platform)
	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %s", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000" // 5 seconds
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %s", err)
	}

	err = createTables(db)
	if err != nil {
		return nil, fmt.Errorf("error creating tables: %s", err)
	}

	return &SQLiteClient{db: db}, nil
}

// createTables creates the required tables if they don't exist
func createTables(db *sql.DB) error {
	createSessionsTable := `
    CREATE TABLE IF NOT EXISTS sessions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL UNIQUE,
        started_at DATETIME NOT NULL,
        ended_at DATETIME NOT NULL,
        avg_bpm REAL NOT NULL DEFAULT 0,
        min_bpm INTEGER NOT NULL DEFAULT 0,
        max_bpm INTEGER NOT NULL DEFAULT 0,
        beat_count INTEGER NOT NULL DEFAULT 0,
        event_count INTEGER NOT NULL DEFAULT 0,
        events TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
    `

	createEventsTable := `
    CREATE TABLE IF NOT EXISTS arrhythmia_events (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        type TEXT NOT NULL,
        timestamp DATETIME NOT NULL,
        bpm REAL NOT NULL DEFAULT 0,
        rr_ms REAL NOT NULL DEFAULT 0
    );
    CREATE INDEX IF NOT EXISTS idx_events_session ON arrhythmia_events(session_id);
    CREATE INDEX IF NOT EXISTS idx_events_timestamp ON arrhythmia_events(timestamp);
    `

	_, err := db.Exec(createSessionsTable)
	if err != nil {
		return fmt.Errorf("error creating sessions table: %s", err)
	}

	_, err = db.Exec(createEventsTable)
	if err != nil {
		return fmt.Errorf("error creating arrhythmia_events table: %s", err)
	}

	return nil
}

func (db *SQLiteClient) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// StoreSession stores a finished session summary
func (db *SQLiteClient) StoreSession(session *models.SessionRecord) error {
	var events *string
	if len(session.Events) > 0 {
		s := string(session.Events)
		events = &s
	}

	_, err := db.db.Exec(`
		INSERT OR REPLACE INTO sessions (
			session_id, started_at, ended_at, avg_bpm, min_bpm,
			max_bpm, beat_count, event_count, events
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID,
		session.StartedAt,
		session.EndedAt,
		session.AvgBPM,
		session.MinBPM,
		session.MaxBPM,
		session.BeatCount,
		session.EventCount,
		events,
	)
	if err != nil {
		return fmt.Errorf("error storing session: %s", err)
	}
	return nil
}

// GetRecentSessions retrieves the newest sessions, most recent first
func (db *SQLiteClient) GetRecentSessions(limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.db.Query(`
		SELECT id, session_id, started_at, ended_at, avg_bpm, min_bpm,
		       max_bpm, beat_count, event_count, events
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying sessions: %s", err)
	}
	defer rows.Close()

	var sessions []models.SessionRecord
	for rows.Next() {
		var s models.SessionRecord
		var events *string

		err := rows.Scan(
			&s.ID,
			&s.SessionID,
			&s.StartedAt,
			&s.EndedAt,
			&s.AvgBPM,
			&s.MinBPM,
			&s.MaxBPM,
			&s.BeatCount,
			&s.EventCount,
			&events,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning session: %s", err)
		}

		if events != nil {
			s.Events = []byte(*events)
		}
		sessions = append(sessions, s)
	}

	return sessions, nil
}

// StoreArrhythmiaEvent stores a classified rhythm event
func (db *SQLiteClient) StoreArrhythmiaEvent(event *models.ArrhythmiaRecord) error {
	_, err := db.db.Exec(`
		INSERT INTO arrhythmia_events (session_id, type, timestamp, bpm, rr_ms)
		VALUES (?, ?, ?, ?, ?)`,
		event.SessionID,
		event.Type,
		event.Timestamp,
		event.BPM,
		event.RRMs,
	)
	if err != nil {
		return fmt.Errorf("error storing arrhythmia event: %s", err)
	}
	return nil
}

// GetArrhythmiaEvents retrieves events, optionally filtered by session
func (db *SQLiteClient) GetArrhythmiaEvents(sessionID string, limit int) ([]models.ArrhythmiaRecord, error) {
	if limit <= 0 {
		limit = 200
	}

	query := `
		SELECT id, session_id, type, timestamp, bpm, rr_ms
		FROM arrhythmia_events
	`
	args := []interface{}{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying arrhythmia events: %s", err)
	}
	defer rows.Close()

	var events []models.ArrhythmiaRecord
	for rows.Next() {
		var e models.ArrhythmiaRecord
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Type, &e.Timestamp, &e.BPM, &e.RRMs); err != nil {
			return nil, fmt.Errorf("error scanning arrhythmia event: %s", err)
		}
		events = append(events, e)
	}

	return events, nil
}
