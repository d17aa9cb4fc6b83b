package db

import (
	"fmt"
	"strings"

	"pulse-monitor/models"
	"pulse-monitor/utils"
)

// DBClient abstracts the persistence backend for session summaries and
// arrhythmia events. Two implementations exist: SQLite (default, zero-setup)
// and MongoDB for shared deployments.
type DBClient interface {
	Close() error

	StoreSession(session *models.SessionRecord) error
	GetRecentSessions(limit int) ([]models.SessionRecord, error)

	StoreArrhythmiaEvent(event *models.ArrhythmiaRecord) error
	GetArrhythmiaEvents(sessionID string, limit int) ([]models.ArrhythmiaRecord, error)
}

// NewDBClient selects the backend from the DB_TYPE environment variable.
func NewDBClient() (DBClient, error) {
	dbType := strings.ToLower(utils.GetEnv("DB_TYPE", "sqlite"))

	switch dbType {
	case "sqlite", "":
		return NewSQLiteClient(utils.GetEnv("SQLITE_DB_PATH", "db/pulse.db?cache=shared&mode=rwc"))
	case "mongo", "mongodb":
		return NewMongoClient(
			utils.GetEnv("DB_URI", "mongodb://localhost:27017"),
			utils.GetEnv("DB_NAME", "pulse-monitor"),
		)
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE: %s", dbType)
	}
}
