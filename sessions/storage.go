package sessions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pulse-monitor/models"
	"pulse-monitor/utils"
)

var (
	sessionsFile = "sessions.json"
	mu           sync.RWMutex
)

// loadSessionsInternal loads all session summaries from the JSON file
// (without lock)
func loadSessionsInternal() ([]models.SessionRecord, error) {
	filePath := filepath.Join("data", sessionsFile)

	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		// Return empty slice if file doesn't exist
		return []models.SessionRecord{}, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading sessions file: %v", err)
	}

	if len(data) == 0 {
		return []models.SessionRecord{}, nil
	}

	var records []models.SessionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error unmarshaling sessions: %v", err)
	}

	return records, nil
}

// LoadSessions loads all session summaries from the JSON file
func LoadSessions() ([]models.SessionRecord, error) {
	mu.RLock()
	defer mu.RUnlock()
	return loadSessionsInternal()
}

// SaveSession appends a finished session summary to the JSON file
func SaveSession(record *models.SessionRecord) error {
	mu.Lock()
	defer mu.Unlock()

	// Load existing records (without lock since we already have write lock)
	records, err := loadSessionsInternal()
	if err != nil {
		return err
	}

	// Set ID and end time if not set
	if record.ID == 0 {
		record.ID = time.Now().UnixNano()
	}
	if record.EndedAt.IsZero() {
		record.EndedAt = time.Now()
	}

	records = append(records, *record)

	// Ensure directory exists
	filePath := filepath.Join("data", sessionsFile)
	dir := filepath.Dir(filePath)
	if dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return fmt.Errorf("error creating directory: %v", err)
		}
	}

	// Write back to file
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling sessions: %v", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("error writing sessions file: %v", err)
	}

	return nil
}
