package utils

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

// CreateFolder creates the directory (and parents) if it does not exist.
func CreateFolder(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", path, err)
		}
	}
	return nil
}

// GenerateUniqueID returns a random 32-bit identifier.
func GenerateUniqueID() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to time
		return uint32(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint32(buf[:])
}

// GenerateSessionID returns a printable identifier for a monitoring session.
func GenerateSessionID() string {
	return fmt.Sprintf("session_%d_%08x", time.Now().Unix(), GenerateUniqueID())
}
