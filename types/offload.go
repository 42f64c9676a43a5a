package types

import "time"

// OffloadRecord registers one tool-result payload moved out of the inline
// history into a file. Persisted alongside the session index so a cleanup
// pass can find orphaned files.
type OffloadRecord struct {
	OriginalID string    `json:"original_id"`
	SessionKey string    `json:"session_key"`
	FilePath   string    `json:"file_path"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}
