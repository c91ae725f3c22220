package storage

import "time"

// ProcessedFile links the checksum of an imported file to the book it produced.
type ProcessedFile struct {
	CheckSum   []byte
	BookID     string
	Name       string
	ImportedAt time.Time
}
