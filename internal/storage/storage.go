package storage

import (
	"errors"
	"time"
)

// TimeLayout is the on-disk format of the Date column.
const TimeLayout = "2006-01-02 15:04:05"

// Header is the fixed column set of the record log and of every derived export.
var Header = []string{"Date", "Location", "Public IP", "Local IP", "Download (Mbps)", "Upload (Mbps)", "Ping (ms)"}

var (
	// ErrNoStore is returned by Scan when nothing has been recorded yet.
	ErrNoStore = errors.New("record store does not exist")
	// ErrNoMatchingRecords is returned by Scan when a location filter matches no rows.
	ErrNoMatchingRecords = errors.New("no records for location")
	// ErrIncompleteRecord is returned by Append for a record with an empty text field.
	ErrIncompleteRecord = errors.New("incomplete record")
)

// Record is a single completed speed test.
// Records are appended in chronological order and never rewritten.
type Record struct {
	Timestamp     time.Time
	Location      string
	RemoteAddress string
	LocalAddress  string
	DownloadMbps  float64
	UploadMbps    float64
	LatencyMs     float64
}

// Store abstracts persistence of measurement records.
// Scan with an empty location returns every record in append order.
// Implementations must be safe for concurrent use.
type Store interface {
	Append(rec Record) (Record, error)
	Scan(location string) ([]Record, error)
	Exists() bool
}
