package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CSVStore keeps records in a header-prefixed CSV file.
// The file is created by the first Append; nothing else ever writes to it.
type CSVStore struct {
	path   string
	mu     sync.Mutex
	last   time.Time
	now    func() time.Time
	logger zerolog.Logger
}

func NewCSVStore(path string, logger zerolog.Logger) *CSVStore {
	return &CSVStore{
		path:   path,
		now:    time.Now,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Append stamps rec with the current local time and writes it as one row,
// preceded by the header when the file is empty. The header check and the
// write happen under the store lock, so concurrent appends never duplicate
// the header or interleave rows.
func (s *CSVStore) Append(rec Record) (Record, error) {
	if rec.Location == "" || rec.RemoteAddress == "" || rec.LocalAddress == "" {
		return Record{}, ErrIncompleteRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Record{}, fmt.Errorf("ensure store dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Record{}, fmt.Errorf("open append: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close store after append")
		}
	}(f)

	st, err := f.Stat()
	if err != nil {
		return Record{}, fmt.Errorf("stat store: %w", err)
	}
	empty := st.Size() == 0
	if s.last.IsZero() && !empty {
		s.last = s.lastTimestampUnlocked()
	}

	rec = normalize(rec)
	rec.Timestamp = s.now().Truncate(time.Second)
	if rec.Timestamp.Before(s.last) {
		rec.Timestamp = s.last
	}

	// The whole row is encoded before anything reaches the file.
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if empty {
		if err := w.Write(Header); err != nil {
			return Record{}, fmt.Errorf("encode header: %w", err)
		}
	}
	if err := w.Write(FormatRow(rec)); err != nil {
		return Record{}, fmt.Errorf("encode row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Record{}, fmt.Errorf("encode row: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return Record{}, fmt.Errorf("write row: %w", err)
	}
	s.last = rec.Timestamp
	return rec, nil
}

// Scan returns records whose Location equals location, or every record when
// location is empty, in append order.
func (s *CSVStore) Scan(location string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAllUnlocked()
	if err != nil {
		return nil, err
	}
	if location == "" {
		return all, nil
	}
	var out []Record
	for _, rec := range all {
		if rec.Location == location {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatchingRecords, location)
	}
	return out, nil
}

func (s *CSVStore) readAllUnlocked() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoStore
		}
		return nil, fmt.Errorf("open read: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	records := []Record{}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				s.logger.Warn().Err(err).Msg("skipping malformed row")
				continue
			}
			return nil, fmt.Errorf("read row: %w", err)
		}
		rec, err := ParseRow(row)
		if err != nil {
			s.logger.Warn().Err(err).Strs("row", row).Msg("skipping unparsable row")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *CSVStore) lastTimestampUnlocked() time.Time {
	all, err := s.readAllUnlocked()
	if err != nil || len(all) == 0 {
		return time.Time{}
	}
	return all[len(all)-1].Timestamp
}

// FormatRow renders rec in column order with two-decimal numerics.
func FormatRow(rec Record) []string {
	return []string{
		rec.Timestamp.Format(TimeLayout),
		rec.Location,
		rec.RemoteAddress,
		rec.LocalAddress,
		strconv.FormatFloat(rec.DownloadMbps, 'f', 2, 64),
		strconv.FormatFloat(rec.UploadMbps, 'f', 2, 64),
		strconv.FormatFloat(rec.LatencyMs, 'f', 2, 64),
	}
}

// ParseRow is the inverse of FormatRow. Dates are read in the host's local zone.
func ParseRow(row []string) (Record, error) {
	if len(row) != len(Header) {
		return Record{}, fmt.Errorf("want %d columns, got %d", len(Header), len(row))
	}
	ts, err := time.ParseInLocation(TimeLayout, row[0], time.Local)
	if err != nil {
		return Record{}, fmt.Errorf("parse date: %w", err)
	}
	var nums [3]float64
	for i, col := range row[4:] {
		v, err := strconv.ParseFloat(col, 64)
		if err != nil {
			return Record{}, fmt.Errorf("parse %s: %w", Header[4+i], err)
		}
		nums[i] = v
	}
	return Record{
		Timestamp:     ts,
		Location:      row[1],
		RemoteAddress: row[2],
		LocalAddress:  row[3],
		DownloadMbps:  nums[0],
		UploadMbps:    nums[1],
		LatencyMs:     nums[2],
	}, nil
}

func normalize(rec Record) Record {
	rec.DownloadMbps = round2(rec.DownloadMbps)
	rec.UploadMbps = round2(rec.UploadMbps)
	rec.LatencyMs = round2(rec.LatencyMs)
	return rec
}

// round2 rounds to the displayed precision; negatives and NaN become zero.
func round2(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Round(v*100) / 100
}
