package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"speedtest-bot/internal/storage"
)

// ParquetRow mirrors the CSV columns for columnar exports.
type ParquetRow struct {
	Date         string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Location     string  `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8"`
	PublicIP     string  `parquet:"name=public_ip, type=BYTE_ARRAY, convertedtype=UTF8"`
	LocalIP      string  `parquet:"name=local_ip, type=BYTE_ARRAY, convertedtype=UTF8"`
	DownloadMbps float64 `parquet:"name=download_mbps, type=DOUBLE"`
	UploadMbps   float64 `parquet:"name=upload_mbps, type=DOUBLE"`
	PingMs       float64 `parquet:"name=ping_ms, type=DOUBLE"`
}

func toParquetRow(rec storage.Record) ParquetRow {
	return ParquetRow{
		Date:         rec.Timestamp.Format(storage.TimeLayout),
		Location:     rec.Location,
		PublicIP:     rec.RemoteAddress,
		LocalIP:      rec.LocalAddress,
		DownloadMbps: rec.DownloadMbps,
		UploadMbps:   rec.UploadMbps,
		PingMs:       rec.LatencyMs,
	}
}

// WriteParquet writes recs to path as a single-row-group Parquet file.
func WriteParquet(path string, recs []storage.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(ParquetRow), 1)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	for _, rec := range recs {
		if err := pw.Write(toParquetRow(rec)); err != nil {
			_ = fw.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to stop parquet writer: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	return nil
}
