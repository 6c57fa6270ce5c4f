package audit

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRow struct {
	ID         int64  `parquet:"name=id, type=INT64"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProposalID int64  `parquet:"name=proposal_id, type=INT64"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
	RecordedAt string `parquet:"name=recorded_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportParquet writes the records matching filter to path and returns the
// number of rows written. A zero limit exports every matching record.
func (s *Store) ExportParquet(ctx context.Context, path string, filter Filter) (int, error) {
	if filter.Limit <= 0 {
		var total int64
		if err := s.db.WithContext(ctx).Model(&Record{}).Count(&total).Error; err != nil {
			return 0, fmt.Errorf("audit: count: %w", err)
		}
		filter.Limit = int(total) + 1
	}
	records, err := s.List(ctx, filter)
	if err != nil {
		return 0, err
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("audit: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("audit: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, record := range records {
		row := &parquetRow{
			ID:         int64(record.ID),
			Type:       record.Type,
			ProposalID: int64(record.ProposalID),
			Attributes: record.Attributes,
			RecordedAt: record.RecordedAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return 0, fmt.Errorf("audit: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return 0, fmt.Errorf("audit: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("audit: close parquet file: %w", err)
	}
	return len(records), nil
}
