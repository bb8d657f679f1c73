package local

import (
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
)

// parquetRecord is the flat schema of one derived record in the audit
// export. Timestamps are stored as epoch milliseconds.
type parquetRecord struct {
	ActivityID      string  `parquet:"name=activity_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	SubjectID       string  `parquet:"name=subject_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	ConfigurationID string  `parquet:"name=configuration_id,type=BYTE_ARRAY,convertedtype=UTF8"`
	Date            int64   `parquet:"name=date,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	AcuteLoad       float64 `parquet:"name=acute_load,type=DOUBLE"`
	ChronicLoad     float64 `parquet:"name=chronic_load,type=DOUBLE"`
	Ratio           float64 `parquet:"name=ratio,type=DOUBLE"`
	ComputedAt      int64   `parquet:"name=computed_at,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
}

// exportParquet writes the records to path as a single-row-group parquet
// file with snappy compression.
func exportParquet(path string, records []model.DerivedRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer f.Close()

	pw, err := writer.NewParquetWriterFromWriter(f, new(parquetRecord), int64(len(records)))
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	// The library panics on some malformed schemas; convert that to an error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked: %v", r)
		}
	}()

	for _, r := range records {
		row := parquetRecord{
			ActivityID:      r.ActivityID,
			SubjectID:       r.SubjectID,
			ConfigurationID: r.ConfigurationID,
			Date:            r.Date.UnixMilli(),
			AcuteLoad:       r.AcuteLoad,
			ChronicLoad:     r.ChronicLoad,
			Ratio:           r.Ratio,
			ComputedAt:      r.ComputedAt.UnixMilli(),
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("failed to write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}
