package dataset

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rojenarda/electricity-data-fetching-tr/internal/table"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type schemaNode struct {
	Tag    string       `json:"Tag"`
	Fields []schemaNode `json:"Fields,omitempty"`
}

// parquetSchema builds a parquet-go JSON schema: the timestamp as text and
// unix seconds, then one optional DOUBLE per dataset column.
func parquetSchema(columns []string) (string, error) {
	root := schemaNode{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	root.Fields = append(root.Fields,
		schemaNode{Tag: "name=Date, inname=Date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY, repetitiontype=REQUIRED"},
		schemaNode{Tag: "name=Timestamp, inname=Timestamp, type=INT64, encoding=DELTA_BINARY_PACKED, repetitiontype=REQUIRED"},
	)
	for _, c := range columns {
		if strings.ContainsAny(c, ", =") {
			return "", fmt.Errorf("column name %q cannot be used in a parquet schema", c)
		}
		root.Fields = append(root.Fields, schemaNode{
			Tag: fmt.Sprintf("name=%s, inname=%s, type=DOUBLE, encoding=PLAIN, repetitiontype=OPTIONAL", c, c),
		})
	}
	b, err := json.Marshal(root)
	return string(b), err
}

// ExportParquet converts a CSV dataset into one parquet file per month under
// outDir and returns the written file names.
func ExportParquet(csvPath, outDir string, loc *time.Location) ([]string, error) {
	frame, err := ReadFrame(csvPath, loc)
	if err != nil {
		return nil, err
	}
	if frame.Len() == 0 {
		log.Printf("No rows to convert in %s", csvPath)
		return nil, nil
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parquet directory: %w", err)
	}

	schema, err := parquetSchema(frame.Columns())
	if err != nil {
		return nil, err
	}

	// Group rows by month to create separate files
	rowsByYearMonth := make(map[string][]int)
	for i, ts := range frame.Index {
		yearMonth := ts.Format("2006-01")
		rowsByYearMonth[yearMonth] = append(rowsByYearMonth[yearMonth], i)
	}
	months := make([]string, 0, len(rowsByYearMonth))
	for m := range rowsByYearMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	base := strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))
	var written []string
	for _, yearMonth := range months {
		filename := filepath.Join(outDir, fmt.Sprintf("%s_%s.parquet", base, yearMonth))
		if err := writeMonth(filename, schema, frame, rowsByYearMonth[yearMonth]); err != nil {
			return written, fmt.Errorf("failed to write parquet file: %w", err)
		}
		log.Printf("Converted %d rows to parquet for %s: %s", len(rowsByYearMonth[yearMonth]), yearMonth, filename)
		written = append(written, filename)
	}

	return written, nil
}

func writeMonth(filename, schema string, frame *table.Frame, rows []int) error {
	fw, err := local.NewLocalFileWriter(filename)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewJSONWriter(schema, fw, 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_GZIP
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024

	columns := frame.Columns()
	for _, row := range rows {
		ts := frame.Index[row]
		rec := map[string]interface{}{
			"Date":      ts.Format(TimeLayout),
			"Timestamp": ts.Unix(),
		}
		for _, c := range columns {
			v := frame.Column(c)[row]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				rec[c] = nil
				continue
			}
			rec[c] = v
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode row: %w", err)
		}
		if err := pw.Write(string(b)); err != nil {
			return fmt.Errorf("failed to write parquet data: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}
