package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/latticesim/contact-sim/sim/sweep"
)

var csvColumns = []string{
	"lambda", "alpha", "replicas", "extinct", "survived", "failed",
	"extinction_fraction", "mean_active", "stddev_active", "stderr_active", "mean_steps",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes a header row and one row per point.
func WriteCSV(w io.Writer, results []sweep.PointResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i, r := range results {
		row := []string{
			formatFloat(r.Lambda),
			formatFloat(r.Alpha),
			strconv.Itoa(r.Replicas),
			strconv.Itoa(r.Extinct),
			strconv.Itoa(r.Survived),
			strconv.Itoa(r.Failed),
			formatFloat(r.ExtinctionFraction),
			formatFloat(r.MeanActive),
			formatFloat(r.StdDevActive),
			formatFloat(r.StdErrActive),
			formatFloat(r.MeanSteps),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes results to path, zstd-compressed when path ends in ".zst".
func WriteCSVFile(path string, results []sweep.PointResult) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	if !strings.HasSuffix(path, ".zst") {
		return WriteCSV(file, results)
	}
	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := WriteCSV(enc, results); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadCSV parses rows produced by WriteCSV. The statistics columns are read
// back verbatim; Err is not persisted.
func ReadCSV(r io.Reader) ([]sweep.PointResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvColumns)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("reading CSV: missing header")
	}
	if strings.Join(rows[0], ",") != strings.Join(csvColumns, ",") {
		return nil, fmt.Errorf("unexpected CSV header %q", strings.Join(rows[0], ","))
	}

	results := make([]sweep.PointResult, 0, len(rows)-1)
	for i, row := range rows[1:] {
		var r sweep.PointResult
		floats := []*float64{&r.Lambda, &r.Alpha, &r.ExtinctionFraction, &r.MeanActive, &r.StdDevActive, &r.StdErrActive, &r.MeanSteps}
		floatCols := []int{0, 1, 6, 7, 8, 9, 10}
		for k, col := range floatCols {
			v, err := strconv.ParseFloat(row[col], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+1, csvColumns[col], err)
			}
			*floats[k] = v
		}
		ints := []*int{&r.Replicas, &r.Extinct, &r.Survived, &r.Failed}
		for k, col := range []int{2, 3, 4, 5} {
			v, err := strconv.Atoi(row[col])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+1, csvColumns[col], err)
			}
			*ints[k] = v
		}
		results = append(results, r)
	}
	return results, nil
}

// ReadCSVFile reads a file written by WriteCSVFile.
func ReadCSVFile(path string) ([]sweep.PointResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	if !strings.HasSuffix(path, ".zst") {
		return ReadCSV(file)
	}
	dec, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return ReadCSV(dec)
}
