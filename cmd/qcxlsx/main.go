// qcxlsx turns a qccollect capture (.bin or .csv) into an Excel workbook
// with a cumulative z-score line chart, for eyeballing bias in collected
// device output. Capture parameters are recovered from the file name
// convention produced by the naming package.
package main

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName       = "Zscore"
	onesColumnName  = "ones"
	blockColumnName = "samples"
	timeColumnName  = "time"
)

// sampleRow is one collected sample: its label (block number or time of
// day), the ones count, and the derived running statistics.
type sampleRow struct {
	Label          string
	Ones           int
	CumulativeMean float64
	ZScore         float64
}

var (
	intervalRe    = regexp.MustCompile(`_i(\d+)`)
	sampleBytesRe = regexp.MustCompile(`_s(\d+)_i`)
)

// findInterval extracts the sampling interval in seconds from the capture
// file name.
func findInterval(filePath string) (int, error) {
	m := intervalRe.FindStringSubmatch(filePath)
	if len(m) < 2 {
		return 0, fmt.Errorf("interval not found in file name: %s", filepath.Base(filePath))
	}
	return strconv.Atoi(m[1])
}

// findSampleBytes extracts the per-sample byte count from the capture file
// name.
func findSampleBytes(filePath string) (int, error) {
	m := sampleBytesRe.FindStringSubmatch(filePath)
	if len(m) < 2 {
		return 0, fmt.Errorf("sample size not found in file name: %s", filepath.Base(filePath))
	}
	return strconv.Atoi(m[1])
}

// readBinFile slices a raw capture into samples of sampleBytes bytes and
// counts the ones in each. A partial trailing sample is kept.
func readBinFile(filePath string, sampleBytes int) ([]sampleRow, error) {
	if sampleBytes <= 0 {
		return nil, errors.New("invalid sample size")
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	rows := make([]sampleRow, 0, 1024)
	buf := make([]byte, sampleBytes)
	block := 1
	for {
		n, err := io.ReadFull(reader, buf)
		if n > 0 {
			ones := 0
			for _, b := range buf[:n] {
				ones += bits.OnesCount8(b)
			}
			rows = append(rows, sampleRow{Label: strconv.Itoa(block), Ones: ones})
			block++
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, err
		}
	}
	return rows, nil
}

// readCSVFile reads a capture .csv with timestamp and ones-count columns.
// The timestamp becomes the row label, formatted as HH:MM:SS.
func readCSVFile(filePath string) ([]sampleRow, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	rows := make([]sampleRow, 0, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		onesStr := strings.TrimSpace(rec[1])
		ones, err := strconv.Atoi(onesStr)
		if err != nil {
			return nil, fmt.Errorf("invalid ones value %q: %w", onesStr, err)
		}
		rows = append(rows, sampleRow{Label: formatTimeLabel(strings.TrimSpace(rec[0])), Ones: ones})
	}
	return rows, nil
}

// formatTimeLabel renders a capture timestamp as HH:MM:SS, passing through
// strings it cannot parse.
func formatTimeLabel(s string) string {
	formats := []string{
		"20060102T15:04:05",
		time.RFC3339,
		"2006-01-02 15:04:05",
		"15:04:05",
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05")
		}
	}
	return s
}

// applyZTest fills in the cumulative mean of ones and its z-score per row,
// against the fair-coin expectation for bitsPerSample bits:
//
//	expected mean = bits/2, expected stddev = sqrt(bits/4)
//	z_i = (cum_mean_i - mean) / (stddev / sqrt(i+1))
func applyZTest(rows []sampleRow, bitsPerSample int) []sampleRow {
	expectedMean := 0.5 * float64(bitsPerSample)
	expectedStdDev := math.Sqrt(float64(bitsPerSample) * 0.25)
	if expectedStdDev == 0 {
		return rows
	}
	sum := 0
	for i := range rows {
		sum += rows[i].Ones
		cumMean := float64(sum) / float64(i+1)
		z := (cumMean - expectedMean) / (expectedStdDev / math.Sqrt(float64(i+1)))
		rows[i].CumulativeMean = cumMean
		rows[i].ZScore = z
	}
	return rows
}

// writeWorkbook writes the rows and a z-score line chart next to the input
// file, swapping its extension for .xlsx.
func writeWorkbook(rows []sampleRow, filePath string, bitsPerSample, intervalSec int, firstColumnHeader string) error {
	if len(rows) == 0 {
		return errors.New("no data to write")
	}
	fileToSave := strings.TrimSuffix(filePath, filepath.Ext(filePath)) + ".xlsx"
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	if defaultSheet != sheetName {
		f.NewSheet(sheetName)
		f.DeleteSheet(defaultSheet)
	}

	_ = f.SetCellStr(sheetName, "A1", firstColumnHeader)
	_ = f.SetCellStr(sheetName, "B1", onesColumnName)
	_ = f.SetCellStr(sheetName, "C1", "cumulative_mean")
	_ = f.SetCellStr(sheetName, "D1", "z_test")

	for i, r := range rows {
		rowIdx := i + 2
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowIdx), r.Label)
		_ = f.SetCellInt(sheetName, fmt.Sprintf("B%d", rowIdx), r.Ones)
		_ = f.SetCellFloat(sheetName, fmt.Sprintf("C%d", rowIdx), r.CumulativeMean, 6, 64)
		_ = f.SetCellFloat(sheetName, fmt.Sprintf("D%d", rowIdx), r.ZScore, 6, 64)
	}

	endRow := len(rows) + 1
	chart := &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("%s!$D$1", sheetName),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheetName, endRow),
				Values:     fmt.Sprintf("%s!$D$2:$D$%d", sheetName, endRow),
			},
		},
		Title:  []excelize.RichTextRun{{Text: filepath.Base(filePath)}},
		Legend: excelize.ChartLegend{Position: "none"},
		XAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: fmt.Sprintf("Samples - one every %d second(s)", intervalSec)}}},
		YAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: fmt.Sprintf("Z-score - sample size %d bits", bitsPerSample)}}, MajorGridLines: true},
	}
	if err := f.AddChart(sheetName, "F2", chart); err != nil {
		return err
	}

	return f.SaveAs(fileToSave)
}

// run parses the capture parameters from the name, reads the data, computes
// the running z-test, and writes the workbook.
func run(filePath string) error {
	intervalSec, err := findInterval(filePath)
	if err != nil {
		return err
	}
	sampleBytes, err := findSampleBytes(filePath)
	if err != nil {
		return err
	}
	bitsPerSample := sampleBytes * 8

	var rows []sampleRow
	firstHeader := blockColumnName
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".bin":
		rows, err = readBinFile(filePath, sampleBytes)
	case ".csv":
		rows, err = readCSVFile(filePath)
		firstHeader = timeColumnName
	default:
		return fmt.Errorf("unsupported file type: %s", filepath.Ext(filePath))
	}
	if err != nil {
		return err
	}

	rows = applyZTest(rows, bitsPerSample)
	return writeWorkbook(rows, filePath, bitsPerSample, intervalSec, firstHeader)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: qcxlsx <capture .bin or .csv>")
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
