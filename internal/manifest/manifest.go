// Package manifest exports the curated dataset as a single table: one row
// per image with its caption, so a training run or a notebook can load the
// whole set without walking the directory.
package manifest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/earthback/loraprep/internal/caption"
	"github.com/earthback/loraprep/internal/dedup"
	"github.com/earthback/loraprep/internal/imaging"
)

// DefaultFile is written next to the curated images.
const DefaultFile = "manifest.parquet"

// Row is one curated image.
type Row struct {
	File        string `json:"file" parquet:"file"`
	Caption     string `json:"caption" parquet:"caption"`
	Width       int32  `json:"width" parquet:"width"`
	Height      int32  `json:"height" parquet:"height"`
	Bytes       int64  `json:"bytes" parquet:"bytes"`
	Fingerprint string `json:"fingerprint" parquet:"fingerprint"`
}

// Build reads every curated image in dir with its sidecar caption. Images
// without a caption get an empty one and are counted in missing.
func Build(dir string) (rows []Row, missing int, err error) {
	images, err := caption.ListImages(dir)
	if err != nil {
		return nil, 0, err
	}

	for _, path := range images {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
		}

		row := Row{
			File:        filepath.Base(path),
			Bytes:       int64(len(data)),
			Fingerprint: dedup.Sum(data).String(),
		}
		if cfg, _, err := imaging.DecodeConfig(data); err == nil {
			row.Width = int32(cfg.Width)
			row.Height = int32(cfg.Height)
		} else {
			slog.Warn("Could not read image size", "file", row.File, "error", err)
		}

		text, ok, err := caption.ReadSidecar(path)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			missing++
		}
		row.Caption = text

		rows = append(rows, row)
	}

	slog.Debug("Built manifest", "dir", dir, "rows", len(rows), "missing_captions", missing)
	return rows, missing, nil
}

// Write stores rows at path; the format follows the extension (.parquet or
// .jsonl).
func Write(path string, rows []Row) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		return writeParquet(path, rows)
	case ".jsonl", ".json":
		return writeJSONL(path, rows)
	default:
		return fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
}

func writeParquet(path string, rows []Row) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[Row](file)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

func writeJSONL(path string, rows []Row) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for _, row := range rows {
		if err := encoder.Encode(row); err != nil {
			return fmt.Errorf("failed to encode row %s: %w", row.File, err)
		}
	}
	return w.Flush()
}

// Read loads a manifest written by Write.
func Read(path string) ([]Row, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		return readParquet(path)
	case ".jsonl", ".json":
		return readJSONL(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
}

func readParquet(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}
	slog.Debug("Parquet file opened", "path", path, "num_rows", pf.NumRows())

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	var rows []Row
	batch := make([]Row, 128)
	for {
		n, err := reader.Read(batch)
		if n > 0 {
			rows = append(rows, batch[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return rows, nil
}

func readJSONL(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	var rows []Row
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var row Row
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	return rows, nil
}

// Totals sums bytes and counts captioned rows.
func Totals(rows []Row) (bytes int64, captioned int) {
	for _, r := range rows {
		bytes += r.Bytes
		if r.Caption != "" {
			captioned++
		}
	}
	return bytes, captioned
}
