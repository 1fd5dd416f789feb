// Package report writes the results of stress runs in json, csv or txt.
package report

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RowanDark/internpool/config"
	"github.com/RowanDark/internpool/stats"
)

// Run captures one interning round.
type Run struct {
	Label      string         `json:"label"`
	Timestamp  string         `json:"timestamp"`
	Workers    int            `json:"workers"`
	Words      int            `json:"words"`
	Distinct   int            `json:"distinct"`
	DurationMS float64        `json:"duration_ms"`
	Mismatches int            `json:"identity_mismatches"`
	Stats      stats.Snapshot `json:"stats"`
}

// SetDuration records d in milliseconds.
func (r *Run) SetDuration(d time.Duration) {
	r.DurationMS = float64(d) / float64(time.Millisecond)
}

// Writer serialises runs to stdout or a file in a configured format.
type Writer struct {
	format        config.Format
	destination   io.Writer
	closer        io.Closer
	csvWriter     *csv.Writer
	csvHeaderSent bool
	encoder       *json.Encoder
	buffered      *bufio.Writer
}

// Open creates a writer for the output path and format in cfg. An empty output
// path writes to stdout.
func Open(cfg *config.Config) (*Writer, error) {
	if cfg.LiveOutput() {
		return NewWriter(os.Stdout, cfg.Format, cfg.JSONPretty)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o755); err != nil && !os.IsExist(err) {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	file, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("opening output file: %w", err)
	}

	writer, err := NewWriter(file, cfg.Format, cfg.JSONPretty)
	if err != nil {
		file.Close()
		return nil, err
	}
	writer.closer = file
	return writer, nil
}

// NewWriter writes runs to dest. The writer never closes dest.
func NewWriter(dest io.Writer, format config.Format, pretty bool) (*Writer, error) {
	writer := &Writer{format: format}

	switch format {
	case config.FormatJSON:
		writer.encoder = json.NewEncoder(dest)
		writer.encoder.SetEscapeHTML(false)
		if pretty {
			writer.encoder.SetIndent("", "    ")
		}
	case config.FormatCSV:
		writer.csvWriter = csv.NewWriter(dest)
	case config.FormatTXT:
		if buf, ok := dest.(*bufio.Writer); ok {
			writer.buffered = buf
		} else {
			writer.buffered = bufio.NewWriter(dest)
		}
		dest = writer.buffered
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	writer.destination = dest
	return writer, nil
}

// WriteRun persists a single run using the configured format.
func (w *Writer) WriteRun(run Run) error {
	if run.Timestamp == "" {
		run.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	switch w.format {
	case config.FormatJSON:
		return w.encoder.Encode(run)
	case config.FormatCSV:
		return w.writeCSVRun(run)
	case config.FormatTXT:
		return w.writeTXTRun(run)
	default:
		return fmt.Errorf("unsupported output format: %s", w.format)
	}
}

var csvHeader = []string{
	"label", "timestamp", "workers", "words", "distinct", "duration_ms", "identity_mismatches",
	"shards", "entries", "stale", "hits", "installs", "reinstalls", "swept", "reclaimed", "sweeps", "rejected",
}

func (w *Writer) writeCSVRun(run Run) error {
	if w.csvWriter == nil {
		return fmt.Errorf("csv writer not initialised")
	}

	if !w.csvHeaderSent {
		if err := w.csvWriter.Write(csvHeader); err != nil {
			return err
		}
		w.csvHeaderSent = true
	}

	s := run.Stats
	row := []string{
		run.Label,
		run.Timestamp,
		strconv.Itoa(run.Workers),
		strconv.Itoa(run.Words),
		strconv.Itoa(run.Distinct),
		strconv.FormatFloat(run.DurationMS, 'f', 3, 64),
		strconv.Itoa(run.Mismatches),
		strconv.Itoa(s.Shards),
		strconv.Itoa(s.Entries),
		strconv.Itoa(s.Stale),
		strconv.FormatUint(s.Hits, 10),
		strconv.FormatUint(s.Installs, 10),
		strconv.FormatUint(s.Reinstalls, 10),
		strconv.FormatUint(s.Swept, 10),
		strconv.FormatUint(s.Reclaimed, 10),
		strconv.FormatUint(s.Sweeps, 10),
		strconv.FormatUint(s.Rejected, 10),
	}

	if err := w.csvWriter.Write(row); err != nil {
		return err
	}
	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

func (w *Writer) writeTXTRun(run Run) error {
	if w.destination == nil {
		return fmt.Errorf("txt writer not initialised")
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Run: %s\n", run.Label))
	builder.WriteString(fmt.Sprintf("Timestamp: %s\n", run.Timestamp))
	builder.WriteString(fmt.Sprintf("Workers: %d\n", run.Workers))
	builder.WriteString(fmt.Sprintf("Words: %d (%d distinct)\n", run.Words, run.Distinct))
	builder.WriteString(fmt.Sprintf("Duration: %.3fms\n", run.DurationMS))
	builder.WriteString(fmt.Sprintf("Identity mismatches: %d\n", run.Mismatches))
	builder.WriteString(fmt.Sprintf("Pool: %s\n", run.Stats.Render()))
	builder.WriteString("\n")

	if _, err := fmt.Fprint(w.destination, builder.String()); err != nil {
		return err
	}

	if w.buffered != nil {
		return w.buffered.Flush()
	}

	return nil
}

// Close flushes any buffered data and closes owned file handles.
func (w *Writer) Close() error {
	if w.csvWriter != nil {
		w.csvWriter.Flush()
		if err := w.csvWriter.Error(); err != nil {
			return err
		}
	}

	if w.buffered != nil {
		if err := w.buffered.Flush(); err != nil {
			return err
		}
	}

	if w.closer != nil {
		return w.closer.Close()
	}

	return nil
}
