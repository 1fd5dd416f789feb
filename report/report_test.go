package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RowanDark/internpool/config"
	"github.com/RowanDark/internpool/stats"
)

func sampleRun(label string) Run {
	run := Run{
		Label:      label,
		Workers:    4,
		Words:      1000,
		Distinct:   250,
		Mismatches: 0,
		Stats:      stats.Snapshot{Shards: 16, Entries: 250, Hits: 3750, Installs: 250},
	}
	run.SetDuration(1500 * time.Microsecond)
	return run
}

func TestJSONWriter(t *testing.T) {
	cfg := &config.Config{Format: config.FormatJSON, OutputPath: filepath.Join(t.TempDir(), "nested", "out.json")}
	writer, err := Open(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := writer.WriteRun(sampleRun("round-1")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	runs, err := LoadRuns(cfg.OutputPath)
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected single run, got %d", len(runs))
	}
	if runs[0].Timestamp == "" {
		t.Fatalf("expected timestamp to be populated")
	}
	if runs[0].DurationMS != 1.5 || runs[0].Stats.Hits != 3750 {
		t.Fatalf("unexpected decoded run %+v", runs[0])
	}
}

func TestJSONWriterPretty(t *testing.T) {
	var buf bytes.Buffer
	writer, err := NewWriter(&buf, config.FormatJSON, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := writer.WriteRun(sampleRun("pretty")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.Contains(buf.String(), "\n    \"label\"") {
		t.Fatalf("expected pretty-printed json, got: %s", buf.String())
	}
}

func TestCSVWriterWritesHeaderOnce(t *testing.T) {
	cfg := &config.Config{Format: config.FormatCSV, OutputPath: filepath.Join(t.TempDir(), "out.csv")}
	writer, err := Open(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, label := range []string{"round-1", "round-2"} {
		if err := writer.WriteRun(sampleRun(label)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	file, err := os.Open(cfg.OutputPath)
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and two rows, got %d", len(rows))
	}
	if rows[0][0] != "label" || rows[2][0] != "round-2" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if len(rows[1]) != len(csvHeader) {
		t.Fatalf("expected %d columns, got %d", len(csvHeader), len(rows[1]))
	}
}

func TestTXTWriter(t *testing.T) {
	var buf bytes.Buffer
	writer, err := NewWriter(&buf, config.FormatTXT, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := writer.WriteRun(sampleRun("round-3")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	content := buf.String()
	for _, want := range []string{"Run: round-3", "Words: 1000 (250 distinct)", "Identity mismatches: 0", "hit_rate=93.8%"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in txt output: %s", want, content)
		}
	}
}

func TestNewWriterRejectsUnknownFormat(t *testing.T) {
	if _, err := NewWriter(&bytes.Buffer{}, config.Format("xml"), false); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestLoadRunsJSONArray(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "runs.json")
	runs := []Run{sampleRun("a"), sampleRun("b")}
	data, err := json.Marshal(runs)
	if err != nil {
		t.Fatalf("marshal runs: %v", err)
	}
	if err := os.WriteFile(tmp, append([]byte("\n  "), data...), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	loaded, err := LoadRuns(tmp)
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(loaded) != 2 || loaded[1].Label != "b" {
		t.Fatalf("unexpected runs %+v", loaded)
	}
}

func TestReadRunsEmpty(t *testing.T) {
	runs, err := ReadRuns(strings.NewReader("   \n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runs != nil {
		t.Fatalf("expected no runs, got %v", runs)
	}
}
