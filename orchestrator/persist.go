package orchestrator

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maastricht-university/meeting-conflicts/store"
)

const (
	AlignedFile   = "aligned_speech_text.csv"
	ConflictsFile = "conflict_results.csv"
	ReportFile    = "report.json"
	MetricsFile   = "metrics.json"
)

func mkSessionDir(outputsRoot, runID string) (string, error) {
	ts := time.Now().Format("20060102-150405")
	sid := "session_" + ts
	if len(runID) >= 8 {
		sid += "_" + runID[:8]
	}
	dir := filepath.Join(outputsRoot, sid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if header != nil {
		if err := w.Write(header); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// WriteAligned writes the attributed utterances as CSV.
func WriteAligned(path string, r *Report) error {
	rows := make([][]string, len(r.Utterances))
	for i, u := range r.Utterances {
		rows[i] = []string{fixed(u.Start, 3), fixed(u.End, 3), u.SpeakerID, u.Text}
	}
	return writeCSV(path, []string{"start_time", "end_time", "speaker_id", "text"}, rows)
}

// WriteConflicts writes the flagged pairs as CSV. When conflict detection was
// skipped for lack of candidates the file is left empty.
func WriteConflicts(path string, r *Report) error {
	if r.Status == StatusInsufficientCandidates {
		return writeCSV(path, nil, nil)
	}
	rows := make([][]string, len(r.Conflicts))
	for i, p := range r.Conflicts {
		rows[i] = []string{p.Text1, p.Text2, fixed(p.Probability, 4)}
	}
	return writeCSV(path, []string{"text1", "text2", "conflict_prob"}, rows)
}

// Persist writes the run artifacts into a fresh session directory under
// outputsRoot and returns that directory.
func Persist(outputsRoot string, r *Report) (string, error) {
	dir, err := mkSessionDir(outputsRoot, r.RunID)
	if err != nil {
		return "", fmt.Errorf("persist: %w", err)
	}
	if err := WriteAligned(filepath.Join(dir, AlignedFile), r); err != nil {
		return "", fmt.Errorf("persist %s: %w", AlignedFile, err)
	}
	if err := WriteConflicts(filepath.Join(dir, ConflictsFile), r); err != nil {
		return "", fmt.Errorf("persist %s: %w", ConflictsFile, err)
	}
	if err := writeJSON(filepath.Join(dir, ReportFile), r); err != nil {
		return "", fmt.Errorf("persist %s: %w", ReportFile, err)
	}
	if r.Metrics != nil {
		if err := writeJSON(filepath.Join(dir, MetricsFile), r.Metrics); err != nil {
			return "", fmt.Errorf("persist %s: %w", MetricsFile, err)
		}
	}
	return dir, nil
}

// RunRecord is the run-history row for a report persisted into dir.
func RunRecord(r *Report, dir string) store.Run {
	return store.Run{
		ID:          r.RunID,
		Fingerprint: r.Fingerprint,
		CreatedAt:   r.GeneratedAt,
		Status:      r.Status,
		Utterances:  len(r.Utterances),
		Candidates:  len(r.Candidates),
		Conflicts:   len(r.Conflicts),
		SessionDir:  dir,
		Warnings:    r.Warnings,
		Metrics:     r.Metrics,
	}
}
