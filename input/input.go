// Package input reads transcript, speaker and labelled-conflict files.
//
// Files are JSON or YAML, chosen by extension. Each holds either a bare list of
// records or an object with a "segments" (or "conflicts") list, so provider
// output such as {"segments": [...], "language": "en"} loads unchanged.
package input

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"

	"github.com/maastricht-university/meeting-conflicts/align"
	"github.com/maastricht-university/meeting-conflicts/conflict"
)

var ErrUnsupportedFormat = errors.New("unsupported input format")

type wrapped[T any] struct {
	Segments  []T `json:"segments" yaml:"segments"`
	Conflicts []T `json:"conflicts" yaml:"conflicts"`
}

func decode[T any](path string, data []byte) ([]T, error) {
	var unmarshal func([]byte, any) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		unmarshal = json.Unmarshal
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	var list []T
	if err := unmarshal(data, &list); err == nil {
		return list, nil
	}
	var w wrapped[T]
	if err := unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if w.Segments != nil {
		return w.Segments, nil
	}
	return w.Conflicts, nil
}

func load[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return decode[T](path, data)
}

func Transcript(path string) ([]align.TranscriptSegment, error) {
	return load[align.TranscriptSegment](path)
}

func Speakers(path string) ([]align.SpeakerSegment, error) {
	return load[align.SpeakerSegment](path)
}

// labelledPair accepts both the conflict table's column names and "text1/text2".
type labelledPair struct {
	Text1 string `json:"text1" yaml:"text1"`
	Text2 string `json:"text2" yaml:"text2"`
}

// Conflicts loads a labelled conflict set used for evaluation.
func Conflicts(path string) ([]conflict.ConflictPair, error) {
	rows, err := load[labelledPair](path)
	if err != nil {
		return nil, err
	}
	out := make([]conflict.ConflictPair, len(rows))
	for i, r := range rows {
		out[i] = conflict.ConflictPair{Text1: r.Text1, Text2: r.Text2}
	}
	return out, nil
}

// Fingerprint is the hex blake3 hash over the given readers, in order.
func Fingerprint(rs ...io.Reader) (string, error) {
	h := blake3.New(32, nil)
	for _, r := range rs {
		if _, err := io.Copy(h, r); err != nil {
			return "", fmt.Errorf("calculating blake3 fingerprint: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintFiles hashes the named files' contents in order.
func FingerprintFiles(paths ...string) (string, error) {
	rs := make([]io.Reader, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return "", fmt.Errorf("fingerprint: %w", err)
		}
		defer f.Close()
		rs = append(rs, f)
	}
	return Fingerprint(rs...)
}

// FingerprintSegments hashes the canonical JSON encoding of the segments.
func FingerprintSegments(tr []align.TranscriptSegment, sp []align.SpeakerSegment) (string, error) {
	a, err := json.Marshal(tr)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(sp)
	if err != nil {
		return "", err
	}
	return Fingerprint(strings.NewReader(string(a)), strings.NewReader(string(b)))
}
