package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteFixture writes body to name inside a directory removed after the test
// and returns its path. Configuration tests use it for YAML files.
func WriteFixture(t testing.TB, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write fixture %s: %v", path, err)
	}
	return path
}

// LoadFixture loads test data from a fixture file.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}
	return data
}

// DecodeJSONLines unmarshals one JSON document per non-empty line of data
// into a map, the format the command line tool prints rows in.
func DecodeJSONLines(t testing.TB, data []byte) []map[string]any {
	t.Helper()

	var out []map[string]any
	for i, line := range splitLines(data) {
		row := map[string]any{}
		if err := json.Unmarshal(line, &row); err != nil {
			t.Fatalf("failed to decode line %d %q: %v", i+1, line, err)
		}
		out = append(out, row)
	}
	return out
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b != '\n' {
			continue
		}
		if i > start {
			lines = append(lines, data[start:i])
		}
		start = i + 1
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
