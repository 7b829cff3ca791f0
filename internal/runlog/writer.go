package runlog

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"

	"codeberg.org/mutker/carbonwise/internal/errors"
	"github.com/goccy/go-json"
)

const maxLineSize = 1 << 20

// Writer appends records to a JSON-lines log. The log is assumed to have a
// single writing process; appends are not locked across processes.
type Writer struct {
	path string
}

func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the log path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes rec as one line with a single write call and closes the file.
func (w *Writer) Append(rec *Record) error {
	errFactory := errors.New()

	line, err := json.Marshal(rec)
	if err != nil {
		return errFactory.Wrap(errors.ErrIO, err).WithMessage("failed to encode run record")
	}
	line = append(line, '\n')

	if dir := filepath.Dir(w.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errFactory.Wrap(errors.ErrIO, err)
		}
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errFactory.Wrap(errors.ErrIO, err)
	}

	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return errFactory.Wrap(errors.ErrIO, err)
	}

	if err := f.Close(); err != nil {
		return errFactory.Wrap(errors.ErrIO, err)
	}

	return nil
}

// Load reads every record in the log at path. Blank lines are skipped; a
// malformed line fails the whole load with its line number.
func Load(path string) ([]Record, error) {
	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrIO, err)
	}
	defer f.Close()

	var records []Record

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			malformed := errFactory.Wrap(errors.ErrMalformed, err).WithData(map[string]any{"path": path, "line": lineNo})
			return nil, errFactory.Wrap(errors.ErrIO, malformed)
		}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, errFactory.Wrap(errors.ErrIO, err)
	}

	return records, nil
}
