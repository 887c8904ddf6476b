package hexfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Line is one line of a firmware image.
type Line struct {
	// Number is the 1-based line number
	Number int

	// Raw is the line as read, without its line terminator
	Raw string

	// Record is nil for lines that are not records
	Record *Record
}

// Reader streams lines from a firmware image. It stops after the EOF record.
type Reader struct {
	scanner *bufio.Scanner
	line    int
	done    bool
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next line. After the EOF record has been returned every
// call yields io.EOF. If the input ends first, Next returns ErrUnexpectedEOF.
func (r *Reader) Next() (*Line, error) {
	if r.done {
		return nil, io.EOF
	}

	if !r.scanner.Scan() {
		r.done = true
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read firmware: %w", err)
		}
		return nil, ErrUnexpectedEOF
	}

	r.line++
	raw := r.scanner.Text()
	l := &Line{Number: r.line, Raw: raw}

	text := strings.TrimSpace(raw)
	if !isRecordLine(text) {
		return l, nil
	}

	rec, err := ParseRecord(text)
	if err != nil {
		r.done = true
		var ferr *FormatError
		if errors.As(err, &ferr) {
			ferr.Line = r.line
		}
		return nil, err
	}

	l.Record = rec
	if rec.Type == RecordEOF {
		r.done = true
	}
	return l, nil
}

// ReadAll decodes every record up to and including the EOF record.
// Lines that are not records are skipped.
//
// Example:
//
//	records, err := hexfile.ReadAll(strings.NewReader(image))
func ReadAll(r io.Reader) ([]*Record, error) {
	reader := NewReader(r)
	var records []*Record
	for {
		l, err := reader.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		if l.Record != nil {
			records = append(records, l.Record)
		}
	}
}

// File is a Reader over an opened firmware file.
type File struct {
	*Reader

	// Size is the file size in bytes
	Size int64

	f *os.File
}

// Open opens a firmware file for streaming.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &File{Reader: NewReader(f), Size: info.Size(), f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}
