// Package fetcher reads flat input tables (CSV, XLSX) and extracts ZIP archives.
package fetcher

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names a CSV text encoding.
type Encoding string

// Supported encodings. EncodingAuto reads UTF-8 (with or without a
// signature) and falls back to CP949 when the first block is not UTF-8.
const (
	EncodingAuto  Encoding = ""
	EncodingUTF8  Encoding = "utf-8"
	EncodingCP949 Encoding = "cp949"
)

// sniffSize is how much input EncodingAuto inspects.
const sniffSize = 4096

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	Encoding   Encoding
	Delimiter  rune // default ','
	LazyQuotes bool
}

// StreamCSV decodes r and sends every record, header included, on the
// returned channel. Records may differ in length. Errors are sent on the
// error channel; both channels are closed when reading stops.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		decoded, err := decode(r, opts.Encoding)
		if err != nil {
			errCh <- err
			return
		}
		reader := csv.NewReader(decoded)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		for line := 1; ; line++ {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrapf(err, "csv: record %d", line)
				return
			}
			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// decode wraps r so it yields UTF-8 without a leading signature.
func decode(r io.Reader, enc Encoding) (io.Reader, error) {
	switch enc {
	case EncodingUTF8:
		return transform.NewReader(r, unicode.UTF8BOM.NewDecoder()), nil
	case EncodingCP949:
		return transform.NewReader(r, korean.EUCKR.NewDecoder()), nil
	case EncodingAuto:
		br := bufio.NewReaderSize(r, sniffSize)
		head, err := br.Peek(sniffSize)
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return nil, eris.Wrap(err, "csv: sniff encoding")
		}
		if !validUTF8Prefix(head) {
			return transform.NewReader(br, korean.EUCKR.NewDecoder()), nil
		}
		return transform.NewReader(br, unicode.UTF8BOM.NewDecoder()), nil
	default:
		return nil, eris.Errorf("csv: unsupported encoding %q", enc)
	}
}

// validUTF8Prefix reports whether b is UTF-8, ignoring a rune cut off at the
// end of the sniffed block.
func validUTF8Prefix(b []byte) bool {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return true
		}
		if len(b) < sniffSize {
			return false
		}
		b = b[:len(b)-1]
	}
	return utf8.Valid(b)
}
