package ocr

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const maxFragmentBytes = 4 << 20

// MalformedFragmentError reports a stream line that is not a JSON object.
// Decoding can continue after it.
type MalformedFragmentError struct {
	Line int
	Raw  string
	Err  error
}

func (e *MalformedFragmentError) Error() string {
	return fmt.Sprintf("malformed fragment on line %d: %v", e.Line, e.Err)
}

func (e *MalformedFragmentError) Unwrap() error {
	return e.Err
}

type chatChunk struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// ErrFragmentTooLong marks a stream line longer than the decoder accepts.
var ErrFragmentTooLong = errors.New("fragment exceeds maximum line size")

// FragmentDecoder reads newline-delimited JSON fragments lazily from a
// response body.
type FragmentDecoder struct {
	r    *bufio.Reader
	buf  []byte
	line int
	done bool
}

func NewFragmentDecoder(r io.Reader) *FragmentDecoder {
	return &FragmentDecoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next fragment, io.EOF once the stream ends or a done
// fragment was seen, or a *MalformedFragmentError for an unparseable or
// oversize line. Any other error means the underlying stream failed.
func (d *FragmentDecoder) Next() (Fragment, error) {
	if d.done {
		return Fragment{}, io.EOF
	}
	for {
		raw, oversize, err := d.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return Fragment{}, fmt.Errorf("read fragment stream: %w", err)
		}
		if len(raw) == 0 && !oversize && err != nil {
			d.done = true
			return Fragment{}, io.EOF
		}
		d.line++
		if oversize {
			return Fragment{}, &MalformedFragmentError{Line: d.line, Err: ErrFragmentTooLong}
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		var chunk chatChunk
		if err := json.Unmarshal(raw, &chunk); err != nil {
			return Fragment{}, &MalformedFragmentError{Line: d.line, Raw: truncate(string(raw), 120), Err: err}
		}
		if chunk.Done {
			d.done = true
		}
		return Fragment{Content: chunk.Message.Content, Done: chunk.Done, Err: chunk.Error}, nil
	}
}

// readLine returns one line without buffering more than maxFragmentBytes.
// The rest of an oversize line is consumed and dropped.
func (d *FragmentDecoder) readLine() ([]byte, bool, error) {
	d.buf = d.buf[:0]
	oversize := false
	for {
		chunk, err := d.r.ReadSlice('\n')
		if !oversize {
			if len(d.buf)+len(chunk) > maxFragmentBytes {
				oversize = true
				d.buf = d.buf[:0]
			} else {
				d.buf = append(d.buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return d.buf, oversize, err
	}
}

// assembler concatenates fragment text in arrival order. Spaced mode trims
// each delta and joins non-empty ones with a single space.
type assembler struct {
	b      strings.Builder
	spaced bool
}

func (a *assembler) add(delta string) {
	if !a.spaced {
		a.b.WriteString(delta)
		return
	}
	delta = strings.TrimSpace(delta)
	if delta == "" {
		return
	}
	a.b.WriteString(delta)
	a.b.WriteByte(' ')
}

func (a *assembler) text() string {
	return strings.TrimSpace(a.b.String())
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
