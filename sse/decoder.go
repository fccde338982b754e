// Package sse decodes Server-Sent-Events byte streams into AG-UI events.
//
// Records are blank-line delimited; only data: lines matter for the AG-UI
// protocol. The decoder is resilient by contract: a [DONE] payload, an
// empty payload, or a record whose data is not valid JSON is skipped, so a
// single corrupt record never aborts an otherwise healthy run.
package sse

import (
	"bufio"
	"io"
	"strings"

	"github.com/spetersoncode/strand/event"
)

// donePayload is the stream punctuation some backends send before closing.
const donePayload = "[DONE]"

// Decoder reads SSE records from a byte stream and yields decoded events.
// It is not safe for concurrent use.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next decoded event from the stream. It returns io.EOF
// when the stream closes cleanly, or the underlying read error otherwise.
// Records with empty, [DONE] or malformed-JSON payloads are skipped.
func (d *Decoder) Next() (event.Event, error) {
	for {
		data, err := d.nextRecord()
		if err != nil {
			return event.Event{}, err
		}
		payload := strings.TrimSpace(data)
		if payload == "" || payload == donePayload {
			continue
		}
		ev, err := event.Decode([]byte(payload))
		if err != nil {
			// Malformed JSON in a single record must not fail the stream.
			continue
		}
		return ev, nil
	}
}

// nextRecord reads lines until a blank-line record boundary and returns the
// concatenated data: payload of the record.
func (d *Decoder) nextRecord() (string, error) {
	var data strings.Builder
	seen := false
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			// A final record without a trailing blank line still counts.
			if err == io.EOF && seen {
				return data.String(), nil
			}
			return "", err
		}
		atEOF := err == io.EOF
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if seen {
				return data.String(), nil
			}
		case strings.HasPrefix(line, ":"):
			// comment line
		default:
			if after, ok := strings.CutPrefix(line, "data:"); ok {
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimSpace(after))
				seen = true
			}
			// event:, id: and retry: lines are not used by the AG-UI protocol.
		}
		if atEOF {
			if seen {
				return data.String(), nil
			}
			return "", io.EOF
		}
	}
}
