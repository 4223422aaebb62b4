package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/eventdeck/eventdeck/internal/model"
)

// frame is one server-sent event as delivered on the wire.
type frame struct {
	event string
	id    string
	data  string
}

// frameScanner incrementally parses the text/event-stream format: "event:",
// "data:" (multi-line, joined with newlines), "id:", ":" comments, and a
// blank line terminating each frame.
type frameScanner struct {
	r *bufio.Reader

	event string
	id    string
	data  strings.Builder
}

func newFrameScanner(r io.Reader) *frameScanner {
	return &frameScanner{r: bufio.NewReader(r)}
}

// next returns the next complete frame, or io.EOF when the stream ends.
func (s *frameScanner) next() (frame, error) {
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return frame{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if s.data.Len() == 0 && s.event == "" {
				continue
			}
			f := frame{event: s.event, id: s.id, data: s.data.String()}
			s.event = ""
			s.id = ""
			s.data.Reset()
			return f, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "event:"); ok {
			s.event = strings.TrimSpace(rest)
			continue
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			if s.data.Len() > 0 {
				s.data.WriteByte('\n')
			}
			s.data.WriteString(strings.TrimPrefix(rest, " "))
			continue
		}
		if rest, ok := strings.CutPrefix(line, "id:"); ok {
			s.id = strings.TrimSpace(rest)
			continue
		}
		// Unknown field names are ignored per the SSE spec.
	}
}

// wireEnvelope covers both payload shapes the stream emits: a full
// {kind,time,payload} envelope and a bare payload object.
type wireEnvelope struct {
	Kind    string          `json:"kind"`
	Time    string          `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// decodeEnvelope builds a model.Envelope from one frame. The kind falls
// back from the SSE event name to a kind field inside the data; a missing
// or unparseable time defaults to the receipt time.
func decodeEnvelope(f frame, received time.Time) model.Envelope {
	env := model.Envelope{
		Kind:    f.event,
		Time:    received,
		ID:      f.id,
		Payload: json.RawMessage(f.data),
	}

	var wire wireEnvelope
	if err := json.Unmarshal([]byte(f.data), &wire); err != nil {
		return env
	}
	if env.Kind == "" {
		env.Kind = wire.Kind
	}
	if wire.Time != "" {
		if t, err := time.Parse(time.RFC3339, wire.Time); err == nil {
			env.Time = t
		}
	}
	if len(wire.Payload) > 0 {
		env.Payload = wire.Payload
	}
	return env
}
