package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleEvents(t *testing.T) []Event {
	t.Helper()
	done, err := NewComplete(map[string]any{
		"analysis":              "整体偏多 {not json}",
		"sentiment_consistency": 0.82,
	})
	require.NoError(t, err)
	final, err := NewComplete(map[string]any{
		"symbol":           "AAPL",
		"prediction":       "up\nrisk: \"macro\"",
		"confidence_score": nil,
	})
	require.NoError(t, err)
	return []Event{
		Started(time.Date(2024, 3, 1, 9, 30, 0, 123456789, time.UTC)),
		Content{Text: "Revenue grew "},
		Content{Text: ""},
		Content{Text: "  spaces  and\nnewlines\t"},
		Content{Text: "unicode ✓ 营业收入"},
		done,
		Error{Message: "filing stage: upstream 503"},
		final,
	}
}

func TestMarshalWireShape(t *testing.T) {
	data, err := Marshal(Started(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"status","status":"started","timestamp":"2024-01-02T03:04:05Z"}`, string(data))

	data, err = Marshal(Content{Text: "hi"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"content","content":"hi"}`, string(data))

	data, err = Marshal(Error{Message: "boom"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"error","error":"boom"}`, string(data))

	data, err = Marshal(Complete{})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"complete","data":{}}`, string(data))

	_, err = Marshal(nil)
	require.Error(t, err)
}

func encodeAll(t *testing.T, events []Event) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, ev := range events {
		require.NoError(t, enc.Encode(ev))
	}
	return buf.Bytes()
}

func TestDecoderRoundTripChunked(t *testing.T) {
	events := sampleEvents(t)
	payload := encodeAll(t, events)

	for _, size := range []int{1, 2, 3, 7, 16, 64, len(payload)} {
		var (
			dec Decoder
			got []Event
		)
		for start := 0; start < len(payload); start += size {
			end := min(start+size, len(payload))
			out, err := dec.Feed(payload[start:end])
			require.NoError(t, err, "chunk size %d", size)
			got = append(got, out...)
		}
		require.Equal(t, events, got, "chunk size %d", size)
		require.Zero(t, dec.Buffered())
	}
}

func TestDecoderConcatenatedWithoutDelimiter(t *testing.T) {
	events := sampleEvents(t)
	var payload []byte
	for _, ev := range events {
		data, err := Marshal(ev)
		require.NoError(t, err)
		payload = append(payload, data...)
	}

	var dec Decoder
	got, err := dec.Feed(payload)
	require.NoError(t, err)
	require.Equal(t, events, got)
}

func TestDecoderWaitsOnPartialValue(t *testing.T) {
	var dec Decoder
	got, err := dec.Feed([]byte(`  {"type":"content","content":"par`))
	require.NoError(t, err)
	require.Empty(t, got)
	require.Positive(t, dec.Buffered())

	got, err = dec.Feed([]byte(`tial"}` + "\n \n"))
	require.NoError(t, err)
	require.Equal(t, []Event{Content{Text: "partial"}}, got)
	require.Zero(t, dec.Buffered())
}

func TestDecoderSkipsMalformedFragment(t *testing.T) {
	var dec Decoder
	got, err := dec.Feed([]byte(`garbage{"type":"content","content":"a"}{"type":"nope"}{"type":"error","error":"x"}`))
	require.Equal(t, []Event{Content{Text: "a"}, Error{Message: "x"}}, got)

	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
	require.Contains(t, err.Error(), "garbage")
	require.Contains(t, err.Error(), "unknown event type")
}

func TestDecoderSyntaxErrorResyncs(t *testing.T) {
	var dec Decoder
	got, err := dec.Feed([]byte(`{"type":,}` + "\n" + `{"type":"content","content":"ok"}`))
	require.Error(t, err)
	require.Equal(t, []Event{Content{Text: "ok"}}, got)
}

type oneByteReader struct {
	data []byte
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func TestReaderNext(t *testing.T) {
	events := sampleEvents(t)
	r := NewReader(&oneByteReader{data: encodeAll(t, events)})

	var got []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, ev)
	}
	require.Equal(t, events, got)
}

func TestReaderTruncatedStream(t *testing.T) {
	r := NewReader(strings.NewReader(`{"type":"content","content":"a"}{"type":"cont`))
	ev, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, Content{Text: "a"}, ev)

	_, err = r.Next()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCompleteDecode(t *testing.T) {
	ev, err := NewComplete(map[string]any{"confidence_score": 0.7})
	require.NoError(t, err)

	var payload struct {
		Confidence *float64 `json:"confidence_score"`
	}
	require.NoError(t, ev.Decode(&payload))
	require.NotNil(t, payload.Confidence)
	require.InDelta(t, 0.7, *payload.Confidence, 1e-9)

	require.Error(t, Complete{}.Decode(&payload))
	require.True(t, IsTerminal(ev))
	require.False(t, IsTerminal(Content{}))
	require.True(t, json.Valid(ev.Data))
}
