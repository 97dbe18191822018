package localsocket

import (
	"bytes"
	"math"
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

type testMessage struct {
	Kind     string            `json:"kind"`
	Text     string            `json:"text,omitempty"`
	Count    int               `json:"count,omitempty"`
	Subgraph map[string]string `json:"subgraph,omitempty"`
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	messages := []testMessage{
		{Kind: "hello"},
		{Kind: "sdl", Text: "type Query {\n  me: User\n}\n", Count: 3},
		{Kind: "unicode", Text: "héllo ✓  "},
		{Kind: "map", Subgraph: map[string]string{"users": "http://localhost:4001"}},
	}

	for _, m := range messages {
		data, err := Encode(m)
		if err != nil {
			t.Fatalf("Encode(%+v) failed: %v", m, err)
		}

		got, err := DecodeAs[testMessage](data)
		if err != nil {
			t.Fatalf("DecodeAs(%s) failed: %v", data, err)
		}
		if !reflect.DeepEqual(got, m) {
			t.Errorf("round trip = %+v, want %+v", got, m)
		}
	}
}

func TestEncode_NoRawNewline(t *testing.T) {
	data, err := Encode(testMessage{Kind: "multi", Text: "line one\nline two\r\n"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if bytes.IndexByte(data, '\n') >= 0 {
		t.Errorf("encoded payload contains raw newline: %q", data)
	}
}

func TestFrame_AppendsDelimiter(t *testing.T) {
	data, err := Frame(testMessage{Kind: "hello"})
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if want := `{"kind":"hello"}` + "\n"; string(data) != want {
		t.Errorf("Frame = %q, want %q", data, want)
	}
}

func TestEncode_Unrepresentable(t *testing.T) {
	_, err := Encode(math.Inf(1))

	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected *EncodingError, got %v", err)
	}

	_, err = Frame(make(chan int))
	if !errors.As(err, &encErr) {
		t.Fatalf("expected *EncodingError from Frame, got %v", err)
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	raw := []byte("this is not json")

	var m testMessage
	err := Decode(raw, &m)

	var decErr *DecodingError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodingError, got %v", err)
	}
	if decErr.Raw != "this is not json" {
		t.Errorf("Raw = %q, want %q", decErr.Raw, raw)
	}
}

func TestDecode_ShapeMismatch(t *testing.T) {
	raw := []byte(`{"kind":42}`)

	_, err := DecodeAs[testMessage](raw)

	var decErr *DecodingError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodingError, got %v", err)
	}
	if decErr.Raw != string(raw) {
		t.Errorf("Raw = %q, want %q", decErr.Raw, raw)
	}
}

func TestDecode_RawIsOwned(t *testing.T) {
	raw := []byte("{broken")

	_, err := DecodeAs[testMessage](raw)
	raw[0] = 'X'

	var decErr *DecodingError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodingError, got %v", err)
	}
	if decErr.Raw != "{broken" {
		t.Errorf("Raw changed with caller buffer: %q", decErr.Raw)
	}
}
