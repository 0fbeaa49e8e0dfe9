package cactusplot

import (
	"encoding/binary"
	"image/color"
	"math"
	"reflect"
	"strings"
	"testing"
)

// TestEncodeDecodeEnvelopeHeader tests envelope header encoding and decoding round-trip
func TestEncodeDecodeEnvelopeHeader(t *testing.T) {
	tests := []struct {
		name string
		env  EnvelopeHeader
	}{
		{
			name: "basic envelope",
			env:  EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeSeriesData, Length: 1024},
		},
		{
			name: "zero length payload",
			env:  EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeMetadata, Length: 0},
		},
		{
			name: "envelope with reserved bytes",
			env:  EnvelopeHeader{Version: ProtocolVersion, Reserved: [2]byte{0xAB, 0xCD}, Type: MessageTypeAxisLimits, Length: 32},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeEnvelopeHeader(tt.env)
			if len(encoded) != EnvelopeHeaderSize {
				t.Errorf("encoded header size = %d, want %d", len(encoded), EnvelopeHeaderSize)
			}

			decoded, err := DecodeEnvelopeHeader(encoded)
			if err != nil {
				t.Fatalf("DecodeEnvelopeHeader() error = %v", err)
			}
			if decoded != tt.env {
				t.Errorf("decoded = %+v, want %+v", decoded, tt.env)
			}
		})
	}

	t.Run("buffer too short", func(t *testing.T) {
		_, err := DecodeEnvelopeHeader([]byte{1, 2, 3, 4, 5, 6, 7})
		if err == nil || !strings.Contains(err.Error(), "buffer too short") {
			t.Errorf("error = %v, want buffer too short", err)
		}
	})
}

// TestEncodeDecodeDataMessage tests SERIES_DATA message encoding and decoding
func TestEncodeDecodeDataMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  DataMessage
	}{
		{
			name: "multiple points",
			msg:  DataMessage{SeriesID: 1, Length: 3, X: []float64{1.0, 2.0, 3.0}, Y: []float64{10.5, 20.3, 15.7}},
		},
		{
			name: "empty series",
			msg:  DataMessage{SeriesID: 2, Length: 0, X: []float64{}, Y: []float64{}},
		},
		{
			name: "extreme values",
			msg: DataMessage{
				SeriesID: math.MaxUint32,
				Length:   3,
				X:        []float64{0.0, math.Copysign(0, -1), math.SmallestNonzeroFloat64},
				Y:        []float64{math.MaxFloat64, -math.MaxFloat64, 1e-308},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeDataMessage(tt.msg)
			if err != nil {
				t.Fatalf("EncodeDataMessage() error = %v", err)
			}

			expectedSize := 8 + int(tt.msg.Length)*8*2
			if len(encoded) != expectedSize {
				t.Errorf("encoded size = %d, want %d", len(encoded), expectedSize)
			}

			decoded, err := DecodeDataMessage(encoded)
			if err != nil {
				t.Fatalf("DecodeDataMessage() error = %v", err)
			}
			if !reflect.DeepEqual(decoded, tt.msg) {
				t.Errorf("decoded = %+v, want %+v", decoded, tt.msg)
			}
		})
	}
}

func TestDataMessageErrors(t *testing.T) {
	t.Run("X and Y length mismatch", func(t *testing.T) {
		_, err := EncodeDataMessage(DataMessage{Length: 2, X: []float64{1, 2}, Y: []float64{1}})
		if err == nil || !strings.Contains(err.Error(), "must have same length") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("Length field mismatch", func(t *testing.T) {
		_, err := EncodeDataMessage(DataMessage{Length: 5, X: []float64{1}, Y: []float64{1}})
		if err == nil || !strings.Contains(err.Error(), "doesn't match array length") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("truncated payload", func(t *testing.T) {
		buf := make([]byte, 8+8)
		binary.LittleEndian.PutUint32(buf[4:8], 1)
		_, err := DecodeDataMessage(buf)
		if err == nil || !strings.Contains(err.Error(), "buffer size mismatch") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("huge length does not overflow", func(t *testing.T) {
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint32(buf[4:8], math.MaxUint32)
		if _, err := DecodeDataMessage(buf); err == nil {
			t.Errorf("expected error for bogus length")
		}
	})
}

func TestEncodeDecodeWSMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType byte
		payload interface{}
	}{
		{
			name:    "series data",
			msgType: MessageTypeSeriesData,
			payload: DataMessage{SeriesID: 3, Length: 2, X: []float64{0, 1}, Y: []float64{2, 3}},
		},
		{
			name:    "metadata",
			msgType: MessageTypeMetadata,
			payload: Metadata{SessionID: "abc", ProtocolVersion: ProtocolVersion, PlotOptions: DefaultPlotOptions()},
		},
		{
			name:    "stream end",
			msgType: MessageTypeStreamEnd,
			payload: StreamEndMessage{Error: true, Msg: "boom"},
		},
		{
			name:    "series style",
			msgType: MessageTypeSeriesStyle,
			payload: StyleMessage{SeriesID: 4, Style: Style{Label: "sin(x)", Color: color.RGBA{R: 1, G: 2, B: 3, A: 255}, LineStyle: LineDashed, Visible: true}},
		},
		{
			name:    "series remove",
			msgType: MessageTypeSeriesRemove,
			payload: RemoveMessage{SeriesID: 9},
		},
		{
			name:    "axis limits",
			msgType: MessageTypeAxisLimits,
			payload: Bounds{XMin: -1, XMax: 1, YMin: -2.5, YMax: 2.5},
		},
		{
			name:    "selection",
			msgType: MessageTypeSelection,
			payload: []SelectionEntry{{ID: 1, Label: "a", Checked: true}, {ID: 2, Label: "b", Selected: true}},
		},
		{
			name:    "status",
			msgType: MessageTypeStatus,
			payload: StatusLine{Msg: "Loaded 3 points", Error: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeWSMessage(WSMessage{
				Header:  EnvelopeHeader{Version: ProtocolVersion, Type: tt.msgType},
				Payload: tt.payload,
			})
			if err != nil {
				t.Fatalf("EncodeWSMessage() error = %v", err)
			}

			header, err := DecodeEnvelopeHeader(encoded)
			if err != nil {
				t.Fatal(err)
			}
			if int(header.Length) != len(encoded)-EnvelopeHeaderSize {
				t.Errorf("header length = %d, payload is %d bytes", header.Length, len(encoded)-EnvelopeHeaderSize)
			}

			decoded, err := DecodeWSMessage(encoded)
			if err != nil {
				t.Fatalf("DecodeWSMessage() error = %v", err)
			}
			if decoded.Header.Type != tt.msgType {
				t.Errorf("Type = 0x%02x, want 0x%02x", decoded.Header.Type, tt.msgType)
			}
			if !reflect.DeepEqual(decoded.Payload, tt.payload) {
				t.Errorf("payload = %+v, want %+v", decoded.Payload, tt.payload)
			}
		})
	}
}

func TestWSMessageErrors(t *testing.T) {
	t.Run("payload type mismatch", func(t *testing.T) {
		_, err := EncodeWSMessage(WSMessage{
			Header:  EnvelopeHeader{Type: MessageTypeAxisLimits},
			Payload: StatusLine{},
		})
		if err == nil || !strings.Contains(err.Error(), "payload type mismatch") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		buf := EncodeEnvelopeHeader(EnvelopeHeader{Version: ProtocolVersion, Type: 0x7f})
		if _, err := DecodeWSMessage(buf); err == nil || !strings.Contains(err.Error(), "unknown message type") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("truncated payload", func(t *testing.T) {
		buf := EncodeEnvelopeHeader(EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeAxisLimits, Length: 32})
		if _, err := DecodeWSMessage(append(buf, 0, 0)); err == nil || !strings.Contains(err.Error(), "buffer too short") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("remove with wrong size", func(t *testing.T) {
		if _, err := DecodeRemoveMessage([]byte{1, 2}); err == nil {
			t.Errorf("expected error")
		}
	})
}

func TestEncodeSceneEvent(t *testing.T) {
	style := Style{Label: "a", Color: color.RGBA{A: 255}, Visible: true}

	decodeAll := func(t *testing.T, bufs [][]byte) []WSMessage {
		t.Helper()
		msgs := make([]WSMessage, len(bufs))
		for i, buf := range bufs {
			msg, err := DecodeWSMessage(buf)
			if err != nil {
				t.Fatalf("DecodeWSMessage() error = %v", err)
			}
			msgs[i] = msg
		}
		return msgs
	}

	t.Run("add is style then data", func(t *testing.T) {
		bufs, err := EncodeSceneEvent(SceneEvent{
			Type:   EventSeriesAdd,
			ID:     5,
			Points: []Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
			Style:  &style,
		})
		if err != nil {
			t.Fatal(err)
		}

		msgs := decodeAll(t, bufs)
		if len(msgs) != 2 {
			t.Fatalf("got %d messages, want 2", len(msgs))
		}
		if want := (StyleMessage{SeriesID: 5, Style: style}); !reflect.DeepEqual(msgs[0].Payload, want) {
			t.Errorf("style = %+v, want %+v", msgs[0].Payload, want)
		}
		want := DataMessage{SeriesID: 5, Length: 2, X: []float64{1, 3}, Y: []float64{2, 4}}
		if !reflect.DeepEqual(msgs[1].Payload, want) {
			t.Errorf("data = %+v, want %+v", msgs[1].Payload, want)
		}
	})

	t.Run("single message events", func(t *testing.T) {
		bounds := Bounds{XMax: 1, YMax: 1}
		status := StatusLine{Msg: "done"}
		tests := []struct {
			event   SceneEvent
			msgType byte
		}{
			{SceneEvent{Type: EventSeriesData, ID: 1}, MessageTypeSeriesData},
			{SceneEvent{Type: EventSeriesStyle, ID: 1, Style: &style}, MessageTypeSeriesStyle},
			{SceneEvent{Type: EventSeriesRemove, ID: 1}, MessageTypeSeriesRemove},
			{SceneEvent{Type: EventAxisLimits, Bounds: &bounds}, MessageTypeAxisLimits},
			{SceneEvent{Type: EventSelection}, MessageTypeSelection},
			{SceneEvent{Type: EventStatus, Status: &status}, MessageTypeStatus},
			{SceneEvent{Type: EventStreamEnd, Status: &status}, MessageTypeStreamEnd},
		}

		for _, tt := range tests {
			bufs, err := EncodeSceneEvent(tt.event)
			if err != nil {
				t.Fatalf("%s: %v", tt.event.Type, err)
			}
			msgs := decodeAll(t, bufs)
			if len(msgs) != 1 || msgs[0].Header.Type != tt.msgType {
				t.Errorf("%s: got %d messages, first type 0x%02x", tt.event.Type, len(msgs), msgs[0].Header.Type)
			}
		}
	})

	t.Run("id too large", func(t *testing.T) {
		_, err := EncodeSceneEvent(SceneEvent{Type: EventSeriesRemove, ID: DatasetID(math.MaxUint32) + 1})
		if err == nil {
			t.Errorf("expected error for id beyond uint32")
		}
	})

	t.Run("missing style", func(t *testing.T) {
		if _, err := EncodeSceneEvent(SceneEvent{Type: EventSeriesAdd, ID: 1}); err == nil {
			t.Errorf("expected error for add without style")
		}
	})
}

// TestByteOrder pins the little endian layout of the axis limits payload.
func TestByteOrder(t *testing.T) {
	buf := EncodeAxisLimitsMessage(Bounds{XMin: 1, XMax: 2, YMin: 3, YMax: 4})
	for i, want := range []float64{1, 2, 3, 4} {
		got := math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8 : i*8+8]))
		if got != want {
			t.Errorf("value %d = %v, want %v", i, got, want)
		}
	}
}
