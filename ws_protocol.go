package cactusplot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Protocol constants
const (
	// ProtocolVersion is the current version of the scene protocol
	ProtocolVersion byte = 2

	// Message type constants
	MessageTypeSeriesData   byte = 0x01
	MessageTypeMetadata     byte = 0x02
	MessageTypeStreamEnd    byte = 0x03
	MessageTypeSeriesStyle  byte = 0x04
	MessageTypeSeriesRemove byte = 0x05
	MessageTypeAxisLimits   byte = 0x06
	MessageTypeSelection    byte = 0x07
	MessageTypeStatus       byte = 0x08

	// Header size in bytes
	EnvelopeHeaderSize = 8
)

// EnvelopeHeader represents the message envelope header
type EnvelopeHeader struct {
	Version  byte
	Reserved [2]byte // Reserved for future use
	Type     byte
	Length   uint32 // Payload length in bytes
}

// DataMessage replaces the points of one series (type 0x01)
type DataMessage struct {
	SeriesID uint32
	Length   uint32    // Number of X/Y pairs
	X        []float64 // X values
	Y        []float64 // Y values
}

// StreamEndMessage represents a STREAM_END message payload (type 0x03)
type StreamEndMessage struct {
	Error bool
	Msg   string
}

// StyleMessage sets the presentation of one series (type 0x04). A series is
// created on the client by its first STYLE message.
type StyleMessage struct {
	SeriesID uint32 `json:"series_id"`
	Style    Style  `json:"style"`
}

// RemoveMessage drops one series (type 0x05)
type RemoveMessage struct {
	SeriesID uint32
}

// WSMessage represents a complete websocket message with header and payload
type WSMessage struct {
	Header  EnvelopeHeader
	Payload interface{} // One of: DataMessage, Metadata, StreamEndMessage, StyleMessage, RemoveMessage, Bounds, []SelectionEntry, StatusLine
}

// EncodeEnvelopeHeader encodes the envelope header into a byte slice
func EncodeEnvelopeHeader(env EnvelopeHeader) []byte {
	buf := make([]byte, EnvelopeHeaderSize)
	buf[0] = env.Version
	buf[1] = env.Reserved[0]
	buf[2] = env.Reserved[1]
	buf[3] = env.Type
	binary.LittleEndian.PutUint32(buf[4:8], env.Length)
	return buf
}

// DecodeEnvelopeHeader decodes the envelope header from a byte slice
// Returns the envelope and an error if the buffer is too short
func DecodeEnvelopeHeader(buf []byte) (EnvelopeHeader, error) {
	if len(buf) < EnvelopeHeaderSize {
		return EnvelopeHeader{}, fmt.Errorf("buffer too short: expected at least %d bytes, got %d", EnvelopeHeaderSize, len(buf))
	}

	env := EnvelopeHeader{
		Version: buf[0],
		Type:    buf[3],
		Length:  binary.LittleEndian.Uint32(buf[4:8]),
	}
	env.Reserved[0] = buf[1]
	env.Reserved[1] = buf[2]

	return env, nil
}

// EncodeDataMessage encodes a DATA message payload
// Returns error if X and Y arrays don't match in length
func EncodeDataMessage(msg DataMessage) ([]byte, error) {
	if len(msg.X) != len(msg.Y) {
		return nil, fmt.Errorf("X and Y arrays must have same length: X=%d, Y=%d", len(msg.X), len(msg.Y))
	}
	if uint32(len(msg.X)) != msg.Length {
		return nil, fmt.Errorf("Length field (%d) doesn't match array length (%d)", msg.Length, len(msg.X))
	}

	// SeriesID(4) + Length(4) + X array + Y array
	buf := make([]byte, 8+len(msg.X)*8*2)

	binary.LittleEndian.PutUint32(buf[0:4], msg.SeriesID)
	binary.LittleEndian.PutUint32(buf[4:8], msg.Length)

	offset := putFloats(buf, 8, msg.X)
	putFloats(buf, offset, msg.Y)

	return buf, nil
}

// DecodeDataMessage decodes a DATA message payload
func DecodeDataMessage(buf []byte) (DataMessage, error) {
	if len(buf) < 8 {
		return DataMessage{}, fmt.Errorf("buffer too short for DATA message: expected at least 8 bytes, got %d", len(buf))
	}

	msg := DataMessage{
		SeriesID: binary.LittleEndian.Uint32(buf[0:4]),
		Length:   binary.LittleEndian.Uint32(buf[4:8]),
	}

	expectedSize := 8 + uint64(msg.Length)*8*2
	if uint64(len(buf)) != expectedSize {
		return DataMessage{}, fmt.Errorf("buffer size mismatch: expected %d bytes for %d pairs, got %d", expectedSize, msg.Length, len(buf))
	}

	msg.X = make([]float64, msg.Length)
	offset := getFloats(buf, 8, msg.X)
	msg.Y = make([]float64, msg.Length)
	getFloats(buf, offset, msg.Y)

	return msg, nil
}

func putFloats(buf []byte, offset int, values []float64) int {
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf[offset:offset+8], math.Float64bits(v))
		offset += 8
	}
	return offset
}

func getFloats(buf []byte, offset int, values []float64) int {
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[offset : offset+8]))
		offset += 8
	}
	return offset
}

// EncodeMetadataMessage encodes a METADATA message payload
func EncodeMetadataMessage(metadata Metadata) ([]byte, error) {
	return encodeJSONPayload("metadata", metadata)
}

// DecodeMetadataMessage decodes a METADATA message payload
func DecodeMetadataMessage(buf []byte) (Metadata, error) {
	var metadata Metadata
	err := decodeJSONPayload("METADATA", buf, &metadata)
	return metadata, err
}

// EncodeStreamEndMessage encodes a STREAM_END message payload
func EncodeStreamEndMessage(msg StreamEndMessage) ([]byte, error) {
	return encodeJSONPayload("stream end message", msg)
}

// DecodeStreamEndMessage decodes a STREAM_END message payload
func DecodeStreamEndMessage(buf []byte) (StreamEndMessage, error) {
	var msg StreamEndMessage
	err := decodeJSONPayload("STREAM_END", buf, &msg)
	return msg, err
}

func EncodeStyleMessage(msg StyleMessage) ([]byte, error) {
	return encodeJSONPayload("style message", msg)
}

func DecodeStyleMessage(buf []byte) (StyleMessage, error) {
	var msg StyleMessage
	err := decodeJSONPayload("SERIES_STYLE", buf, &msg)
	return msg, err
}

func EncodeRemoveMessage(msg RemoveMessage) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, msg.SeriesID)
	return buf
}

func DecodeRemoveMessage(buf []byte) (RemoveMessage, error) {
	if len(buf) != 4 {
		return RemoveMessage{}, fmt.Errorf("buffer size mismatch for SERIES_REMOVE message: expected 4 bytes, got %d", len(buf))
	}
	return RemoveMessage{SeriesID: binary.LittleEndian.Uint32(buf)}, nil
}

// Axis limits are four float64 values: x min, x max, y min, y max.
func EncodeAxisLimitsMessage(bounds Bounds) []byte {
	buf := make([]byte, 32)
	putFloats(buf, 0, []float64{bounds.XMin, bounds.XMax, bounds.YMin, bounds.YMax})
	return buf
}

func DecodeAxisLimitsMessage(buf []byte) (Bounds, error) {
	if len(buf) != 32 {
		return Bounds{}, fmt.Errorf("buffer size mismatch for AXIS_LIMITS message: expected 32 bytes, got %d", len(buf))
	}
	values := make([]float64, 4)
	getFloats(buf, 0, values)
	return Bounds{XMin: values[0], XMax: values[1], YMin: values[2], YMax: values[3]}, nil
}

func EncodeSelectionMessage(entries []SelectionEntry) ([]byte, error) {
	if entries == nil {
		entries = []SelectionEntry{}
	}
	return encodeJSONPayload("selection", entries)
}

func DecodeSelectionMessage(buf []byte) ([]SelectionEntry, error) {
	var entries []SelectionEntry
	err := decodeJSONPayload("SELECTION", buf, &entries)
	return entries, err
}

func EncodeStatusMessage(line StatusLine) ([]byte, error) {
	return encodeJSONPayload("status", line)
}

func DecodeStatusMessage(buf []byte) (StatusLine, error) {
	var line StatusLine
	err := decodeJSONPayload("STATUS", buf, &line)
	return line, err
}

// Payload: JSON Length (4 bytes) + JSON data
func encodeJSONPayload(what string, v any) ([]byte, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", what, err)
	}

	buf := make([]byte, 4+len(jsonData))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(jsonData)))
	copy(buf[4:], jsonData)

	return buf, nil
}

func decodeJSONPayload(messageName string, buf []byte, v any) error {
	if len(buf) < 4 {
		return fmt.Errorf("buffer too short for %s message: expected at least 4 bytes, got %d", messageName, len(buf))
	}

	jsonLength := binary.LittleEndian.Uint32(buf[0:4])

	expectedSize := 4 + uint64(jsonLength)
	if uint64(len(buf)) != expectedSize {
		return fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", expectedSize, len(buf))
	}

	if err := json.Unmarshal(buf[4:], v); err != nil {
		return fmt.Errorf("failed to unmarshal %s message: %w", messageName, err)
	}

	return nil
}

// EncodeWSMessage encodes a WSMessage into a complete message byte slice
// Returns error if payload encoding fails or if payload type is invalid
func EncodeWSMessage(msg WSMessage) ([]byte, error) {
	var payload []byte
	var err error

	mismatch := func(want string) error {
		return fmt.Errorf("payload type mismatch: expected %s for type 0x%02x, got %T", want, msg.Header.Type, msg.Payload)
	}

	switch msg.Header.Type {
	case MessageTypeSeriesData:
		dataMsg, ok := msg.Payload.(DataMessage)
		if !ok {
			return nil, mismatch("DataMessage")
		}
		payload, err = EncodeDataMessage(dataMsg)
	case MessageTypeMetadata:
		metadata, ok := msg.Payload.(Metadata)
		if !ok {
			return nil, mismatch("Metadata")
		}
		payload, err = EncodeMetadataMessage(metadata)
	case MessageTypeStreamEnd:
		streamEnd, ok := msg.Payload.(StreamEndMessage)
		if !ok {
			return nil, mismatch("StreamEndMessage")
		}
		payload, err = EncodeStreamEndMessage(streamEnd)
	case MessageTypeSeriesStyle:
		style, ok := msg.Payload.(StyleMessage)
		if !ok {
			return nil, mismatch("StyleMessage")
		}
		payload, err = EncodeStyleMessage(style)
	case MessageTypeSeriesRemove:
		remove, ok := msg.Payload.(RemoveMessage)
		if !ok {
			return nil, mismatch("RemoveMessage")
		}
		payload = EncodeRemoveMessage(remove)
	case MessageTypeAxisLimits:
		bounds, ok := msg.Payload.(Bounds)
		if !ok {
			return nil, mismatch("Bounds")
		}
		payload = EncodeAxisLimitsMessage(bounds)
	case MessageTypeSelection:
		entries, ok := msg.Payload.([]SelectionEntry)
		if !ok {
			return nil, mismatch("[]SelectionEntry")
		}
		payload, err = EncodeSelectionMessage(entries)
	case MessageTypeStatus:
		line, ok := msg.Payload.(StatusLine)
		if !ok {
			return nil, mismatch("StatusLine")
		}
		payload, err = EncodeStatusMessage(line)
	default:
		return nil, fmt.Errorf("unknown message type: 0x%02x", msg.Header.Type)
	}
	if err != nil {
		return nil, err
	}

	// Update header length to match actual payload size
	msg.Header.Length = uint32(len(payload))

	header := EncodeEnvelopeHeader(msg.Header)

	fullMsg := make([]byte, len(header)+len(payload))
	copy(fullMsg, header)
	copy(fullMsg[len(header):], payload)

	return fullMsg, nil
}

// DecodeWSMessage decodes a complete message (envelope + payload) into a WSMessage
// Returns error if buffer is too short or payload decoding fails
func DecodeWSMessage(buf []byte) (WSMessage, error) {
	env, err := DecodeEnvelopeHeader(buf)
	if err != nil {
		return WSMessage{}, err
	}

	expectedSize := uint64(EnvelopeHeaderSize) + uint64(env.Length)
	if uint64(len(buf)) < expectedSize {
		return WSMessage{}, fmt.Errorf("buffer too short: expected %d bytes (header + payload), got %d", expectedSize, len(buf))
	}

	payloadBytes := buf[EnvelopeHeaderSize:expectedSize]

	var payload interface{}
	switch env.Type {
	case MessageTypeSeriesData:
		payload, err = DecodeDataMessage(payloadBytes)
	case MessageTypeMetadata:
		payload, err = DecodeMetadataMessage(payloadBytes)
	case MessageTypeStreamEnd:
		payload, err = DecodeStreamEndMessage(payloadBytes)
	case MessageTypeSeriesStyle:
		payload, err = DecodeStyleMessage(payloadBytes)
	case MessageTypeSeriesRemove:
		payload, err = DecodeRemoveMessage(payloadBytes)
	case MessageTypeAxisLimits:
		payload, err = DecodeAxisLimitsMessage(payloadBytes)
	case MessageTypeSelection:
		payload, err = DecodeSelectionMessage(payloadBytes)
	case MessageTypeStatus:
		payload, err = DecodeStatusMessage(payloadBytes)
	default:
		return WSMessage{}, fmt.Errorf("unknown message type: 0x%02x", env.Type)
	}
	if err != nil {
		return WSMessage{}, err
	}

	return WSMessage{
		Header:  env,
		Payload: payload,
	}, nil
}

// EncodeSceneEvent turns one broadcaster event into the binary messages a
// client needs. A series add becomes a STYLE message followed by a DATA
// message, everything else maps to a single message.
func EncodeSceneEvent(event SceneEvent) ([][]byte, error) {
	header := EnvelopeHeader{Version: ProtocolVersion}

	seriesID := func() (uint32, error) {
		if uint64(event.ID) > math.MaxUint32 {
			return 0, fmt.Errorf("series id %d does not fit the wire format", uint64(event.ID))
		}
		return uint32(event.ID), nil
	}

	var msgs []WSMessage
	switch event.Type {
	case EventSeriesAdd, EventSeriesStyle, EventSeriesData:
		id, err := seriesID()
		if err != nil {
			return nil, err
		}
		if event.Type != EventSeriesData {
			if event.Style == nil {
				return nil, fmt.Errorf("%s event for %s has no style", event.Type, event.ID)
			}
			header.Type = MessageTypeSeriesStyle
			msgs = append(msgs, WSMessage{Header: header, Payload: StyleMessage{SeriesID: id, Style: *event.Style}})
		}
		if event.Type != EventSeriesStyle {
			data := DataMessage{
				SeriesID: id,
				Length:   uint32(len(event.Points)),
				X:        make([]float64, len(event.Points)),
				Y:        make([]float64, len(event.Points)),
			}
			for i, p := range event.Points {
				data.X[i] = p.X
				data.Y[i] = p.Y
			}
			header.Type = MessageTypeSeriesData
			msgs = append(msgs, WSMessage{Header: header, Payload: data})
		}
	case EventSeriesRemove:
		id, err := seriesID()
		if err != nil {
			return nil, err
		}
		header.Type = MessageTypeSeriesRemove
		msgs = append(msgs, WSMessage{Header: header, Payload: RemoveMessage{SeriesID: id}})
	case EventAxisLimits:
		if event.Bounds == nil {
			return nil, fmt.Errorf("axis limits event has no bounds")
		}
		header.Type = MessageTypeAxisLimits
		msgs = append(msgs, WSMessage{Header: header, Payload: *event.Bounds})
	case EventSelection:
		header.Type = MessageTypeSelection
		msgs = append(msgs, WSMessage{Header: header, Payload: event.Selection})
	case EventStatus, EventStreamEnd:
		if event.Status == nil {
			return nil, fmt.Errorf("%s event has no status", event.Type)
		}
		if event.Type == EventStatus {
			header.Type = MessageTypeStatus
			msgs = append(msgs, WSMessage{Header: header, Payload: *event.Status})
		} else {
			header.Type = MessageTypeStreamEnd
			msgs = append(msgs, WSMessage{Header: header, Payload: StreamEndMessage{Error: event.Status.Error, Msg: event.Status.Msg}})
		}
	default:
		return nil, fmt.Errorf("unknown scene event type %q", event.Type)
	}

	encoded := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		buf, err := EncodeWSMessage(msg)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, buf)
	}
	return encoded, nil
}
