package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"

	"github.com/cactusdynamics/cactusplot"
	"nhooyr.io/websocket"
)

// Config holds the configuration for the WS reader
type Config struct {
	ServerURL string
	Output    io.Writer
	Logger    *slog.Logger
	// Stop after the initial scene instead of waiting for STREAM_END. The
	// scene is complete once the first STATUS or SELECTION message arrives
	// after the series.
	Snapshot bool
}

// WSReader follows the binary scene protocol and writes every series it
// receives as CSV rows.
type WSReader struct {
	config    Config
	csvWriter *csv.Writer
	labels    map[uint32]string
}

// NewWSReader creates a new WS reader with the given configuration
func NewWSReader(config Config) *WSReader {
	return &WSReader{
		config:    config,
		csvWriter: csv.NewWriter(config.Output),
		labels:    make(map[uint32]string),
	}
}

// Connect establishes websocket connection and processes messages
func (w *WSReader) Connect(ctx context.Context) error {
	u, err := url.Parse(w.config.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	w.config.Logger.Info("Connecting to websocket", "url", u.String())

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := w.csvWriter.Write([]string{"series_id", "label", "x", "y"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for {
		_, messageData, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				w.config.Logger.Info("Connection closed normally")
				break
			}
			w.config.Logger.Error("Error reading message", "error", err)
			break
		}

		if err := w.processMessage(messageData); err != nil {
			if err == io.EOF {
				w.config.Logger.Info("Stream ended")
				break
			}
			w.config.Logger.Error("Error processing message", "error", err)
		}
	}

	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

// processMessage processes a single websocket message. io.EOF means the
// reader is done.
func (w *WSReader) processMessage(messageData []byte) error {
	msg, err := cactusplot.DecodeWSMessage(messageData)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	switch payload := msg.Payload.(type) {
	case cactusplot.DataMessage:
		return w.processDataMessage(payload)

	case cactusplot.StyleMessage:
		w.labels[payload.SeriesID] = payload.Style.Label
		w.config.Logger.Debug("Series style", "series", payload.SeriesID, "label", payload.Style.Label, "visible", payload.Style.Visible)

	case cactusplot.RemoveMessage:
		delete(w.labels, payload.SeriesID)
		w.config.Logger.Debug("Series removed", "series", payload.SeriesID)

	case cactusplot.Metadata:
		w.config.Logger.Debug("Received metadata", "session", payload.SessionID, "title", payload.PlotOptions.Title)

	case cactusplot.Bounds:
		w.config.Logger.Debug("Axis limits", "bounds", payload)

	case []cactusplot.SelectionEntry:
		w.config.Logger.Debug("Selection", "entries", len(payload))
		if w.config.Snapshot {
			return io.EOF
		}

	case cactusplot.StatusLine:
		if payload.Error {
			w.config.Logger.Warn("Status", "message", payload.Msg)
		} else {
			w.config.Logger.Info("Status", "message", payload.Msg)
		}
		if w.config.Snapshot {
			return io.EOF
		}

	case cactusplot.StreamEndMessage:
		if payload.Error {
			w.config.Logger.Error("Stream ended with error", "message", payload.Msg)
		} else {
			w.config.Logger.Info("Stream ended successfully", "message", payload.Msg)
		}
		return io.EOF

	default:
		w.config.Logger.Warn("Unknown message type", "type", fmt.Sprintf("0x%02x", msg.Header.Type))
	}

	return nil
}

// processDataMessage writes one CSV row per point
func (w *WSReader) processDataMessage(dataMsg cactusplot.DataMessage) error {
	seriesID := strconv.FormatUint(uint64(dataMsg.SeriesID), 10)
	label := w.labels[dataMsg.SeriesID]

	for i := 0; i < len(dataMsg.X); i++ {
		row := []string{
			seriesID,
			label,
			strconv.FormatFloat(dataMsg.X[i], 'g', -1, 64),
			strconv.FormatFloat(dataMsg.Y[i], 'g', -1, 64),
		}
		if err := w.csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

func main() {
	var serverURL = flag.String("url", "http://localhost:5274", "URL of the cactusplot server")
	var snapshot = flag.Bool("snapshot", false, "exit after the current scene has been received")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	config := Config{
		ServerURL: *serverURL,
		Output:    os.Stdout,
		Logger:    logger,
		Snapshot:  *snapshot,
	}

	reader := NewWSReader(config)
	if err := reader.Connect(context.Background()); err != nil {
		config.Logger.Error("Failed to connect", "error", err)
		os.Exit(1)
	}
}
