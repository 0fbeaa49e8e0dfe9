package cactusplot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const maxCommandSize = 1 << 20

type HttpServer struct {
	broadcaster  *SceneBroadcaster
	requests     chan<- CommandRequest
	addr         string
	metadata     Metadata
	clientBuffer int
	mux          *http.ServeMux
	logger       logrus.FieldLogger
}

type commandResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// requests is where POST /command enqueues commands for the coordinator.
// clientBuffer is the size of the per-websocket event channel.
func NewHttpServer(broadcaster *SceneBroadcaster, addr string, metadata Metadata, requests chan<- CommandRequest, clientBuffer int) *HttpServer {
	s := &HttpServer{
		broadcaster:  broadcaster,
		requests:     requests,
		addr:         addr,
		metadata:     metadata,
		clientBuffer: clientBuffer,
		mux:          http.NewServeMux(),
		logger:       logrus.WithField("tag", "HttpServer"),
	}

	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/ws/json", s.handleJSONWebSocket)
	s.mux.HandleFunc("GET /metadata", cors(s.handleMetadata))
	s.mux.HandleFunc("GET /status", cors(s.handleStatus))
	// No CORS here: commands write files, so only same-origin pages may send
	// them. Requiring a JSON body also rules out plain cross-site form posts.
	s.mux.HandleFunc("POST /command", s.handleCommand)

	return s
}

// Binary protocol: a METADATA message, then the scene as encoded by
// EncodeSceneEvent.
func (s *HttpServer) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	s.serveWebSocket(w, req, func(ctx context.Context, c *websocket.Conn, event SceneEvent) error {
		msgs, err := EncodeSceneEvent(event)
		if err != nil {
			// Should not happen for events produced by the broadcaster. Skip the
			// event rather than dropping the client.
			s.logger.WithError(err).WithField("type", event.Type).Error("failed to encode scene event")
			return nil
		}
		for _, msg := range msgs {
			if err := c.Write(ctx, websocket.MessageBinary, msg); err != nil {
				return err
			}
		}
		return nil
	}, func(ctx context.Context, c *websocket.Conn) error {
		msg, err := EncodeWSMessage(WSMessage{
			Header:  EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeMetadata},
			Payload: s.metadata,
		})
		if err != nil {
			return err
		}
		return c.Write(ctx, websocket.MessageBinary, msg)
	})
}

// JSON protocol: every scene event as one JSON text message.
func (s *HttpServer) handleJSONWebSocket(w http.ResponseWriter, req *http.Request) {
	s.serveWebSocket(w, req, func(ctx context.Context, c *websocket.Conn, event SceneEvent) error {
		return wsjson.Write(ctx, c, event)
	}, nil)
}

func (s *HttpServer) serveWebSocket(
	w http.ResponseWriter,
	req *http.Request,
	write func(context.Context, *websocket.Conn, SceneEvent) error,
	hello func(context.Context, *websocket.Conn) error,
) {
	c, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to accept new websocket connection")
		return
	}

	ctx := req.Context()
	ctx = c.CloseRead(ctx) // Clients only listen. Commands go through POST /command.

	if hello != nil {
		if err := hello(ctx, c); err != nil {
			s.logger.WithError(err).Warn("failed to send metadata, closing websocket")
			c.Close(websocket.StatusInternalError, "metadata")
			return
		}
	}

	channel := make(chan SceneEvent, s.clientBuffer)
	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case event, open := <-channel:
				if !open {
					// The broadcaster dropped us for falling behind.
					s.logger.Warn("event channel closed, closing websocket")
					c.Close(websocket.StatusTryAgainLater, "client too slow")
					return
				}

				if err := write(ctx, c, event); err != nil {
					// At this point the websocket closed, so we don't even need to send anything
					s.logger.Warn("websocket write failed and closed")
					return
				}
			case <-ctx.Done():
				s.logger.Info("client closed connection or context canceled")
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}()

	// From here on the broadcaster owns the channel and closes it.
	s.broadcaster.RegisterChannel(ctx, channel)

	wg.Wait()

	s.broadcaster.DeregisterChannel(context.WithoutCancel(ctx), channel)
}

// The UI may be served from somewhere else during development.
func cors(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "content-type")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		h(w, req)
	}
}

func (s *HttpServer) handleMetadata(w http.ResponseWriter, req *http.Request) {
	s.writeJSON(w, http.StatusOK, s.metadata)
}

func (s *HttpServer) handleStatus(w http.ResponseWriter, req *http.Request) {
	s.writeJSON(w, http.StatusOK, s.broadcaster.StatusHistory())
}

// POST /command decodes one command, hands it to the coordinator and waits
// for it to be applied. A command that fails is reported with 422 and the
// user-facing message.
func (s *HttpServer) handleCommand(w http.ResponseWriter, req *http.Request) {
	mediaType, _, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		s.writeJSON(w, http.StatusUnsupportedMediaType, commandResponse{Error: "content type must be application/json"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxCommandSize))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, commandResponse{Error: err.Error()})
		return
	}

	cmd, err := DecodeCommand(body)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, commandResponse{Error: err.Error()})
		return
	}

	ctx := req.Context()
	result := make(chan error, 1)

	select {
	case s.requests <- CommandRequest{Command: cmd, Result: result}:
	case <-ctx.Done():
		return
	}

	select {
	case err := <-result:
		if err != nil {
			s.writeJSON(w, http.StatusUnprocessableEntity, commandResponse{Error: err.Error()})
			return
		}
		s.writeJSON(w, http.StatusOK, commandResponse{OK: true})
	case <-ctx.Done():
		// The command still runs. The client just won't hear about it here.
		s.logger.WithField("command", cmd.commandName()).Info("client left before command finished")
	}
}

func (s *HttpServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Warn("failed to write response")
	}
}

// Handler exposes the routes, for embedding or tests.
func (s *HttpServer) Handler() http.Handler {
	return s.mux
}

// Run blocks until the listener fails.
func (s *HttpServer) Run() error {
	s.logger.Infof("starting HTTP server at http://%s", s.addr)
	err := http.ListenAndServe(s.addr, s.mux)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
