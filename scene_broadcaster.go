package cactusplot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/trace"
	"slices"
	"sync"
)

type SceneEventType string

const (
	EventSeriesAdd    SceneEventType = "series_add"
	EventSeriesData   SceneEventType = "series_data"
	EventSeriesStyle  SceneEventType = "series_style"
	EventSeriesRemove SceneEventType = "series_remove"
	EventAxisLimits   SceneEventType = "axis_limits"
	EventSelection    SceneEventType = "selection"
	EventStatus       SceneEventType = "status"
	EventStreamEnd    SceneEventType = "stream_end"
)

// A status line. Error marks failed commands.
type StatusLine struct {
	Msg   string `json:"msg"`
	Error bool   `json:"error"`
}

// SceneEvent is one change to the scene as seen by clients. Which fields are
// set depends on Type.
type SceneEvent struct {
	Type      SceneEventType   `json:"type"`
	ID        DatasetID        `json:"id,omitempty"`
	Points    []Point          `json:"points,omitempty"`
	Style     *Style           `json:"style,omitempty"`
	Bounds    *Bounds          `json:"bounds,omitempty"`
	Selection []SelectionEntry `json:"selection,omitempty"`
	Status    *StatusLine      `json:"status,omitempty"`
}

type broadcastSeries struct {
	series Series
	style  Style
}

// SceneBroadcaster is the render surface, selection list and status display
// for websocket clients. It keeps the current scene so that a client that
// connects late is first sent everything that is on screen, then live
// updates.
type SceneBroadcaster struct {
	mutex sync.Mutex

	// These are channels from open websockets where we are sending events
	// to. Sends never block: a channel whose buffer is full is closed and
	// dropped, so one stalled client cannot hold up the coordinator.
	channelsForLiveUpdate []chan<- SceneEvent

	series     map[DatasetID]broadcastSeries
	order      []DatasetID
	limits     *Bounds
	selection  []SelectionEntry
	statusLog  *ThreadUnsafeRing[StatusLine]
	ended      bool
	endMessage StatusLine

	numEventsEmitted int

	logger *slog.Logger
}

// statusHistory is how many status lines are replayed to new clients.
func NewSceneBroadcaster(statusHistory int) *SceneBroadcaster {
	statusHistory = Max(statusHistory, 1)

	return &SceneBroadcaster{
		channelsForLiveUpdate: make([]chan<- SceneEvent, 0),
		series:                make(map[DatasetID]broadcastSeries),
		statusLog:             NewRing[StatusLine](statusHistory),
		logger:                slog.Default().With("tag", "SceneBroadcaster"),
	}
}

// Register a new channel. Called from the HTTP server when a new websocket
// connection is initiated. The broadcaster owns c from now on and closes it
// when the client is deregistered or falls behind.
//
// - ctx: is the HTTP call context.
// - c: is the channel to send events on. It must be buffered and large enough for the replay of the current scene, otherwise it is closed straight away.
//
// Returns false if c was closed instead of registered.
func (b *SceneBroadcaster) RegisterChannel(ctx context.Context, c chan<- SceneEvent) bool {
	// The replay of the current scene and the registration happen under the
	// same lock as every scene update. A client therefore sees the scene as
	// it was at registration followed by every later change, with nothing
	// missed or duplicated in between.
	traceCtx, task := trace.NewTask(ctx, "RegisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	var replayed bool
	trace.WithRegion(traceCtx, "pushSceneToChannel", func() {
		replayed = b.pushSceneToChannel(c)
	})
	if !replayed {
		close(c)
		b.logger.With("channel", c).Warn("channel too small for the scene replay, closed it")
		return false
	}

	b.channelsForLiveUpdate = append(b.channelsForLiveUpdate, c)

	b.logger.With(
		"newChannel", c,
		"channels", len(b.channelsForLiveUpdate),
	).Info("registered channel")
	return true
}

// Deregister a channel and close it. Called when a websocket client
// disconnects. A channel that was already dropped for lagging is left alone.
func (b *SceneBroadcaster) DeregisterChannel(ctx context.Context, c chan<- SceneEvent) {
	traceCtx, task := trace.NewTask(ctx, "DeregisterChannel")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	if !slices.Contains(b.channelsForLiveUpdate, c) {
		return
	}

	b.channelsForLiveUpdate = Filter(b.channelsForLiveUpdate, func(channel chan<- SceneEvent) bool {
		return channel != c
	})
	close(c)
	b.logger.With(
		"removedChannel", c,
		"channels", len(b.channelsForLiveUpdate),
	).Info("deregistered channel")
}

func (b *SceneBroadcaster) AddSeries(ctx context.Context, id DatasetID, series Series, style Style) error {
	return b.update(ctx, func() (SceneEvent, error) {
		if _, exists := b.series[id]; exists {
			return SceneEvent{}, fmt.Errorf("series %s already exists", id)
		}
		b.series[id] = broadcastSeries{series: series, style: style}
		b.order = append(b.order, id)
		return SceneEvent{Type: EventSeriesAdd, ID: id, Points: series.Points(), Style: &style}, nil
	})
}

func (b *SceneBroadcaster) UpdateSeriesStyle(ctx context.Context, id DatasetID, style Style) error {
	return b.update(ctx, func() (SceneEvent, error) {
		current, exists := b.series[id]
		if !exists {
			return SceneEvent{}, fmt.Errorf("%w: no series %s", ErrDatasetNotFound, id)
		}
		current.style = style
		b.series[id] = current
		return SceneEvent{Type: EventSeriesStyle, ID: id, Style: &style}, nil
	})
}

func (b *SceneBroadcaster) UpdateSeriesData(ctx context.Context, id DatasetID, series Series) error {
	return b.update(ctx, func() (SceneEvent, error) {
		current, exists := b.series[id]
		if !exists {
			return SceneEvent{}, fmt.Errorf("%w: no series %s", ErrDatasetNotFound, id)
		}
		current.series = series
		b.series[id] = current
		return SceneEvent{Type: EventSeriesData, ID: id, Points: series.Points()}, nil
	})
}

func (b *SceneBroadcaster) RemoveSeries(ctx context.Context, id DatasetID) error {
	return b.update(ctx, func() (SceneEvent, error) {
		if _, exists := b.series[id]; !exists {
			return SceneEvent{}, fmt.Errorf("%w: no series %s", ErrDatasetNotFound, id)
		}
		delete(b.series, id)
		b.order = slices.DeleteFunc(b.order, func(other DatasetID) bool { return other == id })
		return SceneEvent{Type: EventSeriesRemove, ID: id}, nil
	})
}

func (b *SceneBroadcaster) SetAxisLimits(ctx context.Context, bounds Bounds) error {
	return b.update(ctx, func() (SceneEvent, error) {
		b.limits = &bounds
		return SceneEvent{Type: EventAxisLimits, Bounds: &bounds}, nil
	})
}

func (b *SceneBroadcaster) Refresh(ctx context.Context, entries []SelectionEntry) error {
	return b.update(ctx, func() (SceneEvent, error) {
		b.selection = slices.Clone(entries)
		return SceneEvent{Type: EventSelection, Selection: slices.Clone(entries)}, nil
	})
}

func (b *SceneBroadcaster) SetStatus(ctx context.Context, message string, isError bool) error {
	return b.update(ctx, func() (SceneEvent, error) {
		line := StatusLine{Msg: message, Error: isError}
		b.statusLog.Push(line)
		return SceneEvent{Type: EventStatus, Status: &line}, nil
	})
}

// Reset removes every series from the scene. Axis limits, selection and
// status are kept.
func (b *SceneBroadcaster) Reset(ctx context.Context) {
	traceCtx, task := trace.NewTask(ctx, "SceneReset")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	for _, id := range b.order {
		b.numEventsEmitted++
		b.broadcast(SceneEvent{Type: EventSeriesRemove, ID: id})
	}

	b.logger.With("series", len(b.order)).Info("scene reset")
	b.series = make(map[DatasetID]broadcastSeries)
	b.order = nil
}

// End tells every client, current and future, that no more updates will
// come.
func (b *SceneBroadcaster) End(ctx context.Context, err error) {
	line := StatusLine{Msg: "stream ended"}
	if err != nil {
		line = StatusLine{Msg: err.Error(), Error: true}
	}

	b.update(ctx, func() (SceneEvent, error) {
		b.ended = true
		b.endMessage = line
		b.logger.With("numEventsEmitted", b.numEventsEmitted).Info("scene broadcaster ended")
		return SceneEvent{Type: EventStreamEnd, Status: &line}, nil
	})
}

// Recent status lines, oldest first.
func (b *SceneBroadcaster) StatusHistory() []StatusLine {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.statusLog.ReadAllOrdered()
}

// update applies a change to the cached scene and sends the resulting event
// to every live channel, all under the lock.
func (b *SceneBroadcaster) update(ctx context.Context, apply func() (SceneEvent, error)) error {
	traceCtx, task := trace.NewTask(ctx, "SceneUpdate")
	defer task.End()

	trace.WithRegion(traceCtx, "Lock", b.mutex.Lock)
	defer b.mutex.Unlock()

	event, err := apply()
	if err != nil {
		return err
	}

	b.numEventsEmitted++
	b.logger.With("type", event.Type, "id", event.ID).Debug("scene event")

	trace.WithRegion(traceCtx, "Broadcast", func() {
		b.broadcast(event)
	})
	return nil
}

func trySend(c chan<- SceneEvent, event SceneEvent) bool {
	select {
	case c <- event:
		return true
	default:
		return false
	}
}

// Sends event to every live channel. Channels that are full are closed and
// dropped. Must be called with the lock held.
func (b *SceneBroadcaster) broadcast(event SceneEvent) {
	b.channelsForLiveUpdate = Filter(b.channelsForLiveUpdate, func(c chan<- SceneEvent) bool {
		if trySend(c, event) {
			return true
		}
		close(c)
		b.logger.With(
			"droppedChannel", c,
			"type", event.Type,
		).Warn("client fell behind, dropped channel")
		return false
	})
}

// Sends the current scene to c. Returns false if c filled up first.
func (b *SceneBroadcaster) pushSceneToChannel(c chan<- SceneEvent) bool {
	for _, id := range b.order {
		s := b.series[id]
		style := s.style
		if !trySend(c, SceneEvent{Type: EventSeriesAdd, ID: id, Points: s.series.Points(), Style: &style}) {
			return false
		}
	}

	if b.limits != nil {
		limits := *b.limits
		if !trySend(c, SceneEvent{Type: EventAxisLimits, Bounds: &limits}) {
			return false
		}
	}

	if b.selection != nil {
		if !trySend(c, SceneEvent{Type: EventSelection, Selection: slices.Clone(b.selection)}) {
			return false
		}
	}

	for _, line := range b.statusLog.ReadAllOrdered() {
		line := line
		if !trySend(c, SceneEvent{Type: EventStatus, Status: &line}) {
			return false
		}
	}

	if b.ended {
		end := b.endMessage
		return trySend(c, SceneEvent{Type: EventStreamEnd, Status: &end})
	}
	return true
}
