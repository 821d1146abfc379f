package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slog"

	"manualpilot/canvas/internal/canvas"
	"manualpilot/canvas/internal/command"
	"manualpilot/canvas/internal/history"
	"manualpilot/canvas/internal/protocol"
	"manualpilot/canvas/internal/shape"
)

const AutosaveKey = "whiteboard-state"

var ErrBusy = errors.New("board is handling another event")

type State int

const (
	StateIdle State = iota
	StateStroking
	StateShapePreviewing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStroking:
		return "stroking"
	case StateShapePreviewing:
		return "shape-previewing"
	default:
		return "unknown"
	}
}

type EventKind int

const (
	EventPointerDown EventKind = iota
	EventPointerMove
	EventPointerUp
	EventPointerLeave
	EventCommand
	EventRemote
	EventAutosave
	EventTool
	EventLoad
	eventInspect
)

// Event is everything a board reacts to. Pointer events use X and Y, command
// events carry Command and remote events carry the relayed Envelope.
type Event struct {
	Kind     EventKind
	X, Y     float64
	Command  command.Command
	Remote   protocol.Envelope
	Tool     Tool
	Shape    shape.Kind
	Snapshot []byte

	inspect func(*Board)
}

func PointerDown(x, y float64) Event { return Event{Kind: EventPointerDown, X: x, Y: y} }
func PointerMove(x, y float64) Event { return Event{Kind: EventPointerMove, X: x, Y: y} }
func PointerUp(x, y float64) Event { return Event{Kind: EventPointerUp, X: x, Y: y} }
func PointerLeave(x, y float64) Event { return Event{Kind: EventPointerLeave, X: x, Y: y} }

func Command(c command.Command) Event { return Event{Kind: EventCommand, Command: c} }
func Remote(env protocol.Envelope) Event { return Event{Kind: EventRemote, Remote: env} }

// SelectTool switches the pointer tool. kind is only used by ToolShape and may
// be empty to keep the current shape.
func SelectTool(tool Tool, kind shape.Kind) Event {
	return Event{Kind: EventTool, Tool: tool, Shape: kind}
}

// Load replaces the surface with a previously saved snapshot.
func Load(snapshot []byte) Event { return Event{Kind: EventLoad, Snapshot: snapshot} }

// Emitter sends local drawing and cursor events to the other participants.
// Delivery is best effort.
type Emitter interface {
	Emit(typ protocol.EventType, payload any)
}

// Store persists the autosaved surface.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
}

// Exporter handles the download command.
type Exporter interface {
	Export(ctx context.Context, snapshot []byte) (string, error)
}

type Options struct {
	Surface     canvas.Surface
	Emitter     Emitter
	Store       Store
	Exporter    Exporter
	Logger      *slog.Logger
	Settings    Settings
	DisplayName string

	// AutosaveDelay is how long a session waits after the first change before
	// saving. Changes inside the window are coalesced into that save.
	AutosaveDelay time.Duration

	// schedule is called whenever the surface changed outside a commit. The
	// session uses it to debounce autosaves.
	schedule func()
}

type point struct {
	x, y float64
}

type transitionKey struct {
	state State
	kind  EventKind
}

type handler func(b *Board, ctx context.Context, ev Event) error

// transitions is the pointer state machine. Pairs missing from the table are
// ignored.
var transitions = map[transitionKey]handler{
	{StateIdle, EventPointerDown}:             (*Board).pointerDown,
	{StateIdle, EventPointerMove}:             (*Board).hover,
	{StateStroking, EventPointerMove}:         (*Board).extendStroke,
	{StateStroking, EventPointerUp}:           (*Board).endStroke,
	{StateStroking, EventPointerLeave}:        (*Board).endStroke,
	{StateShapePreviewing, EventPointerMove}:  (*Board).previewShape,
	{StateShapePreviewing, EventPointerUp}:    (*Board).placeShape,
	{StateShapePreviewing, EventPointerLeave}: (*Board).cancelShape,
}

// Board is one participant's canvas: tool settings, the pointer state
// machine, shapes and history. It is not safe for concurrent use; Session
// serialises access to it.
type Board struct {
	surface  canvas.Surface
	history  *history.Manager
	shapes   *shape.Engine
	emitter  Emitter
	store    Store
	exporter Exporter
	logger   *slog.Logger
	name     string
	schedule func()

	settings Settings
	state    State
	last     point
	anchor   point
	handling bool
	dirty    bool

	remote  map[string]point
	cursors protocol.Cursors
}

// New paints the background and commits it as the first history entry.
func New(opts Options) (*Board, error) {
	if opts.Surface == nil {
		return nil, errors.New("board needs a surface")
	}

	if opts.Emitter == nil {
		opts.Emitter = nopEmitter{}
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.HandlerOptions{Level: slog.LevelError}.NewTextHandler(io.Discard))
	}

	if opts.Settings == (Settings{}) {
		opts.Settings = DefaultSettings()
	}

	h := history.New(opts.Surface)
	b := &Board{
		surface:  opts.Surface,
		history:  h,
		shapes:   shape.NewEngine(opts.Surface, h),
		emitter:  opts.Emitter,
		store:    opts.Store,
		exporter: opts.Exporter,
		logger:   opts.Logger,
		name:     opts.DisplayName,
		schedule: opts.schedule,
		settings: opts.Settings,
		remote:   make(map[string]point),
		cursors:  make(protocol.Cursors),
	}

	b.paintBackground()
	if err := h.Commit(); err != nil {
		return nil, err
	}

	return b, nil
}

// Handle applies one event. It is the only entry point that changes the board.
func (b *Board) Handle(ctx context.Context, ev Event) error {
	if b.handling {
		return ErrBusy
	}

	b.handling = true
	defer func() { b.handling = false }()

	switch ev.Kind {
	case EventCommand:
		return b.apply(ctx, ev.Command)
	case EventRemote:
		return b.applyRemote(ev.Remote)
	case EventAutosave:
		return b.autosave(ctx)
	case EventTool:
		return b.selectTool(ev.Tool, ev.Shape)
	case EventLoad:
		return b.load(ev.Snapshot)
	case eventInspect:
		ev.inspect(b)
		return nil
	}

	h, ok := transitions[transitionKey{b.state, ev.Kind}]
	if !ok {
		return nil
	}

	return h(b, ctx, ev)
}

func (b *Board) State() State { return b.state }
func (b *Board) Settings() Settings { return b.settings }
func (b *Board) Shapes() []shape.Record { return b.shapes.Records() }

func (b *Board) Shape(id string) (shape.Record, bool) {
	return b.shapes.Get(id)
}

// Cursors returns the last cursor table received from the relay.
func (b *Board) Cursors() protocol.Cursors {
	return maps.Clone(b.cursors)
}

// History returns the undo and redo depth.
func (b *Board) History() (int, int) {
	return b.history.Depth()
}

// Snapshot captures the surface as it is right now.
func (b *Board) Snapshot() ([]byte, error) {
	return b.surface.ToImage()
}

func (b *Board) paintBackground() {
	w, h := b.surface.Size()
	b.surface.FillRect(0, 0, float64(w), float64(h), canvas.Background(b.settings.Dark))
}

// touched marks the surface as changed since the last autosave.
func (b *Board) touched() {
	b.dirty = true
	if b.schedule != nil {
		b.schedule()
	}
}

func (b *Board) autosave(ctx context.Context) error {
	if b.store == nil || !b.dirty {
		return nil
	}

	snapshot, err := b.surface.ToImage()
	if err != nil {
		return fmt.Errorf("autosave: %w", err)
	}

	if err := b.store.Put(ctx, AutosaveKey, snapshot); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}

	b.dirty = false
	b.logger.Debug("autosaved", slog.Int("bytes", len(snapshot)))
	return nil
}

// load paints a saved snapshot over the surface and commits it. Shapes from
// before the load are forgotten since the snapshot does not carry them.
func (b *Board) load(snapshot []byte) error {
	if b.state != StateIdle {
		return ErrBusy
	}

	if err := b.surface.FromImage(snapshot); err != nil {
		return fmt.Errorf("load: %w", err)
	}

	b.shapes.Reset()
	return b.commit()
}

type nopEmitter struct{}

func (nopEmitter) Emit(protocol.EventType, any) {}
