package board

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"manualpilot/canvas/internal/canvas"
	"manualpilot/canvas/internal/canvas/canvastest"
	"manualpilot/canvas/internal/command"
	"manualpilot/canvas/internal/protocol"
	"manualpilot/canvas/internal/shape"
)

type emitted struct {
	typ     protocol.EventType
	payload any
}

type recordingEmitter struct {
	events []emitted
}

func (r *recordingEmitter) Emit(typ protocol.EventType, payload any) {
	r.events = append(r.events, emitted{typ, payload})
}

func (r *recordingEmitter) types() []protocol.EventType {
	out := []protocol.EventType{}
	for _, e := range r.events {
		out = append(out, e.typ)
	}
	return out
}

type memStore struct {
	mu   sync.Mutex
	puts map[string][][]byte
}

func (m *memStore) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.puts == nil {
		m.puts = make(map[string][][]byte)
	}
	m.puts[key] = append(m.puts[key], value)
	return nil
}

func (m *memStore) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.puts[key])
}

type fakeExporter struct {
	snapshots [][]byte
}

func (f *fakeExporter) Export(ctx context.Context, snapshot []byte) (string, error) {
	f.snapshots = append(f.snapshots, snapshot)
	return "whiteboard.png", nil
}

func newBoard(t *testing.T, settings Settings) (*Board, *canvastest.Recorder, *recordingEmitter) {
	t.Helper()

	rec := canvastest.New(300, 200)
	em := &recordingEmitter{}
	b, err := New(Options{Surface: rec, Emitter: em, Settings: settings, DisplayName: "ada"})
	if err != nil {
		t.Fatal(err)
	}

	return b, rec, em
}

func handle(t *testing.T, b *Board, evs ...Event) {
	t.Helper()

	for _, ev := range evs {
		if err := b.Handle(context.Background(), ev); err != nil {
			t.Fatalf("handle %+v: %v", ev, err)
		}
	}
}

func TestNewCommitsBackground(t *testing.T) {
	b, rec, _ := newBoard(t, Settings{})

	if undo, redo := b.History(); undo != 1 || redo != 0 {
		t.Errorf("expected the initial state only, got %v/%v", undo, redo)
	}

	fills := rec.Find("fillRect")
	if len(fills) != 1 || fills[0].Color != canvas.Background(false) {
		t.Errorf("expected a light background, got %+v", fills)
	}

	if b.Settings() != DefaultSettings() {
		t.Errorf("unexpected settings %+v", b.Settings())
	}
}

func TestStrokeLifecycle(t *testing.T) {
	b, rec, em := newBoard(t, Settings{})

	handle(t, b, PointerDown(10, 10))
	if b.State() != StateStroking {
		t.Fatalf("expected stroking, got %v", b.State())
	}

	handle(t, b, PointerMove(20, 25))

	strokes := rec.Find("stroke")
	if len(strokes) != 1 {
		t.Fatalf("expected one segment, got %v", len(strokes))
	}

	if args := strokes[0].Args; args[0] != 5 || args[1] != 1 {
		t.Errorf("pen strokes at width 5 and full opacity, got %v", args)
	}

	if lines := rec.Find("lineTo"); len(lines) != 1 || lines[0].Args[0] != 20 || lines[0].Args[1] != 25 {
		t.Errorf("unexpected segment %+v", lines)
	}

	handle(t, b, PointerUp(20, 25))
	if b.State() != StateIdle {
		t.Errorf("expected idle, got %v", b.State())
	}

	if undo, _ := b.History(); undo != 2 {
		t.Errorf("stroke end must commit, undo depth %v", undo)
	}

	want := []protocol.EventType{
		protocol.EventTypeDrawingStart,
		protocol.EventTypeDrawing,
		protocol.EventTypeCursorMove,
		protocol.EventTypeDrawingEnd,
	}

	got := em.types()
	if len(got) != len(want) {
		t.Fatalf("unexpected events %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %v: expected %v, got %v", i, want[i], got[i])
		}
	}

	start := em.events[0].payload.(protocol.Stroke)
	if start.X != 10 || start.Y != 10 || start.Tool != "pen" || start.Color != "#000000" || start.LineWidth != 5 {
		t.Errorf("unexpected drawing-start %+v", start)
	}

	cursor := em.events[2].payload.(protocol.CursorMove)
	if cursor.Name != "ada" {
		t.Errorf("unexpected cursor %+v", cursor)
	}
}

func TestPointerLeaveEndsStroke(t *testing.T) {
	b, _, _ := newBoard(t, Settings{})

	handle(t, b, PointerDown(1, 1), PointerMove(2, 2), PointerLeave(3, 3))

	if b.State() != StateIdle {
		t.Errorf("expected idle, got %v", b.State())
	}
	if undo, _ := b.History(); undo != 2 {
		t.Errorf("leaving must commit the stroke, undo depth %v", undo)
	}
}

func TestIdlePointerEventsOnlyHover(t *testing.T) {
	b, rec, em := newBoard(t, Settings{})
	rec.Reset()

	handle(t, b, PointerMove(5, 5), PointerUp(5, 5), PointerLeave(5, 5))

	if len(rec.Ops) != 0 {
		t.Errorf("idle pointer events must not paint, got %+v", rec.Ops)
	}

	if got := em.types(); len(got) != 1 || got[0] != protocol.EventTypeCursorMove {
		t.Errorf("expected a single cursor move, got %v", got)
	}
}

func TestHighlighterStyle(t *testing.T) {
	b, rec, _ := newBoard(t, Settings{})

	handle(t, b,
		Command(command.Highlight{Color: "yellow", Opacity: math.NaN()}),
		PointerDown(0, 0),
		PointerMove(10, 0),
	)

	s := b.Settings()
	if s.Tool != ToolHighlighter || s.Color != "yellow" || s.Opacity != 0.5 {
		t.Errorf("unexpected settings %+v", s)
	}

	if args := rec.Find("stroke")[0].Args; args[0] != 12.5 || args[1] != 0.5 {
		t.Errorf("highlighter strokes at width×2.5 with its opacity, got %v", args)
	}
}

func TestEraserUsesBackground(t *testing.T) {
	b, rec, _ := newBoard(t, Settings{})

	handle(t, b,
		Command(command.Theme{Mode: "dark"}),
		Command(command.Erase{}),
		PointerDown(0, 0),
		PointerMove(10, 10),
	)

	strokes := rec.Find("stroke")
	if len(strokes) == 0 {
		t.Fatal("expected an eraser stroke")
	}

	if c := strokes[len(strokes)-1].Color; c != canvas.Background(true) {
		t.Errorf("eraser must paint the dark background, got %v", c)
	}
}

func TestSettingCommandsDoNotCommit(t *testing.T) {
	b, _, _ := newBoard(t, Settings{})

	handle(t, b,
		Command(command.Draw{Color: "red", Width: 8}),
		Command(command.Highlight{Color: "green", Opacity: 0.3}),
		Command(command.Erase{}),
		Command(command.Draw{Color: "", Width: math.NaN()}),
	)

	if undo, redo := b.History(); undo != 1 || redo != 0 {
		t.Errorf("tool changes must not commit, got %v/%v", undo, redo)
	}

	s := b.Settings()
	if s.Tool != ToolPen || s.Color != "green" || s.Width != 8 {
		t.Errorf("unexpected settings %+v", s)
	}
}

func TestShapeDrag(t *testing.T) {
	b, rec, _ := newBoard(t, Settings{Tool: ToolShape, Shape: shape.KindRectangle, Color: "red", Width: 2, Opacity: 1})

	handle(t, b, PointerDown(10, 10))
	if b.State() != StateShapePreviewing {
		t.Fatalf("expected shape previewing, got %v", b.State())
	}

	handle(t, b, PointerMove(30, 40))
	if rec.Restores != 1 {
		t.Errorf("preview must repaint the committed state, %v restores", rec.Restores)
	}

	if strokes := rec.Find("stroke"); len(strokes) != 1 || !strokes[0].Dash {
		t.Errorf("expected a dashed preview, got %+v", strokes)
	}

	handle(t, b, PointerMove(40, 50), PointerUp(50, 60))

	if b.State() != StateIdle {
		t.Errorf("expected idle, got %v", b.State())
	}

	for _, s := range rec.Find("stroke") {
		if s.Dash {
			t.Error("previews must be gone once the shape is placed")
		}
	}

	records := b.Shapes()
	if len(records) != 1 {
		t.Fatalf("expected one shape, got %+v", records)
	}

	r := records[0]
	if r.ID != "rectangle_1" || r.X != 10 || r.Y != 10 || r.Width != 40 || r.Height != 50 || r.Color != "red" {
		t.Errorf("unexpected record %+v", r)
	}

	if undo, _ := b.History(); undo != 2 {
		t.Errorf("placing must commit once, undo depth %v", undo)
	}
}

func TestShapeDragLeaveCancels(t *testing.T) {
	b, rec, _ := newBoard(t, Settings{Tool: ToolShape, Shape: shape.KindCircle, Color: "blue", Width: 2, Opacity: 1})

	handle(t, b, PointerDown(10, 10), PointerMove(50, 50), PointerLeave(60, 60))

	if b.State() != StateIdle || len(b.Shapes()) != 0 {
		t.Errorf("leaving must cancel the drag, state %v shapes %v", b.State(), b.Shapes())
	}

	if len(rec.Find("stroke")) != 0 {
		t.Error("cancelled preview must be repainted away")
	}

	if undo, _ := b.History(); undo != 1 {
		t.Errorf("cancel must not commit, undo depth %v", undo)
	}
}

func TestShapeClickWithoutDragPlacesNothing(t *testing.T) {
	b, _, _ := newBoard(t, Settings{Tool: ToolShape, Shape: shape.KindRectangle, Color: "red", Width: 2, Opacity: 1})

	handle(t, b, PointerDown(10, 10), PointerUp(10, 10))

	if b.State() != StateIdle || len(b.Shapes()) != 0 {
		t.Errorf("a click must not place a shape, state %v shapes %v", b.State(), b.Shapes())
	}

	if undo, _ := b.History(); undo != 1 {
		t.Errorf("a click must not commit, undo depth %v", undo)
	}

	handle(t, b, PointerDown(10, 10), PointerUp(20, 10))
	if len(b.Shapes()) != 1 {
		t.Errorf("a flat drag still places a shape, got %+v", b.Shapes())
	}
}

func TestDrawShapeCommand(t *testing.T) {
	b, _, _ := newBoard(t, Settings{})

	handle(t, b, Command(command.DrawShape{
		Shape: "circle", X: 100, Y: 100, Radius: math.NaN(), Width: math.NaN(), Height: math.NaN(),
	}))

	r, ok := b.Shape("circle_1")
	if !ok {
		t.Fatal("expected circle_1")
	}

	if r.Radius != shape.DefaultRadius || r.Color != "#000000" {
		t.Errorf("unexpected defaults %+v", r)
	}

	handle(t, b, Command(command.DrawShape{Shape: "square", X: math.NaN(), Y: 3}))
	if len(b.Shapes()) != 1 {
		t.Error("a shape without a position must be ignored")
	}

	if err := b.Handle(context.Background(), Command(command.DrawShape{Shape: "hexagon", X: 1, Y: 1})); err == nil {
		t.Error("expected an error for an unknown shape")
	}
}

func TestMoveAndDeleteCommands(t *testing.T) {
	b, _, _ := newBoard(t, Settings{})

	handle(t, b,
		Command(command.DrawShape{Shape: "rectangle", X: 10, Y: 10, Width: 20, Height: 20, Radius: math.NaN(), Color: "red"}),
		Command(command.Move{ShapeID: "rectangle_1", X: 50, Y: 60}),
	)

	r, _ := b.Shape("rectangle_1")
	if r.X != 50 || r.Y != 60 {
		t.Errorf("shape not moved %+v", r)
	}

	depth, _ := b.History()

	handle(t, b,
		Command(command.Move{ShapeID: "circle_9", X: 1, Y: 1}),
		Command(command.Move{ShapeID: "rectangle_1", X: math.NaN(), Y: 1}),
		Command(command.Delete{ShapeID: "circle_9"}),
	)

	if after, _ := b.History(); after != depth {
		t.Errorf("no-ops must not commit, %v → %v", depth, after)
	}

	handle(t, b, Command(command.Delete{ShapeID: "rectangle_1"}), Command(command.Delete{ShapeID: "rectangle_1"}))
	if len(b.Shapes()) != 0 {
		t.Error("shape not deleted")
	}

	if after, _ := b.History(); after != depth+1 {
		t.Errorf("only the first delete commits, %v → %v", depth, after)
	}
}

func TestClearAndTheme(t *testing.T) {
	b, rec, _ := newBoard(t, Settings{})

	handle(t, b,
		Command(command.DrawShape{Shape: "line", X: 0, Y: 0, Width: 10, Height: 10, Radius: math.NaN()}),
		Command(command.Clear{}),
	)

	if len(b.Shapes()) != 0 {
		t.Error("clear must forget shapes")
	}

	if undo, _ := b.History(); undo != 3 {
		t.Errorf("expected shape and clear commits, undo depth %v", undo)
	}

	handle(t, b, Command(command.Theme{Mode: "light"}))
	if undo, _ := b.History(); undo != 3 {
		t.Error("switching to the current theme must be a no-op")
	}

	handle(t, b, Command(command.Theme{Mode: "dark"}))
	if !b.Settings().Dark {
		t.Fatal("expected dark mode")
	}

	fills := rec.Find("fillRect")
	if fills[len(fills)-1].Color != canvas.Background(true) {
		t.Error("theme change must repaint the background")
	}

	if undo, _ := b.History(); undo != 4 {
		t.Errorf("theme change must commit, undo depth %v", undo)
	}
}

func TestUndoRedoCommands(t *testing.T) {
	b, rec, _ := newBoard(t, Settings{})

	handle(t, b, Command(command.Undo{}), Command(command.Redo{}))
	if rec.Restores != 0 {
		t.Error("undo and redo at the boundaries must not touch the surface")
	}

	handle(t, b, Command(command.Clear{}))
	committed, _ := b.Snapshot()

	handle(t, b, Command(command.Undo{}))
	if undo, redo := b.History(); undo != 1 || redo != 1 {
		t.Errorf("unexpected depth %v/%v", undo, redo)
	}

	handle(t, b, Command(command.Redo{}))
	restored, _ := b.Snapshot()
	if string(restored) != string(committed) {
		t.Error("redo must restore the committed state")
	}
}

func TestDownload(t *testing.T) {
	b, _, _ := newBoard(t, Settings{})

	// Without an exporter the command is reported and ignored.
	handle(t, b, Command(command.Download{}))

	exp := &fakeExporter{}
	b.exporter = exp
	handle(t, b, Command(command.Download{}))

	want, _ := b.Snapshot()
	if len(exp.snapshots) != 1 || string(exp.snapshots[0]) != string(want) {
		t.Errorf("expected the current surface to be exported")
	}
}

func TestErrorCommandIsIgnored(t *testing.T) {
	b, rec, _ := newBoard(t, Settings{})
	rec.Reset()

	handle(t, b, Command(command.Error{Message: command.InvalidFormat}))

	if len(rec.Ops) != 0 || b.Settings() != DefaultSettings() {
		t.Error("an error command must not change anything")
	}
}

func remote(t *testing.T, typ protocol.EventType, payload any) Event {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return Remote(protocol.Envelope{Type: typ, Data: raw})
}

func TestRemoteStroke(t *testing.T) {
	b, rec, em := newBoard(t, Settings{})
	rec.Reset()

	handle(t, b,
		remote(t, protocol.EventTypeDrawingStart, protocol.Stroke{X: 10, Y: 10, Color: "red", LineWidth: 3, Opacity: 1, Tool: "pen", ID: "a"}),
		remote(t, protocol.EventTypeDrawing, protocol.Stroke{X: 20, Y: 20, Color: "red", LineWidth: 3, Opacity: 1, Tool: "pen", ID: "a"}),
	)

	moves := rec.Find("moveTo")
	lines := rec.Find("lineTo")
	if len(moves) != 1 || moves[0].Args[0] != 10 || len(lines) != 1 || lines[0].Args[0] != 20 {
		t.Errorf("unexpected remote segment %+v", rec.Ops)
	}

	if args := rec.Find("stroke")[0].Args; args[0] != 3 {
		t.Errorf("remote strokes use the sender's width, got %v", args)
	}

	handle(t, b,
		remote(t, protocol.EventTypeDrawingEnd, protocol.DrawingEnd{ID: "a"}),
		remote(t, protocol.EventTypeDrawing, protocol.Stroke{X: 30, Y: 30, Color: "red", LineWidth: 3, Tool: "pen", ID: "a"}),
	)

	if len(rec.Find("stroke")) != 1 {
		t.Error("a stroke without a start must not paint")
	}

	if undo, _ := b.History(); undo != 1 {
		t.Error("remote strokes must not be committed")
	}

	if len(em.events) != 0 {
		t.Error("remote events must not be echoed")
	}

	if b.State() != StateIdle {
		t.Error("remote events must not change the local state")
	}
}

func TestCursorsUpdate(t *testing.T) {
	b, _, _ := newBoard(t, Settings{})

	handle(t, b, remote(t, protocol.EventTypeCursorsUpdate, protocol.Cursors{
		"a": {X: 1, Y: 2, Name: "Anonymous"},
	}))

	cursors := b.Cursors()
	if len(cursors) != 1 || cursors["a"].Y != 2 {
		t.Errorf("unexpected cursors %+v", cursors)
	}

	cursors["b"] = protocol.CursorState{}
	if len(b.Cursors()) != 1 {
		t.Error("Cursors must return a copy")
	}

	err := b.Handle(context.Background(), Remote(protocol.Envelope{Type: protocol.EventTypeCursorsUpdate, Data: []byte(`[`)}))
	if err == nil {
		t.Error("expected a decode error")
	}
}

func TestReentrantHandleIsRejected(t *testing.T) {
	b, _, _ := newBoard(t, Settings{})

	var inner error
	handle(t, b, Event{Kind: eventInspect, inspect: func(b *Board) {
		inner = b.Handle(context.Background(), PointerDown(1, 1))
	}})

	if !errors.Is(inner, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", inner)
	}

	if b.State() != StateIdle {
		t.Error("a rejected event must not change the state")
	}
}

func TestAutosave(t *testing.T) {
	store := &memStore{}
	b, err := New(Options{Surface: canvastest.New(10, 10), Store: store})
	if err != nil {
		t.Fatal(err)
	}

	handle(t, b, Event{Kind: EventAutosave})
	if store.count(AutosaveKey) != 0 {
		t.Error("nothing changed, nothing to save")
	}

	handle(t, b, Command(command.Clear{}), Event{Kind: EventAutosave}, Event{Kind: EventAutosave})
	if store.count(AutosaveKey) != 1 {
		t.Errorf("expected one save, got %v", store.count(AutosaveKey))
	}
}

func TestSelectTool(t *testing.T) {
	b, _, _ := newBoard(t, Settings{})

	handle(t, b, SelectTool(ToolShape, shape.KindStar))
	if s := b.Settings(); s.Tool != ToolShape || s.Shape != shape.KindStar {
		t.Errorf("unexpected settings %+v", s)
	}

	handle(t, b, SelectTool(ToolEraser, ""))
	if s := b.Settings(); s.Tool != ToolEraser || s.Shape != shape.KindStar {
		t.Errorf("unexpected settings %+v", s)
	}

	if err := b.Handle(context.Background(), SelectTool("spray", "")); err == nil {
		t.Error("expected an error for an unknown tool")
	}

	handle(t, b, PointerDown(1, 1))
	if err := b.Handle(context.Background(), SelectTool(ToolPen, "")); !errors.Is(err, ErrBusy) {
		t.Errorf("switching tools mid stroke must be refused, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	b, rec, _ := newBoard(t, Settings{})

	handle(t, b, Command(command.Clear{}))
	saved, _ := b.Snapshot()

	handle(t, b,
		Command(command.DrawShape{Shape: "circle", X: 1, Y: 1, Radius: 5, Width: math.NaN(), Height: math.NaN()}),
		Load(saved),
	)

	if rec.Restores != 1 || len(b.Shapes()) != 0 {
		t.Errorf("load must restore the snapshot and forget shapes, %v restores", rec.Restores)
	}

	if undo, redo := b.History(); undo != 4 || redo != 0 {
		t.Errorf("load must commit, got %v/%v", undo, redo)
	}

	if err := b.Handle(context.Background(), Load([]byte("garbage"))); err == nil {
		t.Error("expected an error for a bad snapshot")
	}
}
