// Command board is a terminal participant: it reads commands and pointer
// input line by line, draws on a raster canvas and syncs with the relay.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/exp/slog"

	"manualpilot/canvas/internal/board"
	"manualpilot/canvas/internal/canvas"
	"manualpilot/canvas/internal/command"
	"manualpilot/canvas/internal/discovery"
	"manualpilot/canvas/internal/export"
	"manualpilot/canvas/internal/protocol"
	"manualpilot/canvas/internal/shape"
	"manualpilot/canvas/internal/store"
	"manualpilot/canvas/internal/syncclient"
)

type Env struct {
	RelayURL     string `env:"RELAY_URL"`
	DisplayName  string `env:"DISPLAY_NAME"`
	CanvasWidth  int    `env:"CANVAS_WIDTH,default=1500"`
	CanvasHeight int    `env:"CANVAS_HEIGHT,default=800"`
	Store        string `env:"STORE,default=bolt"`
	StorePath    string `env:"STORE_PATH,default=whiteboard.db"`
	RedisURL     string `env:"REDIS_URL"`
	ExportDir    string `env:"EXPORT_DIR,default=."`
	ExportFormat string `env:"EXPORT_FORMAT,default=png"`
	Discover     bool   `env:"DISCOVER,default=false"`
	LogLevel     string `env:"LOG_LEVEL,default=info"`
}

func openStore(env Env) (store.Store, error) {
	switch env.Store {
	case "bolt":
		return store.OpenBolt(env.StorePath)
	case "redis":
		rOpts, err := redis.ParseURL(env.RedisURL)
		if err != nil {
			return nil, err
		}
		return store.NewRedis(redis.NewClient(rOpts)), nil
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", env.Store)
	}
}

func doMain(ctx context.Context, logger *slog.Logger, env Env, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session := uuid.NewString()
	logger = logger.With(slog.String("session", session))

	st, err := openStore(env)
	if err != nil {
		return err
	}

	//goland:noinspection GoUnhandledErrorResult
	defer st.Close()

	exporter, err := export.NewFile(env.ExportDir, export.Format(env.ExportFormat))
	if err != nil {
		return err
	}

	relayURL := env.RelayURL
	if relayURL == "" && env.Discover {
		relayURL, err = discovery.Browse(ctx, 2*time.Second)
		if err != nil {
			logger.Warn("no relay discovered", slog.String("error", err.Error()))
		}
	}

	opts := board.Options{
		Surface:     canvas.NewRaster(env.CanvasWidth, env.CanvasHeight),
		Store:       st,
		Exporter:    exporter,
		Logger:      logger,
		DisplayName: env.DisplayName,
	}

	var client *syncclient.Client
	var s *board.Session

	if relayURL != "" {
		client = syncclient.New(relayURL, logger, func(ctx context.Context, e protocol.Envelope) {
			if err := s.Submit(ctx, board.Remote(e)); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("failed to apply remote event", slog.String("error", err.Error()))
			}
		})
		opts.Emitter = client
	}

	s, err = board.NewSession(opts)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	if client != nil {
		go func() {
			if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("sync stopped", err)
			}
		}()
	}

	r := repl{
		session: s,
		store:   st,
		voice:   command.NewVoice(nil),
		out:     out,
		logger:  logger,
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := r.line(ctx, scanner.Text()); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return scanner.Err()
}

var errQuit = errors.New("quit")

type repl struct {
	session *board.Session
	store   store.Store
	voice   *command.Voice
	out     io.Writer
	logger  *slog.Logger
}

// line handles one input line. Lines starting with ':' drive the pointer and
// the terminal itself; everything else goes through the command grammar.
func (r *repl) line(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if !strings.HasPrefix(text, ":") {
		cmd := command.Parse(text)
		if e, ok := cmd.(command.Error); ok {
			fmt.Fprintln(r.out, e.Message)
		}
		return r.session.Submit(ctx, board.Command(cmd))
	}

	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return fmt.Errorf("missing command after ':'")
	}

	switch fields[0] {
	case "down", "move", "up", "leave":
		if len(fields) != 3 {
			return fmt.Errorf("usage: :%v <x> <y>", fields[0])
		}

		x, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return err
		}

		y, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return err
		}

		return r.session.Submit(ctx, pointer(fields[0], x, y))

	case "tool":
		if len(fields) < 2 {
			return fmt.Errorf("usage: :tool <pen|highlighter|eraser|shape> [kind]")
		}

		kind := shape.Kind("")
		if len(fields) > 2 {
			kind = shape.Kind(fields[2])
		}

		return r.session.Submit(ctx, board.SelectTool(board.Tool(fields[1]), kind))

	case "voice":
		cmd, transcript, err := r.voice.Listen(ctx)
		if notice, ok := r.voice.Notice(); ok {
			fmt.Fprintln(r.out, notice)
		}

		if errors.Is(err, command.ErrUnsupported) {
			return nil
		} else if err != nil {
			return err
		}

		r.logger.Debug("heard", slog.String("transcript", transcript))
		return r.session.Submit(ctx, board.Command(cmd))

	case "restore":
		snapshot, err := r.store.Get(ctx, board.AutosaveKey)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintln(r.out, "nothing saved yet")
			return nil
		} else if err != nil {
			return err
		}

		return r.session.Submit(ctx, board.Load(snapshot))

	case "shapes":
		return r.session.Inspect(ctx, func(b *board.Board) {
			for _, rec := range b.Shapes() {
				fmt.Fprintf(r.out, "%v\t%v (%v, %v)\n", rec.ID, rec.Kind, rec.X, rec.Y)
			}
		})

	case "cursors":
		return r.session.Inspect(ctx, func(b *board.Board) {
			for id, c := range b.Cursors() {
				fmt.Fprintf(r.out, "%v\t%v (%v, %v)\n", id, c.Name, c.X, c.Y)
			}
		})

	case "status":
		return r.session.Inspect(ctx, func(b *board.Board) {
			undo, redo := b.History()
			s := b.Settings()
			fmt.Fprintf(r.out, "%v tool=%v color=%v width=%v undo=%v redo=%v\n", b.State(), s.Tool, s.Color, s.Width, undo, redo)
		})

	case "quit":
		return errQuit

	default:
		return fmt.Errorf("unknown command :%v", fields[0])
	}
}

func pointer(kind string, x, y float64) board.Event {
	switch kind {
	case "down":
		return board.PointerDown(x, y)
	case "move":
		return board.PointerMove(x, y)
	case "up":
		return board.PointerUp(x, y)
	default:
		return board.PointerLeave(x, y)
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env := Env{}
	if err := envconfig.Process(ctx, &env); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	handler := slog.HandlerOptions{AddSource: true, Level: logLevel(env.LogLevel)}
	logger := slog.New(handler.NewTextHandler(os.Stderr))

	if err := doMain(ctx, logger, env, os.Stdin, os.Stdout); err != nil {
		logger.Error("board stopped", err)
		os.Exit(1)
	}
}
