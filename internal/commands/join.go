package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"LiveBoard/internal/client"
	"LiveBoard/internal/logging"
	boardnet "LiveBoard/internal/net"
	"LiveBoard/internal/protocol"
	"LiveBoard/internal/render"
	"LiveBoard/internal/ui"
)

const discoverTimeout = 5 * time.Second

var (
	joinDiscover bool
	joinHeadless bool
	joinPNG      string
	joinColor    string
	joinWidth    float64
)

var joinCmd = &cobra.Command{
	Use:   "join [link]",
	Short: "Join a board and draw on it",
	Long: `Join a board by its share link (liveboard://host:port), a host:port
pair, or by looking for one on the local network with --discover.

Without --headless a desktop window opens. A headless client only mirrors
the board and can write it to a PNG file when it exits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJoin,
}

func init() {
	joinCmd.Flags().BoolVar(&joinDiscover, "discover", false, "Find a board on the local network over mDNS")
	joinCmd.Flags().BoolVar(&joinHeadless, "headless", false, "Mirror the board without opening a window")
	joinCmd.Flags().StringVar(&joinPNG, "png", "", "With --headless, write the board to this PNG file on exit")
	joinCmd.Flags().StringVar(&joinColor, "color", "", "Drawing color, e.g. #3b82f6 (default: random from the palette)")
	joinCmd.Flags().Float64Var(&joinWidth, "width", 0, "Stroke width in pixels (default from config)")
}

func runJoin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target, err := resolveTarget(ctx, args)
	if err != nil {
		return err
	}
	url, err := boardnet.WebSocketURL(target)
	if err != nil {
		return err
	}
	if joinColor != "" {
		if _, err := render.ParseColor(joinColor); err != nil {
			return err
		}
	}

	opts := client.Options{
		Color:   joinColor,
		Width:   cfg.Client.Width,
		Palette: cfg.Client.Palette,
	}
	if cmd.Flags().Changed("width") {
		opts.Width = joinWidth
	}

	if joinHeadless {
		return runHeadless(ctx, url, opts)
	}
	return runWindow(ctx, url, opts)
}

// resolveTarget picks the board address from the argument or mDNS.
func resolveTarget(ctx context.Context, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if !joinDiscover {
		return "", errors.New("a board link is required unless --discover is set")
	}
	logging.Info().Str("service", cfg.Server.Service).Msg("looking for a board")
	addr, err := boardnet.Discover(ctx, cfg.Server.Service, discoverTimeout)
	if err != nil {
		return "", err
	}
	logging.Info().Str("addr", addr).Msg("board found")
	return addr, nil
}

func newConnection(url string, handle func(protocol.Envelope), lost func(error)) *boardnet.Client {
	return boardnet.NewClient(url, boardnet.ClientOptions{
		ReconnectInitial: cfg.Client.ReconnectInitial,
		ReconnectMax:     cfg.Client.ReconnectMax,
		OnEvent:          handle,
		OnDisconnect:     lost,
	})
}

func runHeadless(ctx context.Context, url string, opts client.Options) error {
	raster := render.NewRaster(1280, 720)
	var rec *client.Reconciler
	conn := newConnection(url,
		func(env protocol.Envelope) {
			if err := rec.Handle(env); err != nil {
				logging.Debug().Err(err).Str("event", string(env.Event)).Msg("event dropped")
			}
		},
		func(error) { rec.Disconnected() },
	)
	rec = client.NewReconciler(raster, conn, opts)

	err := conn.Run(ctx)
	if joinPNG != "" {
		if err := raster.SavePNG(joinPNG); err != nil {
			return fmt.Errorf("save png: %w", err)
		}
		logging.Info().Str("path", joinPNG).Int("strokes", len(rec.Strokes())).Msg("board written")
	}
	return err
}

func runWindow(ctx context.Context, url string, opts client.Options) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	win := ui.NewWindow("LiveBoard")
	var rec *client.Reconciler
	conn := newConnection(url,
		func(env protocol.Envelope) {
			if err := rec.Handle(env); err != nil {
				logging.Debug().Err(err).Str("event", string(env.Event)).Msg("event dropped")
				return
			}
			if env.Event == protocol.EventInit {
				win.SetStatus(fmt.Sprintf("Connected to %s as %s", url, rec.UserID()))
			}
		},
		func(err error) {
			rec.Disconnected()
			win.SetStatus("Connection lost, reconnecting...")
		},
	)
	rec = client.NewReconciler(win.Board, conn, opts)
	win.Bind(rec, cfg.Client.Palette)

	errc := make(chan error, 1)
	go func() {
		err := conn.Run(connCtx)
		if err != nil {
			logging.Error().Err(err).Msg("giving up on the board")
			win.SetStatus("Disconnected: " + err.Error())
		}
		errc <- err
	}()
	closed := make(chan struct{})
	go func() {
		// Ctrl+C in the terminal closes the window too
		select {
		case <-ctx.Done():
			win.Quit()
		case <-closed:
		}
	}()

	win.ShowAndRun()
	close(closed)
	cancel()
	return <-errc
}
