package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"LiveBoard/internal/logging"
	boardnet "LiveBoard/internal/net"
	"LiveBoard/internal/server"
	"LiveBoard/internal/state"
)

var (
	serveHost      string
	servePort      int
	serveAdvertise bool
	serveSeed      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host a board",
	Long: `Host a board that other LiveBoard clients can join.

The server keeps the board in memory for as long as it runs and prints a
share link that clients pass to 'liveboard join'.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Address to listen on (default from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from config)")
	serveCmd.Flags().BoolVar(&serveAdvertise, "advertise", false, "Advertise the board over mDNS")
	serveCmd.Flags().StringVar(&serveSeed, "seed", "", "JSON file with strokes to start the board with")
}

func runServe(cmd *cobra.Command, args []string) error {
	sc := cfg.Server
	if cmd.Flags().Changed("host") {
		sc.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		sc.Port = servePort
	}
	if cmd.Flags().Changed("advertise") {
		sc.Advertise = serveAdvertise
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub()
	go hub.Run(ctx)

	if serveSeed != "" {
		strokes, err := loadSeed(serveSeed)
		if err != nil {
			return err
		}
		if err := hub.Reset(ctx, strokes); err != nil {
			return err
		}
	}

	if sc.Advertise {
		mdnsServer, err := boardnet.Advertise(sc.Service, sc.Port)
		if err != nil {
			logging.Warn().Err(err).Msg("mDNS advertising disabled")
		} else {
			defer mdnsServer.Shutdown()
		}
	}

	link := boardnet.ShareLink(boardnet.GetOutgoingIP(), sc.Port)
	fmt.Fprintf(cmd.OutOrStdout(), "Share this link to join: %s\n", link)
	logging.Info().Str("link", link).Msg("board ready")

	srv := server.New(sc, hub)
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	logging.Info().Msg("server stopped")
	return nil
}

// loadSeed reads a JSON array of strokes, as written by the client's save
// button or GET /api/strokes.
func loadSeed(path string) ([]state.Stroke, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var strokes []state.Stroke
	if err := json.Unmarshal(data, &strokes); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return strokes, nil
}
