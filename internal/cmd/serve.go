package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tmuxbridge/internal/clientadapter"
	"tmuxbridge/internal/clientadapter/ipcsock"
	"tmuxbridge/internal/clientadapter/ipcws"
	"tmuxbridge/internal/config"
	"tmuxbridge/internal/controlmode"
	"tmuxbridge/internal/registry"
	"tmuxbridge/internal/socketdir"
)

var serveLogger = slog.Default().With("component", "serve")

func newServeCmd() *cobra.Command {
	var wsAddr string

	cmd := &cobra.Command{
		Use:   "serve <session>",
		Short: "Run the bridge daemon for one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doServe(args[0], wsAddr)
		},
	}

	cmd.Flags().StringVar(&wsAddr, "ws-addr", "", "address to serve the WebSocket transport on (empty disables it)")
	return cmd
}

func doServe(sessionName, wsAddr string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	connector := registry.ConnectorFunc(func(ctx context.Context, name string) (*controlmode.Connection, error) {
		return controlmode.Connect(ctx, cfg.Tmux, cfg.TmuxArgs, name)
	})
	reg := registry.New(connector, cfg.Timing.Grace(), cfg.Timing.SubscriptionQueueLen)
	adapter := clientadapter.New(reg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Prime the monitor so the socket is serving a live session immediately,
	// rather than waiting for a client's first attach to fork the multiplexer.
	if _, _, err := reg.Attach(ctx, sessionName, "serve-warmup"); err != nil {
		return fmt.Errorf("attach to session %q: %w", sessionName, err)
	}
	reg.Detach(sessionName, "serve-warmup")
	fmt.Printf("%s bridging session %s\n", stateDot("live"), bold(sessionName))

	sockServer := &ipcsock.Server{SocketPath: socketdir.SocketPath(sessionName), Broadcast: adapter}
	errCh := make(chan error, 2)
	go func() { errCh <- sockServer.ListenAndServe(ctx) }()

	if wsAddr != "" {
		httpSrv := &http.Server{Addr: wsAddr, Handler: &ipcws.Handler{Broadcast: adapter}}
		go func() {
			serveLogger.Info("serving websocket transport", "addr", wsAddr)
			errCh <- httpSrv.ListenAndServe()
		}()
		go func() {
			<-ctx.Done()
			httpSrv.Close()
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
