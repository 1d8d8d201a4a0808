package commands

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/gestureboard/internal/action"
	"github.com/ayusman/gestureboard/internal/app"
	"github.com/ayusman/gestureboard/internal/log"
	"github.com/ayusman/gestureboard/internal/tray"
)

var (
	serveAddr string
	serveTray bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game server",
	Long: `Run the HTTP and WebSocket server.

Browsers connect to /ws for the shared game or /ws/{session} for a game
created with POST /api/sessions. With --tray a system tray menu toggles
gesture control and opens the board.`,
	Example: `  gestureboard serve
  gestureboard serve --addr :9090 --tray`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warn("shutdown error", "error", err)
			}
		}()

		if !serveTray {
			return a.Run(ctx)
		}
		return runWithTray(ctx, stop, a, boardURL(cfg.Server.Addr))
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveTray, "tray", false, "show a system tray menu")
}

// runWithTray runs the server in the background while the tray owns the
// main goroutine.
func runWithTray(ctx context.Context, stop context.CancelFunc, a *app.App, url string) error {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnOpenBoard(func() {
		if err := tray.OpenBrowser(url); err != nil {
			log.Warn("failed to open browser", "url", url, "error", err)
		}
	})
	t.OnQuit(stop)
	a.OnAction(func(_ string, rec action.Record) {
		if rec.Type != action.KindHover {
			t.SetLastAction(rec)
		}
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
		t.Quit()
	}()

	t.Run()
	stop()
	return <-errCh
}

// boardURL returns the browser URL for a listen address.
func boardURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
