package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lumen/internal/cli/config"
	"github.com/leapstack-labs/lumen/internal/ui"
)

// devSessionSecret signs session cookies when no secret is configured.
const devSessionSecret = "lumen-dev-secret-change-in-production" //nolint:gosec

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port  int
	Open  bool
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the lumen HTTP API",
		Long: `Start a local web server exposing the question pipeline.

The server provides:
- POST /api/ask, streaming stage events as server-sent events
- POST /api/cells/{id}/sql to re-run a cell with edited SQL
- Stored cells and conversations under /api/cells
- Schema, suggestions and health endpoints

The docs file is watched and the schema is refreshed when it changes.`,
		Example: `  # Start on the configured port
  lumen serve

  # Start on a custom port and open the browser
  lumen serve --port 3000 --open`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 8765)")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "Open the browser once the server starts")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Refresh the schema when the docs file changes")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cc, cleanup, err := NewCommandContext(cmd, NeedAll)
	if err != nil {
		return err
	}
	defer cleanup()

	// CLI flags override config file
	port := cc.Cfg.UI.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	watch := cc.Cfg.UI.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	if res := cc.Schema.Refresh(cmd.Context()); !res.OK() {
		cc.Renderer.Diagnostics(res.Diagnostics)
		return ErrReported
	}

	server := ui.NewServer(ui.Config{
		Pipeline:      cc.Agent,
		Store:         cc.Store,
		Schema:        cc.Schema,
		Suggest:       cc.Suggest,
		Model:         cc.LLM.Model(),
		Port:          port,
		Watch:         watch,
		DocsPath:      cc.Schema.DocsPath(),
		SessionSecret: sessionSecret(cc.Cfg),
		Logger:        cc.Logger,
	})

	url := fmt.Sprintf("http://localhost:%d", port)
	if opts.Open {
		go openBrowser(cc.Logger, url)
	}

	cc.Renderer.Printf("Serving %s on %s\n", cc.Adapter.Name(), url)
	cc.Renderer.Println("Press Ctrl+C to stop")

	return server.Serve(cmd.Context())
}

// sessionSecret returns the configured secret, then LUMEN_SESSION_SECRET,
// then a development default.
func sessionSecret(cfg *config.Config) string {
	if cfg.UI.SessionSecret != "" {
		return cfg.UI.SessionSecret
	}
	if secret := os.Getenv("LUMEN_SESSION_SECRET"); secret != "" {
		return secret
	}
	return devSessionSecret
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(logger *slog.Logger, url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	if err := cmd.Start(); err != nil {
		logger.Debug("could not open browser", slog.String("error", err.Error()))
	}
}
