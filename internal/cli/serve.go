package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pageshot/internal/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve exposes the capture store and exporter over HTTP:

  POST   /captures                 upload a rendered page (raw image body)
  GET    /captures                 list captures
  GET    /captures/{id}            capture metadata
  GET    /captures/{id}/image      stitched image
  GET    /captures/{id}/preview    PNG thumbnail
  GET    /captures/{id}/export     png, jpg or pdf export
  DELETE /captures/{id}            delete a capture`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the export cache")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, noCache bool) error {
	cfg := c.config()
	if addr == "" {
		addr = cfg.Server.Addr
	}

	st, err := c.newStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	srv := server.New(st, runner, server.Config{
		Frame: c.frameOptions(),
		TTL:   cfg.Store.TTL.Duration,
	}, c.Logger)

	printInfo("Serving on %s", StyleLink.Render("http://"+addr))
	return srv.ListenAndServe(ctx, addr)
}
