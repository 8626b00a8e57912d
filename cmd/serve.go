package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/PolarWolf314/chatvault/internal/transport"
	"github.com/PolarWolf314/chatvault/internal/ui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves key operations over NATS",
	Long: `Answers key management requests on "<subject_prefix>.<operation>" until
interrupted. Several servers sharing the configured queue group split the
load. Replies use the envelope {success, data, error, code}.

Connection settings come from the [nats] section of the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting serve command")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		env, err := openEnvironment(ctx)
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}
		defer env.Close()

		conn, err := transport.Connect(env.cfg.NATS, env.cfg.AppName, Logger)
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}
		defer conn.Close()

		handler := transport.NewHandler(env.svc, Logger)
		server, err := transport.NewServer(conn, handler, env.cfg.NATS, Logger)
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}

		ops := handler.Operations()
		sort.Strings(ops)
		fmt.Println(ui.Success.Sprint("✓") + " Connected to " + ui.Path.Sprint(conn.ConnectedUrl()))
		fmt.Println(ui.Info.Sprint("→") + " Serving " + ui.Highlight.Sprint(env.cfg.NATS.SubjectPrefix+".*") +
			fmt.Sprintf(" (%d operations), press Ctrl+C to stop", len(ops)))
		Logger.Debugf("Operations: %v", ops)

		if err := server.Serve(ctx); err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}
		fmt.Println(ui.Success.Sprint("✓") + " Server stopped")
		return nil
	},
}
