package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/codemate/internal/mcp"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the index to assistants over MCP on stdio",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logf("serving %s over stdio", a.dbPath)
			srv, err := mcp.NewServer(a.dbPath)
			if err != nil {
				return err
			}
			return srv.Serve(cmd.Context())
		},
	}
}
