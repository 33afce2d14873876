package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskbot/internal/config"
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "taskbot",
		Short: "Multi-tenant task backend with an MCP tool interface for AI agents",
		Long: `taskbot stores per-user tasks and subtasks behind a JSON REST API.

The same task operations are exposed to AI agents as MCP tools:
  - over streamable HTTP and a plain JSON fallback (taskbot serve)
  - over stdio for local agent hosts (taskbot mcp)`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Bind(v, cmd.Flags())
		},
	}
	root.SetVersionTemplate(`{{printf "taskbot version %s\n" .Version}}`)

	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd(v))
	root.AddCommand(newMCPCmd(v))
	return root
}
