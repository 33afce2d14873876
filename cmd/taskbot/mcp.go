package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskbot/internal/agent"
	"taskbot/internal/config"
)

func newMCPCmd(v *viper.Viper) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the task tools to an agent host over MCP stdio",
		Long: `Serve the task tools over MCP on stdin/stdout.

Each tool call authenticates with its own token argument. When --token is
given (or TASKBOT_TOKEN is set), calls without a token act as that user.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if token == "" {
				token = v.GetString("taskbot-token")
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			a.log.Info("serving MCP over stdio", "tools", len(a.facade.Tools()))
			return agent.ServeStdio(a.mcpServer(), token)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "access token used for tool calls that carry none")
	return cmd
}
