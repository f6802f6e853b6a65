package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/awoulbe/chatflow"
	"github.com/awoulbe/chatflow/internal/loader"
	"github.com/awoulbe/chatflow/internal/logging"
	"github.com/awoulbe/chatflow/pkg/adapters/memory"
	redisadapter "github.com/awoulbe/chatflow/pkg/adapters/redis"
	"github.com/awoulbe/chatflow/pkg/ports"
)

var rootCmd = &cobra.Command{
	Use:   "chatflow",
	Short: "Chatflow turns free-form messages into guided conversations",
	Long:  `Chatflow classifies chat messages into intents and drives multi-step workflows with validated input collection.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("file", "f", "", "YAML file with workflow and intent definitions")
	rootCmd.PersistentFlags().String("redis", "", "Redis address for context storage (default: in-memory)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	levelName, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = slog.LevelWarn
	}
	return logging.New(level)
}

// buildEngine wires a store, definition catalog and engine from the shared
// flags. The returned cleanup closes the store when it holds connections.
func buildEngine(cmd *cobra.Command, logger *slog.Logger, opts ...chatflow.Option) (*chatflow.Engine, func(), error) {
	var store ports.ContextStore
	cleanup := func() {}

	redisAddr, _ := cmd.Flags().GetString("redis")
	if redisAddr != "" {
		rs := redisadapter.New(redisAddr, "", 0)
		store = rs
		cleanup = func() { _ = rs.Close() }
		locker := redisadapter.NewLocker(rs.Client(), "chatflow:lock:")
		opts = append(opts, chatflow.WithLocker(locker))
	} else {
		store = memory.NewStore()
	}

	file, _ := cmd.Flags().GetString("file")
	var cat *loader.Catalog
	if file != "" {
		var err error
		cat, err = loader.LoadFile(file)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if len(cat.Intents) > 0 {
			opts = append(opts, chatflow.WithIntents(cat.Intents))
		}
	}

	opts = append(opts, chatflow.WithLogger(logger))
	eng, err := chatflow.New(store, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if cat != nil {
		for _, def := range cat.Workflows {
			if err := eng.RegisterWorkflow(def); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("registering workflow %q: %w", def.ID, err)
			}
		}
	}
	return eng, cleanup, nil
}
