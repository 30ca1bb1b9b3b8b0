package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"sdx-topology/infrastructure/config"
	"sdx-topology/infrastructure/di"

	"github.com/spf13/cobra"
)

// containerLoader builds a wired container for one command invocation
type containerLoader func(ctx context.Context) (*di.Container, error)

func loadContainer(ctx context.Context) (*di.Container, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize container: %w", err)
	}
	return container, nil
}

func newRootCmd(load containerLoader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sdxctl",
		Short:         "Inspect and drive the SDX topology publisher",
		Long:          "sdxctl reads the versioned SDX topology of this exchange point and runs change events through the publication pipeline.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
				return os.Setenv("CONFIG_FILE", cfgFile)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file (overrides CONFIG_FILE)")

	rootCmd.AddCommand(
		newInitCmd(load),
		newRecordCmd(load),
		newEventsCmd(load),
		newConvertCmd(load),
		newSubmitCmd(load),
	)
	return rootCmd
}

// withContainer runs fn against a bootstrapped container and shuts it down afterwards
func withContainer(cmd *cobra.Command, load containerLoader, fn func(ctx context.Context, c *di.Container) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	container, err := load(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "shutdown: %v\n", err)
		}
	}()

	if _, err := di.Bootstrap(ctx, container); err != nil {
		return fmt.Errorf("failed to initialize topology store: %w", err)
	}
	return fn(ctx, container)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
