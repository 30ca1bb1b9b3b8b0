package main

import (
	"context"
	"fmt"

	"sdx-topology/application/pipeline"
	"sdx-topology/domain/events"
	"sdx-topology/infrastructure/di"
	"sdx-topology/pkg/utils"

	"github.com/spf13/cobra"
)

func newInitCmd(load containerLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Seed the version store with the configured exchange point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, load, func(ctx context.Context, c *di.Container) error {
				record, err := c.Service.GetRecord(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s initialized at version %d\n", record.ID, record.Version)
				return nil
			})
		},
	}
}

func newRecordCmd(load containerLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Print the stored version record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, load, func(ctx context.Context, c *di.Container) error {
				record, err := c.Service.GetRecord(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), record)
			})
		},
	}
}

func newEventsCmd(load containerLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List received event names, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, load, func(ctx context.Context, c *di.Container) error {
				names, err := c.Service.ListEvents(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
}

func newConvertCmd(load containerLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "convert",
		Short: "Fetch the Kytos topology and print the converted document without publishing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, load, func(ctx context.Context, c *di.Container) error {
				doc, err := c.Service.PreviewConversion(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc)
			})
		},
	}
}

func newSubmitCmd(load containerLoader) *cobra.Command {
	var timestamp string

	cmd := &cobra.Command{
		Use:   "submit EVENT",
		Short: "Run a change event through the publication pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event := events.NewChangeEvent(args[0])
			if cmd.Flags().Changed("timestamp") {
				event.Timestamp = &timestamp
			}
			if err := utils.ValidateStruct(event); err != nil {
				return fmt.Errorf("invalid event: %w", err)
			}

			return withContainer(cmd, load, func(ctx context.Context, c *di.Container) error {
				result, err := c.Service.HandleEvent(ctx, event)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				if result.Status != pipeline.StatusPublished && result.Status != pipeline.StatusNotActionable {
					return fmt.Errorf("topology not published: %s", result.Reason)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "event timestamp (operational events need one)")
	return cmd
}
