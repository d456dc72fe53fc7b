package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

func (a *app) watchCmd() *cobra.Command {
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Edit the watch list",
	}

	watch.AddCommand(
		&cobra.Command{
			Use:   "add INSTANCE_ID",
			Short: "Start watching an instance",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				entry, err := a.client().AddWatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printEntry(entry, "watching")
			},
		},
		&cobra.Command{
			Use:     "remove INSTANCE_ID",
			Aliases: []string{"rm"},
			Short:   "Stop watching an instance",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.client().RemoveWatch(cmd.Context(), args[0]); err != nil {
					return err
				}
				if a.jsonOutput() {
					return a.printJSON(map[string]string{"instanceId": args[0], "status": "removed"})
				}
				fmt.Fprintf(a.out, "removed %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "path INSTANCE_ID DIR",
			Short: "Set the monitoring script working directory",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				entry, err := a.client().SetScriptPath(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return a.printEntry(entry, "updated")
			},
		},
	)
	return watch
}

func (a *app) printEntry(entry *domain.WatchEntry, verb string) error {
	if a.jsonOutput() {
		return a.printJSON(entry)
	}
	fmt.Fprintf(a.out, "%s %s (script %s, path %s)\n", verb, entry.InstanceID, entry.ScriptState, dash(entry.ScriptWorkingDirectory))
	return nil
}
