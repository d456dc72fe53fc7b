package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kavos113/quickfleet/fleetctl/client"
)

var actionArgs = []string{"start", "stop"}

func (a *app) powerCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "power start|stop INSTANCE_ID",
		Short:     "Start or stop an instance",
		Args:      cobra.MatchAll(cobra.ExactArgs(2), validAction),
		ValidArgs: actionArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client().SetPower(cmd.Context(), args[1], args[0])
			if err != nil {
				return err
			}
			return a.printAction(res)
		},
	}
}

func (a *app) scriptCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:       "script start|stop INSTANCE_ID",
		Short:     "Start or stop the monitoring script on an instance",
		Args:      cobra.MatchAll(cobra.ExactArgs(2), validAction),
		ValidArgs: actionArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client().SetScript(cmd.Context(), args[1], args[0], path)
			if err != nil {
				return err
			}
			return a.printAction(res)
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "working directory to store and use (default is the stored one)")
	return cmd
}

func validAction(cmd *cobra.Command, args []string) error {
	for _, a := range actionArgs {
		if args[0] == a {
			return nil
		}
	}
	return fmt.Errorf("unknown action %q, want start or stop", args[0])
}

func (a *app) printAction(res *client.ActionResult) error {
	if a.jsonOutput() {
		return a.printJSON(res)
	}
	if res.CommandID != "" {
		fmt.Fprintf(a.out, "%s requested for %s (command %s)\n", res.Action, res.InstanceID, res.CommandID)
		return nil
	}
	fmt.Fprintf(a.out, "%s requested for %s\n", res.Action, res.InstanceID)
	return nil
}
