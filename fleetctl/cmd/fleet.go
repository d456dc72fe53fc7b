package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the watched instances with their power and script state",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := a.client().Fleet(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(view)
			}
			return a.printView(view)
		},
	}
}

func (a *app) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Ask the manager to re-read the instance directory now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client().Refresh(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(res)
			}
			if !res.Started {
				fmt.Fprintln(a.out, "a refresh was already running; showing the current view")
			}
			return a.printView(&res.FleetView)
		},
	}
}

func (a *app) instancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "instances",
		Short: "List every instance the provider reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			instances, err := a.client().Instances(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(instances)
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tPOWER\tADDRESS")
			for _, inst := range instances {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", inst.ID, dash(inst.Name), dash(inst.InstanceType), inst.PowerState, dash(inst.Address))
			}
			return w.Flush()
		},
	}
}

func (a *app) printView(view *domain.FleetView) error {
	if view.Stale {
		fmt.Fprintf(a.out, "warning: view is stale (%s)\n", view.Error)
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPOWER\tSCRIPT\tPATH\tADDRESS")
	for _, r := range view.Rows {
		power := string(r.PowerState)
		if !r.Known {
			power = "missing"
		}
		script := string(r.ScriptState)
		if r.ActionInProgress {
			script += "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, dash(r.Name), power, script, dash(r.ScriptWorkingDirectory), dash(r.Address))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !view.FetchedAt.IsZero() {
		fmt.Fprintf(a.out, "\nfetched %s, %d unwatched instance(s) available\n", view.FetchedAt.Local().Format("2006-01-02 15:04:05"), len(view.Available))
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
