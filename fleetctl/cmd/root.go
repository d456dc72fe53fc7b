package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kavos113/quickfleet/fleetctl/client"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

type app struct {
	v   *viper.Viper
	out io.Writer
}

// Execute runs fleetctl against os.Args.
func Execute() error {
	return NewRootCmd(os.Stdout).Execute()
}

func NewRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:   "fleetctl",
		Short: "Operate the watched instance fleet",
		Long: `fleetctl talks to a running fleet-manager. It lists the watched
instances, edits the watch list and starts or stops instances and their
monitoring scripts.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/fleetctl/config.yaml)")
	flags.StringP("server", "s", client.DefaultServer, "fleet-manager base URL")
	flags.Duration("timeout", 30*time.Second, "request timeout")
	flags.StringP("output", "o", outputTable, "output format (table, json)")
	for _, name := range []string{"config", "server", "timeout", "output"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		a.listCmd(),
		a.instancesCmd(),
		a.refreshCmd(),
		a.watchCmd(),
		a.powerCmd(),
		a.scriptCmd(),
	)
	return root
}

func (a *app) initConfig() error {
	if cfgFile := a.v.GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".config", "fleetctl"))
		}
	}

	a.v.SetEnvPrefix("FLEETCTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	switch a.v.GetString("output") {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format %q", a.v.GetString("output"))
	}
}

func (a *app) client() *client.Client {
	return client.New(a.v.GetString("server"), a.v.GetDuration("timeout"))
}

func (a *app) jsonOutput() bool {
	return a.v.GetString("output") == outputJSON
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
