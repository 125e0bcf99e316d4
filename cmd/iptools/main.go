package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openip/iptools/pkg/config"
	"github.com/openip/iptools/pkg/logging"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:     "iptools",
		Short:   "iptools: patent-office API clients with a persistent response cache",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logging.Setup(logging.Config{
				Level:  cfg.LogLevel,
				Pretty: cfg.LogPretty,
			})
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(
		newCacheCmd(&configPath),
		newFetchCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
