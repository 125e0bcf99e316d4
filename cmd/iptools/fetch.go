package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/openip/iptools/pkg/client"
	"github.com/openip/iptools/pkg/config"
	"github.com/openip/iptools/pkg/epo"
	"github.com/openip/iptools/pkg/uspto/assignments"
	"github.com/openip/iptools/pkg/uspto/odp"
	"github.com/openip/iptools/pkg/uspto/publications"
)

// clientConfig assembles a client.Config from the CLI configuration.
func clientConfig(cfg *config.Config, service string) client.Config {
	cc := client.DefaultConfig(cfg.Service(service).BaseURL, service)
	cc.CacheDir = cfg.CacheDir
	cc.TTL = cfg.TTL.Std()
	cc.MaxRetries = cfg.MaxRetries
	return cc
}

// printJSON pretty-prints a decoded response to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newFetchCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch records from the patent-office APIs",
	}

	var refType, format string

	biblioCmd := &cobra.Command{
		Use:   "biblio <number>",
		Short: "Fetch the bibliographic record of a published document (EPO OPS)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			c, err := epo.New(clientConfig(cfg, "epo_ops"))
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			result, err := c.PublishedBiblio(cmd.Context(), refType, format, args[0])
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	claimsCmd := &cobra.Command{
		Use:   "claims <number>",
		Short: "Fetch the claims of a published document (EPO OPS)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			c, err := epo.New(clientConfig(cfg, "epo_ops"))
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			result, err := c.PublishedClaims(cmd.Context(), refType, format, args[0])
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	familyCmd := &cobra.Command{
		Use:   "family <number>",
		Short: "Fetch the INPADOC patent family of a document (EPO OPS)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			c, err := epo.New(clientConfig(cfg, "epo_ops"))
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			result, err := c.Family(cmd.Context(), refType, format, args[0])
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	for _, c := range []*cobra.Command{biblioCmd, claimsCmd, familyCmd} {
		c.Flags().StringVar(&refType, "ref-type", epo.RefPublication, "reference type (publication, application, priority)")
		c.Flags().StringVar(&format, "format", epo.FormatDocDB, "number format (docdb, epodoc)")
	}

	assignmentsCmd := &cobra.Command{
		Use:   "assignments <patent-number>",
		Short: "Fetch the assignment history of a patent (USPTO)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			c, err := assignments.New(clientConfig(cfg, "uspto_assignments"))
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			result, err := c.ByPatentNumber(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	var appType, filedFrom, filedTo string
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search patent applications (USPTO ODP)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			c, err := odp.New(clientConfig(cfg, "uspto_odp"), cfg.Service("uspto_odp").APIKey)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			payload := odp.NewSearchPayload(args[0])
			if appType != "" {
				payload.Filters = append(payload.Filters,
					odp.Filter("applicationMetaData.applicationTypeLabelName", appType))
			}
			if filedFrom != "" || filedTo != "" {
				payload.RangeFilters = append(payload.RangeFilters,
					odp.DateRangeISO("applicationMetaData.filingDate", filedFrom, filedTo))
			}

			result, err := c.SearchApplications(cmd.Context(), payload)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	searchCmd.Flags().StringVar(&appType, "type", "", "filter by application type label (Utility, Design, Plant)")
	searchCmd.Flags().StringVar(&filedFrom, "filed-from", "", "filing date range start (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&filedTo, "filed-to", "", "filing date range end (YYYY-MM-DD)")

	publicationCmd := &cobra.Command{
		Use:   "publication <publication-number>",
		Short: "Fetch a pre-grant publication by its document number (USPTO)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			c, err := publications.New(clientConfig(cfg, "uspto_publications"))
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			result, err := c.ByPublicationNumber(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.AddCommand(biblioCmd, claimsCmd, familyCmd, assignmentsCmd, searchCmd, publicationCmd)
	return cmd
}
