package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sitesTokenFile string

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the properties the saved token can query",
	RunE:  runSites,
}

func init() {
	sitesCmd.Flags().StringVar(&sitesTokenFile, "token-file", defaultTokenFile, "token file from quern login")
}

func runSites(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	client, err := newClient(ctx, cfg, sitesTokenFile, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	sites, err := client.ListSites(ctx)
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		fmt.Println("No properties available for this token.")
		return nil
	}
	for _, site := range sites {
		fmt.Printf("%-60s %s\n", site.SiteURL, site.PermissionLevel)
	}
	return nil
}
