package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/ngoprog/alertengine/internal/datastore/repository"
	"github.com/spf13/cobra"
)

func rulesCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the rule catalog",
	}
	cmd.AddCommand(rulesImportCommand(flags), rulesListCommand(flags))
	return cmd
}

func rulesImportCommand(flags *globalFlags) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import rules and configuration entries from a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, log, err := flags.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), settings, log, false)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.importCatalog(cmd.Context(), args[0], overwrite)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"rules: %d created, %d updated, %d unchanged; config: %d created, %d updated\n",
				res.RulesCreated, res.RulesUpdated, res.RulesUnchanged, res.ConfigCreated, res.ConfigUpdated)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Update existing rules and entries that differ")
	return cmd
}

func rulesListCommand(flags *globalFlags) *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the rules in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, log, err := flags.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), settings, log, false)
			if err != nil {
				return err
			}
			defer a.close()

			filter := repository.RuleFilter{}
			if activeOnly {
				active := true
				filter.Active = &active
			}
			rules, err := a.rules.ListRules(cmd.Context(), filter)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSEVERITY\tOBJECTIVE\tPRIORITY\tACTIVE\tVERSION")
			for i := range rules {
				r := &rules[i]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\t%d\n", r.Key, r.Severity, r.ObjectiveKind, r.Priority, r.Active, r.Version)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only list active rules")
	return cmd
}
