package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/newthinker/pushrelay/internal/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fieldsCmd = &cobra.Command{
	Use:     "fields <notifier> <field>",
	Short:   "List the options of a dynamic settings field",
	Example: "  pushrelay fields pushover sound",
	Args:    cobra.ExactArgs(2),
	RunE:    runFields,
}

var schemaCmd = &cobra.Command{
	Use:   "schema <notifier>",
	Short: "Show the module and channel settings of a notifier",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchema,
}

var checkCmd = &cobra.Command{
	Use:   "check <notifier>",
	Short: "Run a notifier's connection check",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(checkCmd)
}

func runFields(cmd *cobra.Command, args []string) error {
	return withRelay(func(relay *app.App, log *zap.Logger) error {
		options, err := relay.ResolveField(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME")
		for _, o := range options {
			fmt.Fprintf(w, "%s\t%s\n", o.ID, o.Name)
		}
		return w.Flush()
	})
}

func runSchema(cmd *cobra.Command, args []string) error {
	return withRelay(func(relay *app.App, log *zap.Logger) error {
		info, err := relay.Notifier(args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SCOPE\tKEY\tKIND\tREQUIRED\tLABEL")
		for _, f := range info.ModuleSettings {
			fmt.Fprintf(w, "module\t%s\t%s\t%t\t%s\n", f.Key, f.Kind, f.Required, f.Label)
		}
		for _, f := range info.ChannelSettings {
			fmt.Fprintf(w, "channel\t%s\t%s\t%t\t%s\n", f.Key, f.Kind, f.Required, f.Label)
		}
		return w.Flush()
	})
}

func runCheck(cmd *cobra.Command, args []string) error {
	return withRelay(func(relay *app.App, log *zap.Logger) error {
		result, err := relay.TestConnection(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Notifier: %s\n", args[0])
		fmt.Printf("Status:   %s\n", result.Status)
		if result.Detail != "" {
			fmt.Printf("Detail:   %s\n", result.Detail)
		}
		return nil
	})
}
