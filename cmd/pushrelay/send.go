package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/newthinker/pushrelay/internal/app"
	"github.com/newthinker/pushrelay/internal/core"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a notification to one channel or to all of them",
	Example: `  pushrelay send -c pushrelay.yaml --channel billing \
    --title "Invoice Overdue" --message "Please pay." --attr "Invoice #=123"`,
	RunE: runSend,
}

var (
	sendChannel string
	sendAll     bool
	sendTitle   string
	sendMessage string
	sendAttrs   []string
	sendTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendChannel, "channel", "", "channel to deliver to")
	sendCmd.Flags().BoolVar(&sendAll, "all", false, "deliver to every configured channel")
	sendCmd.Flags().StringVar(&sendTitle, "title", "", "notification title")
	sendCmd.Flags().StringVar(&sendMessage, "message", "", "notification message")
	sendCmd.Flags().StringArrayVar(&sendAttrs, "attr", nil, "attribute as label=value (repeatable)")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "overall delivery timeout")
	sendCmd.MarkFlagsMutuallyExclusive("channel", "all")
	sendCmd.MarkFlagsOneRequired("channel", "all")
}

func runSend(cmd *cobra.Command, args []string) error {
	attrs, err := parseAttributes(sendAttrs)
	if err != nil {
		return err
	}
	n := core.Notification{Title: sendTitle, Message: sendMessage, Attributes: attrs}
	if !n.IsValid() {
		return core.ErrNotificationEmpty
	}

	return withRelay(func(relay *app.App, log *zap.Logger) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
		defer cancel()

		if !sendAll {
			if err := relay.Send(ctx, sendChannel, n); err != nil {
				return err
			}
			fmt.Printf("sent to %s\n", sendChannel)
			return nil
		}

		channels := relay.Channels()
		if len(channels) == 0 {
			return core.WrapError(core.ErrChannelNotFound, fmt.Errorf("no channels configured"))
		}

		failures := relay.Broadcast(ctx, n)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CHANNEL\tNOTIFIER\tSTATUS")
		for _, ch := range channels {
			status := "sent"
			if err, ok := failures[ch.Name]; ok {
				status = "failed: " + err.Error()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", ch.Name, ch.Notifier, status)
		}
		w.Flush()

		if len(failures) > 0 {
			return fmt.Errorf("%d of %d channels failed", len(failures), len(channels))
		}
		return nil
	})
}

// parseAttributes turns "label=value" pairs into attributes, keeping order.
func parseAttributes(pairs []string) ([]core.Attribute, error) {
	attrs := make([]core.Attribute, 0, len(pairs))
	for _, p := range pairs {
		label, value, ok := strings.Cut(p, "=")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			return nil, fmt.Errorf("invalid attribute %q, want label=value", p)
		}
		attrs = append(attrs, core.Attribute{Label: label, Value: strings.TrimSpace(value)})
	}
	return attrs, nil
}
