package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldtriplabs/pvachat/internal/config"
	"github.com/fieldtriplabs/pvachat/internal/directline"
)

func newResolveCmd() *cobra.Command {
	var fetch bool

	cmd := &cobra.Command{
		Use:   "resolve [url]",
		Short: "Show how the transport endpoint is derived from a conversation-start URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawURL := ""
			if len(args) == 1 {
				rawURL = args[0]
			} else {
				cfg, err := config.Load(paths.Config)
				if err != nil {
					return err
				}
				rawURL = cfg.Bot.ConversationStartURL
			}
			if rawURL == "" {
				return fmt.Errorf("no conversation-start URL given or configured")
			}

			d, err := directline.ParseDescriptor(rawURL)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "environment endpoint: %s\n", d.EnvironmentEndpoint)
			fmt.Fprintf(out, "api version:          %s\n", d.APIVersion)
			fmt.Fprintf(out, "regional settings:    %s\n", d.RegionalSettingsURL())

			if !fetch {
				return nil
			}

			b := directline.NewBootstrapper(nil, log)
			info, err := b.ResolveRegional(cmd.Context(), d)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "directline base:      %s\n", info.DirectLineBaseURL)
			fmt.Fprintf(out, "transport domain:     %sv3/directline\n", info.DirectLineBaseURL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fetch, "fetch", false, "also fetch the regional channel settings")

	return cmd
}
