package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldtriplabs/pvachat/internal/config"
	"github.com/fieldtriplabs/pvachat/internal/directline"
	"github.com/fieldtriplabs/pvachat/internal/identity"
	"github.com/fieldtriplabs/pvachat/internal/session"
	"github.com/fieldtriplabs/pvachat/internal/surface"
)

func newOpenCmd() *cobra.Command {
	var (
		botURL  string
		noGreet bool
	)

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a conversation with the configured agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if botURL != "" {
				cfg.Bot.ConversationStartURL = botURL
			}
			if noGreet {
				cfg.Bot.AutoGreet = false
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var (
				broker *identity.Broker
				scopes []string
			)
			if cfg.Identity.ClientID != "" {
				var cache identity.Cache
				if cfg.Identity.CacheStore == "memory" {
					cache = identity.NewMemoryCache()
				} else {
					dbPath := filepath.Join(paths.Data, "identity.db")
					sc, err := identity.OpenSQLiteCache(dbPath, log)
					if err != nil {
						return fmt.Errorf("opening token cache: %w", err)
					}
					defer sc.Close()
					cache = sc
					log.Debug().Str("path", dbPath).Msg("using SQLite token cache")
				}

				provider := identity.NewDeviceCodeProvider(identity.ProviderOptions{
					ClientID:  cfg.Identity.ClientID,
					Authority: cfg.Identity.Authority,
					Prompt:    cmd.ErrOrStderr(),
					Cache:     cache,
				}, log)
				broker = identity.NewBroker(provider, log)
				scopes = []string{cfg.Identity.Scope}
			} else {
				log.Info().Msg("no identity provider configured — sign-in challenges will show the interactive card")
			}

			bootstrapper := directline.NewBootstrapper(nil, log)
			controller := session.NewController(broker, bootstrapper, log)

			sess, err := controller.Open(ctx, session.Options{
				ConversationStartURL: cfg.Bot.ConversationStartURL,
				Scopes:               scopes,
				UserEmail:            cfg.Identity.UserEmail,
				UserDisplayName:      cfg.Identity.UserDisplayName,
				AutoGreet:            cfg.Bot.AutoGreet,
			})
			if err != nil {
				return err
			}
			defer sess.Close()

			term := surface.NewTerminal(surface.Options{
				Title:            cfg.Panel.Title,
				ButtonLabel:      cfg.Panel.ButtonLabel,
				HideUploadButton: cfg.Panel.HideUploadButton,
				BotAvatarImage:   cfg.Panel.BotAvatarImage,
				UserAvatarImage:  cfg.Panel.UserAvatarImage,
			}, cmd.InOrStdin(), cmd.OutOrStdout(), log)

			if err := term.Attach(sess.Store, sess.Conn, sess.UserID); err != nil {
				return err
			}

			if err := term.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&botURL, "url", "", "override the conversation-start URL")
	cmd.Flags().BoolVar(&noGreet, "no-greet", false, "do not send the greeting trigger after connect")

	return cmd
}
