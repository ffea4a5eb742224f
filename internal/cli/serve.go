package cli

import (
	"github.com/spf13/cobra"

	"github.com/lowercasename/eggcms/internal/log"
	"github.com/lowercasename/eggcms/internal/notify"
	"github.com/lowercasename/eggcms/internal/server"
	"github.com/lowercasename/eggcms/pkg/schema"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the content API",
		Long: "Reconcile the schemas, then serve the content API over HTTP until\n" +
			"interrupted. Published changes trigger the configured webhook and build command.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.close()

			repo, err := s.backend.Repository()
			if err != nil {
				return sysError("%w", err)
			}
			media, err := s.backend.Media()
			if err != nil {
				return sysError("%w", err)
			}

			notifier := notify.New(s.cfg.Webhook, log.Component("notify"))
			defer notifier.Close()
			if notifier.Enabled() {
				log.Info().
					Str("url", s.cfg.Webhook.URL).
					Str("command", s.cfg.Webhook.Command).
					Dur("debounce", s.cfg.Webhook.Debounce).
					Msg("Change notification enabled")
			}

			srv := server.New(repo, media, notifier, s.schemas, log.Component("server"))
			srv.SetSiteName(siteTitle(cmd, s))

			if addr == "" {
				addr = s.cfg.Server.Addr
			}
			if err := srv.Start(addr); err != nil {
				return sysError("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr from config)")
	return cmd
}

// siteTitle reads siteTitle from the settings singleton when the schemas
// declare one.
func siteTitle(cmd *cobra.Command, s *session) string {
	def, ok := schema.Find(s.schemas, "settings")
	if !ok || def.Kind != schema.KindSingleton || def.Field("siteTitle") == nil {
		return ""
	}
	repo, err := s.backend.Repository()
	if err != nil {
		return ""
	}
	item, ok, err := repo.GetSingleton(cmd.Context(), def)
	if err != nil || !ok {
		return ""
	}
	title, _ := item.Fields["siteTitle"].(string)
	return title
}
