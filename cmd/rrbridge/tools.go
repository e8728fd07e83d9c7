package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/rrbridge/rrbridge/internal/config"
	"github.com/rrbridge/rrbridge/internal/data"
	"github.com/rrbridge/rrbridge/internal/lifecycle"
	"github.com/rrbridge/rrbridge/internal/persist"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newBanksCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "banks",
		Short: "List the sound banks and events found for this platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			dir := lifecycle.BanksPath(cfg.Engine.Plugin.BanksLocation)
			banks, err := data.ListBanks(dir)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "BANK\tEVENT\tLOOP\tDURATION\tMEDIA\n")
			for _, b := range banks {
				for _, ev := range b.Events {
					media := "-"
					if ev.Info != nil {
						media = fmt.Sprintf("%s %dHz x%d", ev.Info.Format, ev.Info.SampleRate, ev.Info.Channels)
					}
					fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", b.Bank, ev.Name, ev.Loop, ev.Duration, media)
				}
			}
			return w.Flush()
		},
	}
}

func newConfigCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the merged engine settings as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			for _, o := range cfg.Overrides() {
				fmt.Fprintf(cmd.OutOrStdout(), "# override: %s\n", o.Block())
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(struct {
				Engine any `toml:"engine"`
			}{cfg.Engine})
		},
	}
}

func newJournalCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		session string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recorded engine failures from the diagnostics database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled {
				return fmt.Errorf("database is disabled in %s", config.Path(""))
			}
			var id uuid.UUID
			if session != "" {
				if id, err = uuid.Parse(session); err != nil {
					return fmt.Errorf("session: %w", err)
				}
			}

			log, err := newLogger(cfg.Logging)
			if err != nil {
				return err
			}
			db, err := persist.NewDB(cmd.Context(), cfg.Database, log.Named("db"))
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := persist.NewJournalRepo(db).Recent(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			log.Debug("journal entries", zap.Int("count", len(entries)))

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "TIME\tKIND\tOP\tOBJECT\tERROR\n")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.Time.Format("2006-01-02 15:04:05"), e.Kind, e.Op, e.Object, e.Err)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "only this session id (default all sessions)")
	cmd.Flags().IntVar(&limit, "limit", 50, "newest entries to show")
	return cmd
}
