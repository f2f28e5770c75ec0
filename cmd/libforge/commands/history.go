package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/libforge/internal/build"
	"git.home.luguber.info/inful/libforge/internal/eventstore"
	"git.home.luguber.info/inful/libforge/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit   int    `short:"n" help:"Number of runs to show" default:"10"`
	StateDB string `name:"state-db" help:"Run ledger database (overrides state_db)" type:"path"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.File, true)
	if err != nil {
		return err
	}
	path := h.StateDB
	if path == "" {
		path = cfg.StateDB
	}
	if path == "" {
		return errors.ConfigError("no run ledger configured (set state_db or --state-db)").Build()
	}

	store, err := eventstore.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := eventstore.ListRuns(g.Ctx, store, h.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tCOMMAND\tSTATUS\tSTARTED\tDURATION\tPLANS")
	for _, r := range runs {
		failed := 0
		for _, p := range r.Plans {
			if p.Status != string(build.StatusSuccess) {
				failed++
			}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d (%d failed)\n",
			r.RunID, r.Command, r.Status,
			r.StartedAt.Local().Format(time.DateTime),
			r.Duration.Round(time.Second),
			len(r.Plans), failed)
	}
	return tw.Flush()
}
