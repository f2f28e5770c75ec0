package commands

import (
	"log/slog"
	"os"

	"git.home.luguber.info/inful/libforge/internal/build"
	"git.home.luguber.info/inful/libforge/internal/logfields"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Selection `embed:""`
	Reporting `embed:""`

	Shallow  bool   `help:"Fetch only the pinned revision"`
	Branch   string `help:"Override the configured source revision"`
	Jobs     int    `short:"j" help:"Parallel jobs (overrides build.jobs)"`
	SkipSync bool   `name:"skip-sync" help:"Build the existing checkout without syncing or patching"`
	Clean    bool   `help:"Remove scratch directories before building"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.File, false)
	if err != nil {
		return err
	}
	if b.Jobs > 0 {
		cfg.Build.Jobs = b.Jobs
	}
	req, err := b.Request()
	if err != nil {
		return err
	}
	req.Shallow = b.Shallow
	req.Revision = b.Branch
	req.SkipSync = b.SkipSync
	req.Clean = b.Clean

	rep := b.open(cfg)
	defer rep.close()

	slog.Info("Starting libforge build", logfields.Name(cfg.Product), slog.Int("platforms", len(req.Platforms)))
	result, err := build.NewService(cfg, rep.options()...).Run(g.Ctx, req)
	if result != nil {
		if werr := build.WriteSummary(os.Stdout, result); werr != nil {
			slog.Warn("Failed to print summary", logfields.Error(werr))
		}
	}
	return err
}
