package commands

import (
	"fmt"

	"git.home.luguber.info/inful/libforge/internal/build"
)

// SyncCmd implements the 'sync' command.
type SyncCmd struct {
	Reporting `embed:""`

	Shallow bool   `help:"Fetch only the pinned revision"`
	Branch  string `help:"Override the configured source revision"`
}

func (s *SyncCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.File, false)
	if err != nil {
		return err
	}
	rep := s.open(cfg)
	defer rep.close()

	outcome, err := build.NewService(cfg, rep.options()...).Sync(g.Ctx, build.Request{
		Shallow:  s.Shallow,
		Revision: s.Branch,
	})
	if err != nil {
		return err
	}

	src := outcome.Source
	fmt.Printf("%s at %s (%s)\n", src.Name, src.Commit, src.Path)
	for _, d := range src.Deps {
		switch {
		case d.Excluded:
			fmt.Printf("  %s excluded\n", d.Dep.Path)
		default:
			fmt.Printf("  %s at %s\n", d.Dep.Path, d.Commit)
		}
	}
	for _, r := range outcome.Patches.Results {
		fmt.Printf("patch %s: %s\n", r.Name, r.Outcome)
	}
	return nil
}
