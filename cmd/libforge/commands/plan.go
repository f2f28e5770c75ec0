package commands

import (
	"os"

	"git.home.luguber.info/inful/libforge/internal/build"
)

// PlanCmd implements the 'plan' command. It never touches the network.
type PlanCmd struct {
	Selection `embed:""`
}

func (p *PlanCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.File, true)
	if err != nil {
		return err
	}
	req, err := p.Request()
	if err != nil {
		return err
	}
	previews, err := build.NewService(cfg).Plan(g.Ctx, req)
	if werr := build.WritePreviews(os.Stdout, previews); werr != nil && err == nil {
		err = werr
	}
	return err
}
