package commands

import (
	"fmt"

	"git.home.luguber.info/inful/libforge/internal/config"
)

// InitCmd writes a starter project file.
type InitCmd struct {
	Force bool `help:"Overwrite an existing project file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	if err := config.Init(root.File, i.Force); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", root.File)
	fmt.Printf("Next: libforge plan -f %s <platforms>\n", root.File)
	return nil
}
