package commands

import (
	"fmt"

	"git.home.luguber.info/inful/libforge/internal/version"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (VersionCmd) Run() error {
	fmt.Println("libforge", version.String())
	return nil
}
