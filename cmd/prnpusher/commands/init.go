package commands

import (
	"fmt"

	"git.home.luguber.info/inful/prnpusher/internal/config"
	"git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	fmt.Fprintf(g.out(), "Writing configuration to %s\n", root.Config)
	if err := config.Init(root.Config, i.Force); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "initialization failed").Build()
	}
	fmt.Fprintln(g.out(), "initialized successfully")
	return nil
}
