package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/prnpusher/internal/scan"
)

// FieldsCmd implements the 'fields' command.
type FieldsCmd struct {
	JSON bool `help:"Print the field list as JSON"`
}

func (f *FieldsCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	// Discovery has no side effects on ledgers or completion state.
	list, err := scan.NewSession(cfg).DiscoverFields(context.Background())
	if err != nil {
		return err
	}

	if f.JSON {
		enc := json.NewEncoder(g.out())
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	w := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tENABLED")
	for _, field := range list {
		fmt.Fprintf(w, "%s\t%t\n", field.Name, field.Enabled)
	}
	return w.Flush()
}
