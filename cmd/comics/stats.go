package main

import "fmt"

// Run executes the stats command.
func (c *StatsCmd) Run(deps *Dependencies) error {
	stats := deps.Catalog.Stats()
	if deps.JSON {
		return writeJSON(deps.Stdout, stats)
	}

	fmt.Fprintf(deps.Stdout, "Comics:  %d\n", stats.Comics)
	fmt.Fprintf(deps.Stdout, "Indexed: %d\n", stats.Entries)
	fmt.Fprintf(deps.Stdout, "Latest:  #%d\n", stats.Latest)
	fmt.Fprintf(deps.Stdout, "Store:   %s (%s)\n", deps.Config.Store.Driver, deps.Config.StorePath(deps.Dir))
	return nil
}
