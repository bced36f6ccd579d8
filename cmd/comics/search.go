package main

import (
	"fmt"
	"strings"

	"github.com/fwojciec/comics"
)

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	query := strings.Join(c.Query, " ")
	if !c.All {
		return resolve(deps, comics.ByQuery(query))
	}

	snap := deps.Catalog.Snapshot()
	matches := comics.Rank(comics.Normalize(query), snap.Index, c.Limit)

	if deps.JSON {
		if matches == nil {
			matches = []comics.Match{}
		}
		return writeJSON(deps.Stdout, matches)
	}

	if len(matches) == 0 {
		fmt.Fprintf(deps.Stdout, "No comic matches %q.\n", query)
		return nil
	}
	for _, m := range matches {
		title := ""
		if comic, ok := snap.Comic(m.Num); ok {
			title = comic.DisplayTitle()
		}
		fmt.Fprintf(deps.Stdout, "#%-5d %d  %s\n", m.Num, m.Strength, title)
	}
	return nil
}
