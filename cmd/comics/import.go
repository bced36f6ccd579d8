package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fwojciec/comics"
	"github.com/fwojciec/comics/fs"
)

// Run executes the import command. Comics already in the catalog are kept
// as they are; only new numbers are added.
func (c *ImportCmd) Run(deps *Dependencies) error {
	snap, err := fs.Import(c.Catalog, c.Index)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", comics.ErrorMessage(err))
		return err
	}

	report, err := deps.Synchronizer.Import(deps.Ctx, snap)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", comics.ErrorMessage(err))
		return err
	}
	deps.Logger.Info("import", "id", report.ID, "updated", report.Updated, "skipped", len(report.Skipped))

	if deps.JSON {
		return writeJSON(deps.Stdout, report)
	}

	fmt.Fprintf(deps.Stdout, "Imported %d comics (latest #%d).\n", report.Updated, report.Latest)
	if len(report.Skipped) > 0 {
		nums := make([]string, len(report.Skipped))
		for i, n := range report.Skipped {
			nums[i] = "#" + strconv.Itoa(n)
		}
		fmt.Fprintf(deps.Stdout, "Already in catalog: %s\n", strings.Join(nums, ", "))
	}
	return nil
}
