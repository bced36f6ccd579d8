package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/comics"
)

// Run executes the sync command.
func (c *SyncCmd) Run(deps *Dependencies) error {
	report, err := deps.Syncer.Sync(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", comics.ErrorMessage(err))
		return err
	}

	if deps.JSON {
		return writeJSON(deps.Stdout, report)
	}

	if report.Updated == 0 {
		fmt.Fprintf(deps.Stdout, "Catalog is up to date (latest #%d).\n", report.Latest)
		return nil
	}
	fmt.Fprintf(deps.Stdout, "Added %d comics (#%d to #%d) in %s.\n",
		report.Updated, report.Previous+1, report.Latest, report.Duration.Round(time.Millisecond))
	if len(report.Skipped) > 0 {
		nums := make([]string, len(report.Skipped))
		for i, n := range report.Skipped {
			nums[i] = "#" + strconv.Itoa(n)
		}
		fmt.Fprintf(deps.Stdout, "Skipped missing: %s\n", strings.Join(nums, ", "))
	}
	return nil
}
