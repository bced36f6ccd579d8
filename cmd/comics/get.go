package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/comics"
)

// Run executes the get command.
func (c *GetCmd) Run(deps *Dependencies) error {
	return resolve(deps, comics.ByID(c.Num))
}

// Run executes the random command.
func (c *RandomCmd) Run(deps *Dependencies) error {
	return resolve(deps, comics.Random())
}

func resolve(deps *Dependencies, req comics.Request) error {
	res, err := deps.Resolver.Resolve(deps.Ctx, req)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", comics.ErrorMessage(err))
		return err
	}

	if deps.JSON {
		return writeJSON(deps.Stdout, struct {
			*comics.Resolution
			Fallback bool `json:"fallback"`
		}{res, res.Fallback()})
	}

	if res.Fallback() {
		fmt.Fprintf(deps.Stdout, "No comic matches %q, here is a random one.\n\n", res.Query)
	}
	writeComic(deps.Stdout, res.Comic, deps.Config.Remote.BaseURL)
	return nil
}

// writeComic prints a comic as a short plain-text block.
func writeComic(w io.Writer, c *comics.Comic, baseURL string) {
	fmt.Fprintf(w, "#%d: %s", c.Num, c.DisplayTitle())
	if d := c.Date(); !d.IsZero() {
		fmt.Fprintf(w, " (%s)", d.Format("2006-01-02"))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, c.Img)
	if alt := strings.TrimSpace(c.Alt); alt != "" {
		fmt.Fprintln(w, alt)
	}
	fmt.Fprintln(w, c.URL(baseURL))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
