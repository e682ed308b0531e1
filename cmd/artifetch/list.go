package main

import (
	"fmt"
	"io"

	"github.com/gosuri/uitable"

	"github.com/ZebulonRouseFrantzich/artifetch/internal/config"
	"github.com/ZebulonRouseFrantzich/artifetch/internal/platform"
)

// printEntries writes a table of every configured entry and whether it
// applies to info.
func printEntries(out io.Writer, entries []config.Entry, info *platform.Info) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No artifacts configured.")
		return nil
	}

	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("NAME", "PLATFORM", "ARCH", "MATCH", "URL")

	for _, e := range entries {
		match, err := matchLabel(e, info)
		if err != nil {
			return err
		}

		arch := e.Arch
		if arch == "" {
			arch = "any"
		}
		table.AddRow(e.Name, e.Platform, arch, match, e.URL)
	}

	fmt.Fprintln(out, table)
	return nil
}

func matchLabel(e config.Entry, info *platform.Info) (string, error) {
	if e.Platform == "" {
		return "-", nil
	}

	osMatch, err := platform.MatchesOS(info.OS, e.Platform)
	if err != nil {
		return "", err
	}
	if osMatch && platform.MatchesArch(info.Arch, e.Arch) {
		return "yes", nil
	}
	return "no", nil
}
