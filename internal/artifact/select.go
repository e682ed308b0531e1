package artifact

import (
	"strings"

	"github.com/ZebulonRouseFrantzich/artifetch/internal/config"
	"github.com/ZebulonRouseFrantzich/artifetch/internal/platform"
)

// ParseNames builds a selection set from --install values. Each value may
// hold several names separated by commas or whitespace.
func ParseNames(values []string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, v := range values {
		for _, name := range strings.Fields(strings.ReplaceAll(v, ",", " ")) {
			names[name] = struct{}{}
		}
	}
	return names
}

// Select returns, in configuration order, the entries whose name is in
// names and whose platform and architecture match info.
//
// Every entry must have a name. The platform is only required, and the
// running OS only has to be recognized, once an entry's name matched.
func Select(entries []config.Entry, info *platform.Info, names map[string]struct{}) ([]config.Entry, error) {
	var selected []config.Entry

	for _, e := range entries {
		if err := e.Require(config.FieldName); err != nil {
			return nil, err
		}
		if _, ok := names[e.Name]; !ok {
			continue
		}

		if err := e.Require(config.FieldPlatform); err != nil {
			return nil, err
		}
		osMatch, err := platform.MatchesOS(info.OS, e.Platform)
		if err != nil {
			return nil, err
		}
		if !osMatch || !platform.MatchesArch(info.Arch, e.Arch) {
			continue
		}

		selected = append(selected, e)
	}

	return selected, nil
}
