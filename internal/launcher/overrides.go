package launcher

import (
	"fmt"
	"strings"

	"github.com/lavoiems/solo-learn/internal/runconfig"
)

// Overrides are user-requested changes applied on top of the preset, last.
type Overrides struct {
	Set    *runconfig.RunConfig
	Remove []string
}

// ParseOverrides turns repeated --set specs into overrides.
//
// A spec is "flag=value", "flag=v1,v2" for per-view flags, or a bare "flag"
// for presence-only flags. "flag=" removes the flag from the assembled
// configuration.
func ParseOverrides(specs []string) (*Overrides, error) {
	overrides := &Overrides{Set: runconfig.New()}
	for _, spec := range specs {
		flag, value, found := strings.Cut(spec, "=")
		flag = strings.TrimSpace(flag)
		if flag == "" {
			return nil, fmt.Errorf("invalid override %q", spec)
		}

		switch {
		case !found:
			overrides.Set.Set(flag)
		case value == "":
			overrides.Remove = append(overrides.Remove, flag)
		default:
			overrides.Set.Set(flag, strings.Split(value, ",")...)
		}
	}
	return overrides, nil
}

// Apply merges the overrides into the assembled configuration.
func (o *Overrides) Apply(rc *runconfig.RunConfig) {
	if o == nil {
		return
	}
	rc.Merge(o.Set)
	for _, flag := range o.Remove {
		rc.Remove(flag)
	}
}
