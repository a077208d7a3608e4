// Package method defines the closed set of SSL pretraining methods the
// trainer understands, together with the flags each one requires.
package method

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lavoiems/solo-learn/internal/runconfig"
)

// Method describes one entry of the trainer's method table.
type Method struct {
	Name string

	// Momentum methods keep an exponential-moving-average copy of the
	// backbone and need both ends of the tau schedule.
	Momentum bool

	// Discrete-communication variants quantize the projector output into
	// messages and need both the vocabulary and the message size.
	DiscreteComm bool

	// Required lists method-specific flags that must be present in the
	// assembled configuration.
	Required []string
}

// companionPairs are flags that only make sense together, regardless of the
// method. Supplying one without the other is always a mistake.
var companionPairs = [][2]string{
	{"base_tau_momentum", "final_tau_momentum"},
	{"voc_size", "message_size"},
	{"tau_online", "tau_target"},
}

var registry = map[string]Method{
	"simclr": {
		Name:     "simclr",
		Required: []string{"temperature", "proj_hidden_dim", "proj_output_dim"},
	},
	"mocov2plus": {
		Name:     "mocov2plus",
		Momentum: true,
		Required: []string{"temperature", "proj_hidden_dim", "proj_output_dim"},
	},
	"byol": {
		Name:     "byol",
		Momentum: true,
		Required: []string{"proj_hidden_dim", "proj_output_dim", "pred_hidden_dim"},
	},
	"nnclr": {
		Name:     "nnclr",
		Required: []string{"temperature", "proj_hidden_dim", "proj_output_dim", "pred_hidden_dim"},
	},
	"ressl": {
		Name:     "ressl",
		Momentum: true,
		Required: []string{"proj_hidden_dim", "proj_output_dim"},
	},
	"dino": {
		Name:     "dino",
		Momentum: true,
		Required: []string{"num_prototypes", "proj_hidden_dim", "proj_output_dim"},
	},
	"barlow_twins": {
		Name:     "barlow_twins",
		Required: []string{"scale_loss", "proj_hidden_dim", "proj_output_dim"},
	},
	"sdsimclr": {
		Name:         "sdsimclr",
		DiscreteComm: true,
		Required:     []string{"temperature", "proj_hidden_dim", "proj_output_dim"},
	},
	"sdbyol": {
		Name:         "sdbyol",
		Momentum:     true,
		DiscreteComm: true,
		Required:     []string{"proj_hidden_dim", "proj_output_dim", "pred_hidden_dim"},
	},
	"sdbarlow": {
		Name:         "sdbarlow",
		DiscreteComm: true,
		Required:     []string{"scale_loss", "proj_hidden_dim", "proj_output_dim"},
	},
	"sddino": {
		Name:         "sddino",
		Momentum:     true,
		DiscreteComm: true,
		Required:     []string{"num_prototypes", "proj_hidden_dim", "proj_output_dim"},
	},
	"sdmoco": {
		Name:         "sdmoco",
		Momentum:     true,
		DiscreteComm: true,
		Required:     []string{"temperature", "proj_hidden_dim", "proj_output_dim"},
	},
}

// FromString looks up a method by its trainer name.
func FromString(name string) (Method, bool) {
	m, ok := registry[name]
	return m, ok
}

// Names returns all known method names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the assembled configuration satisfies the method's
// flag requirements and the global companion-flag rules.
func (m Method) Validate(rc *runconfig.RunConfig) error {
	var missing []string

	for _, flag := range m.Required {
		if !rc.Has(flag) {
			missing = append(missing, flag)
		}
	}

	if m.Momentum {
		for _, flag := range []string{"base_tau_momentum", "final_tau_momentum"} {
			if !rc.Has(flag) {
				missing = append(missing, flag)
			}
		}
	}

	if m.DiscreteComm {
		for _, flag := range []string{"voc_size", "message_size"} {
			if !rc.Has(flag) {
				missing = append(missing, flag)
			}
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf(
			"method %s: missing required flags: %s",
			m.Name, strings.Join(missing, ", "),
		)
	}

	for _, pair := range companionPairs {
		a, b := rc.Has(pair[0]), rc.Has(pair[1])
		if a != b {
			present, absent := pair[0], pair[1]
			if b {
				present, absent = pair[1], pair[0]
			}
			return fmt.Errorf(
				"flag %s requires its companion %s",
				present, absent,
			)
		}
	}

	return nil
}
