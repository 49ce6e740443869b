package rawbuf

import (
	"os"

	gojson "github.com/goccy/go-json"

	"github.com/daqstream/daqstream/pkg/errors"
)

// RoutingConfig is the declarative routing configuration: decoder name to
// binding name to binding spec. A top-level "*" entry supplies a fallback
// binding template applied to any decoder absent from the explicit entries.
type RoutingConfig map[string]map[string]BindingSpec

// BindingSpec declares one routing target.
type BindingSpec struct {
	// KeyList selects the routing keys this binding catches: individual
	// integers, inclusive [lo, hi] ranges, or the wildcard "*".
	KeyList []KeySpec `json:"key_list"`
	// OutStream is the output destination template.
	OutStream string `json:"out_stream"`
	// OutName optionally overrides the binding name as the in-destination
	// sub-path.
	OutName string `json:"out_name,omitempty"`
}

// KeySpec is one key_list entry: a single key (Lo == Hi), an inclusive
// range, or the wildcard.
type KeySpec struct {
	Lo, Hi   int
	Wildcard bool
}

// UnmarshalJSON accepts an integer, a [lo, hi] pair, or the literal "*".
func (k *KeySpec) UnmarshalJSON(data []byte) error {
	var single int
	if err := gojson.Unmarshal(data, &single); err == nil {
		k.Lo, k.Hi = single, single
		return nil
	}

	var pair []int
	if err := gojson.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 || pair[0] > pair[1] {
			return errors.Newf(errors.ErrorTypeConfig, "bad key range %v", pair)
		}
		k.Lo, k.Hi = pair[0], pair[1]
		return nil
	}

	var s string
	if err := gojson.Unmarshal(data, &s); err == nil {
		if s != "*" {
			return errors.Newf(errors.ErrorTypeConfig, "bad key_list entry %q", s)
		}
		k.Wildcard = true
		return nil
	}

	return errors.Newf(errors.ErrorTypeConfig, "bad key_list entry %s", string(data))
}

// Keys expands the spec to its concrete keys. Wildcard specs have none.
func (k KeySpec) Keys() []int {
	if k.Wildcard {
		return nil
	}
	keys := make([]int, 0, k.Hi-k.Lo+1)
	for key := k.Lo; key <= k.Hi; key++ {
		keys = append(keys, key)
	}
	return keys
}

// ParseRoutingConfig parses a JSON routing configuration document.
func ParseRoutingConfig(data []byte) (RoutingConfig, error) {
	var cfg RoutingConfig
	if err := gojson.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "parsing routing config")
	}
	for dec, bindings := range cfg {
		for name, spec := range bindings {
			if len(spec.KeyList) == 0 {
				return nil, errors.Newf(errors.ErrorTypeConfig,
					"binding %s/%s has an empty key_list", dec, name)
			}
			if spec.OutStream == "" {
				return nil, errors.Newf(errors.ErrorTypeConfig,
					"binding %s/%s is missing out_stream", dec, name)
			}
		}
	}
	return cfg, nil
}

// LoadRoutingConfig reads and parses a routing configuration file.
func LoadRoutingConfig(path string) (RoutingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "reading routing config")
	}
	return ParseRoutingConfig(data)
}
