package rawbuf

import (
	"sort"
	"strings"

	"github.com/daqstream/daqstream/pkg/errors"
)

// RawBufferLibrary maps decoder names to buffer lists. It is built either
// explicitly from a routing configuration or implicitly with one binding per
// decoder. A configured top-level "*" entry supplies the fallback template
// applied to decoders absent from the explicit entries.
type RawBufferLibrary struct {
	lists map[string]*RawBufferList

	// fallback holds the raw top-level "*" specs for per-decoder
	// materialization during stream open.
	fallback map[string]BindingSpec
	kw       map[string]string
}

// NewLibrary creates an empty library.
func NewLibrary() *RawBufferLibrary {
	return &RawBufferLibrary{lists: make(map[string]*RawBufferList)}
}

// NewLibraryFromConfig builds a library from a routing configuration,
// substituting the caller's keyword dictionary into all destination and
// name templates. Key-range overlaps within one list are fatal here, not at
// dispatch time.
func NewLibraryFromConfig(cfg RoutingConfig, kw map[string]string) (*RawBufferLibrary, error) {
	lib := NewLibrary()
	lib.kw = kw

	for decName, bindings := range cfg {
		if decName == "*" {
			lib.fallback = bindings
			continue
		}
		list, err := buildList(bindings, kw)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "decoder "+decName)
		}
		lib.lists[decName] = list
	}
	return lib, nil
}

// buildList expands one decoder's binding specs into a RawBufferList.
func buildList(bindings map[string]BindingSpec, kw map[string]string) (*RawBufferList, error) {
	list := NewRawBufferList()

	// deterministic expansion order so rebuilds are index-identical
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := bindings[name]
		outName := spec.OutName
		if outName == "" {
			outName = name
		}

		var keys []int
		wildcard := false
		for _, ks := range spec.KeyList {
			if ks.Wildcard {
				wildcard = true
				continue
			}
			keys = append(keys, ks.Keys()...)
		}

		outStream, err := substitute(spec.OutStream, kw, nil, nil)
		if err != nil {
			return nil, err
		}
		outName, err = substitute(outName, kw, nil, nil)
		if err != nil {
			return nil, err
		}

		if wildcard {
			err := list.Add(&RawBuffer{
				OutStream: outStream,
				OutName:   outName,
				Wildcard:  true,
			})
			if err != nil {
				return nil, err
			}
		}

		if len(keys) == 0 {
			continue
		}

		if hasKeyPlaceholder(outName) || hasKeyPlaceholder(outStream) {
			// per-key templates expand to one buffer per concrete key
			for _, key := range keys {
				k := key
				st, err := substitute(outStream, nil, &k, nil)
				if err != nil {
					return nil, err
				}
				nm, err := substitute(outName, nil, &k, nil)
				if err != nil {
					return nil, err
				}
				if err := list.Add(&RawBuffer{
					OutStream: st,
					OutName:   nm,
					KeyList:   []int{k},
				}); err != nil {
					return nil, err
				}
			}
			continue
		}

		if err := list.Add(&RawBuffer{
			OutStream: outStream,
			OutName:   outName,
			KeyList:   keys,
		}); err != nil {
			return nil, err
		}
	}

	return list, nil
}

// List returns the buffer list for a decoder name.
func (lib *RawBufferLibrary) List(decName string) (*RawBufferList, bool) {
	l, ok := lib.lists[decName]
	return l, ok
}

// Set installs a buffer list for a decoder name.
func (lib *RawBufferLibrary) Set(decName string, list *RawBufferList) {
	lib.lists[decName] = list
}

// Names returns the configured decoder names in sorted order.
func (lib *RawBufferLibrary) Names() []string {
	names := make([]string, 0, len(lib.lists))
	for name := range lib.lists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasFallback reports whether a top-level "*" template is configured.
func (lib *RawBufferLibrary) HasFallback() bool {
	return lib.fallback != nil
}

// MaterializeDecoder builds a list for a decoder absent from the explicit
// configuration by applying the top-level "*" template, substituting {name}
// with the decoder name stripped of its conventional "Decoder" suffix. The
// list is installed in the library.
func (lib *RawBufferLibrary) MaterializeDecoder(decName string) (*RawBufferList, error) {
	if list, ok := lib.lists[decName]; ok {
		return list, nil
	}
	if lib.fallback == nil {
		return nil, errors.Newf(errors.ErrorTypeRouting,
			"decoder %s not configured and no fallback template", decName)
	}

	name := strings.TrimSuffix(decName, "Decoder")

	bindings := make(map[string]BindingSpec, len(lib.fallback))
	for bindingName, spec := range lib.fallback {
		resolvedName, err := substitute(bindingName, lib.kw, nil, &name)
		if err != nil {
			return nil, err
		}
		spec.OutStream, err = substituteName(spec.OutStream, lib.kw, name)
		if err != nil {
			return nil, err
		}
		if spec.OutName != "" {
			spec.OutName, err = substituteName(spec.OutName, lib.kw, name)
			if err != nil {
				return nil, err
			}
		}
		bindings[resolvedName] = spec
	}

	list, err := buildList(bindings, lib.kw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "fallback for "+decName)
	}
	lib.lists[decName] = list
	return list, nil
}

func substituteName(tmpl string, kw map[string]string, name string) (string, error) {
	return substitute(tmpl, kw, nil, &name)
}

// All returns every buffer in the library across all lists, list by list in
// name order.
func (lib *RawBufferLibrary) All() []*RawBuffer {
	var out []*RawBuffer
	for _, name := range lib.Names() {
		out = append(out, lib.lists[name].Buffers...)
	}
	return out
}
