package rawbuf

import (
	"fmt"
	"strings"

	"github.com/daqstream/daqstream/pkg/errors"
)

// Template placeholders recognized in out_stream / out_name / binding names:
//
//	{key}       the routing key, decimal
//	{key:0>3d}  the routing key, padded per the format spec (fill, align, width)
//	{name}      the decoder name with the conventional "Decoder" suffix stripped
//	{word}      any other word, looked up in the caller's keyword dictionary
//
// Substitution is an explicit formatter over this enumerated set, not
// free-form interpolation. {key} and {name} are left untouched when their
// value is not yet known, so wildcard templates survive the keyword pass and
// resolve at materialization time.

// substitute resolves the placeholders of tmpl. key and name may be nil,
// leaving their placeholders in place. Unknown placeholders absent from kw
// are a configuration error.
func substitute(tmpl string, kw map[string]string, key *int, name *string) (string, error) {
	var out strings.Builder
	for {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			out.WriteString(tmpl)
			return out.String(), nil
		}
		closing := strings.IndexByte(tmpl[open:], '}')
		if closing < 0 {
			return "", errors.Newf(errors.ErrorTypeConfig,
				"unterminated placeholder in template %q", tmpl)
		}
		closing += open

		out.WriteString(tmpl[:open])
		token := tmpl[open+1 : closing]

		switch {
		case token == "key" || strings.HasPrefix(token, "key:"):
			if key == nil {
				out.WriteString(tmpl[open : closing+1])
				break
			}
			spec := ""
			if len(token) > 3 {
				spec = token[4:]
			}
			formatted, err := formatKey(spec, *key)
			if err != nil {
				return "", err
			}
			out.WriteString(formatted)
		case token == "name":
			if name == nil {
				out.WriteString(tmpl[open : closing+1])
				break
			}
			out.WriteString(*name)
		default:
			val, ok := kw[token]
			if !ok {
				return "", errors.Newf(errors.ErrorTypeConfig,
					"unknown placeholder {%s} in template %q", token, tmpl)
			}
			out.WriteString(val)
		}

		tmpl = tmpl[closing+1:]
	}
}

// formatKey renders key per a spec of the form [[fill]align][width]d, e.g.
// "0>3d" pads to width 3 with zeros. An empty spec renders plain decimal.
func formatKey(spec string, key int) (string, error) {
	if spec == "" {
		return fmt.Sprintf("%d", key), nil
	}

	fill := byte(' ')
	alignRight := true
	rest := spec

	if len(rest) >= 2 && (rest[1] == '<' || rest[1] == '>') {
		fill = rest[0]
		alignRight = rest[1] == '>'
		rest = rest[2:]
	} else if len(rest) >= 1 && (rest[0] == '<' || rest[0] == '>') {
		alignRight = rest[0] == '>'
		rest = rest[1:]
	}

	if len(rest) == 0 || rest[len(rest)-1] != 'd' {
		return "", errors.Newf(errors.ErrorTypeConfig, "bad key format spec %q", spec)
	}
	widthStr := rest[:len(rest)-1]

	width := 0
	for i := 0; i < len(widthStr); i++ {
		if widthStr[i] < '0' || widthStr[i] > '9' {
			return "", errors.Newf(errors.ErrorTypeConfig, "bad key format spec %q", spec)
		}
		width = width*10 + int(widthStr[i]-'0')
	}

	s := fmt.Sprintf("%d", key)
	for len(s) < width {
		if alignRight {
			s = string(fill) + s
		} else {
			s += string(fill)
		}
	}
	return s, nil
}

// hasKeyPlaceholder reports whether tmpl still references the routing key.
func hasKeyPlaceholder(tmpl string) bool {
	return strings.Contains(tmpl, "{key}") || strings.Contains(tmpl, "{key:")
}
