// Package tremorurl parses resource addresses of the form
//
//	tremor://host/<type>/<artefact>/<instance>/<port>
//
// Trailing segments are optional: a URL may name just a type, an artefact,
// an instance, or a full instance port. The host defaults to "localhost" and
// the scheme may be omitted ("/pipeline/main/01/in").
package tremorurl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jaysonsantos/tremor-runtime/errors"
)

// Scheme is the URL scheme of resource addresses.
const Scheme = "tremor"

// DefaultHost is used when an address names no host.
const DefaultHost = "localhost"

// ResourceType names the kind of artefact addressed.
type ResourceType string

// Resource types
const (
	TypeOnramp   ResourceType = "onramp"
	TypeOfframp  ResourceType = "offramp"
	TypePipeline ResourceType = "pipeline"
	TypeBinding  ResourceType = "binding"
)

// URL is a parsed resource address.
type URL struct {
	Host     string
	Type     ResourceType
	Artefact string
	Instance string
	Port     string
}

// Parse parses a resource address
func Parse(raw string) (URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URL{}, invalid(raw, err.Error())
	}
	if u.Scheme != "" && u.Scheme != Scheme {
		return URL{}, invalid(raw, fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return URL{}, invalid(raw, "query and fragment are not allowed")
	}

	out := URL{Host: u.Host}
	if out.Host == "" {
		out.Host = DefaultHost
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return out, nil
	}
	segments := strings.Split(path, "/")
	if len(segments) > 4 {
		return URL{}, invalid(raw, "too many path segments")
	}
	for _, s := range segments {
		if s == "" {
			return URL{}, invalid(raw, "empty path segment")
		}
	}

	out.Type = ResourceType(segments[0])
	switch out.Type {
	case TypeOnramp, TypeOfframp, TypePipeline, TypeBinding:
	default:
		return URL{}, invalid(raw, fmt.Sprintf("unknown resource type %q", segments[0]))
	}
	if len(segments) > 1 {
		out.Artefact = segments[1]
	}
	if len(segments) > 2 {
		out.Instance = segments[2]
	}
	if len(segments) > 3 {
		out.Port = segments[3]
	}
	return out, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(raw string) URL {
	u, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func invalid(raw, reason string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%q: %s: %w", raw, reason, errors.ErrInvalidData),
		"tremorurl", "Parse", "url parsing")
}

// InstancePort returns the port segment, or false when the URL does not
// address an instance port.
func (u URL) InstancePort() (string, bool) {
	if u.Port == "" {
		return "", false
	}
	return u.Port, true
}

// WithPort returns a copy addressing the given port on the same instance.
func (u URL) WithPort(port string) URL {
	u.Port = port
	return u
}

// Trimmed returns the URL without its port segment.
func (u URL) Trimmed() URL {
	u.Port = ""
	return u
}

// String renders the canonical form.
func (u URL) String() string {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteString("://")
	b.WriteString(u.Host)
	for _, s := range []string{string(u.Type), u.Artefact, u.Instance, u.Port} {
		if s == "" {
			break
		}
		b.WriteByte('/')
		b.WriteString(s)
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (u URL) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *URL) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
