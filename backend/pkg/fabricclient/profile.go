package fabricclient

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const inlineSource = "inline"

// ResourceReader reads packaged resources by name.
type ResourceReader interface {
	ReadFile(name string) ([]byte, error)
}

// Profile is a connection profile: the network topology a gateway is built
// from.
type Profile struct {
	// Source is "inline" or the name of the resource the profile was read from.
	Source string
	// Format is "json" or "yaml".
	Format string
	Raw    []byte
}

// IsInlineDocument reports whether a connection profile setting holds the
// document itself rather than the name of a resource.
func IsInlineDocument(value string) bool {
	v := strings.TrimSpace(value)
	return strings.HasPrefix(v, "{") && strings.HasSuffix(v, "}")
}

// LoadProfile returns the connection profile named by value. Inline JSON is
// used as is; anything else is read as a packaged resource.
func LoadProfile(value string, resources ResourceReader) (*Profile, error) {
	if strings.TrimSpace(value) == "" {
		return nil, errors.New("connection profile not specified")
	}

	if IsInlineDocument(value) {
		return &Profile{Source: inlineSource, Format: "json", Raw: []byte(strings.TrimSpace(value))}, nil
	}

	raw, err := resources.ReadFile(value)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed loading connection profile [%s]", value)
	}
	return &Profile{Source: value, Format: formatOf(value), Raw: raw}, nil
}

func (p *Profile) Inline() bool { return p.Source == inlineSource }

// Validate checks that the profile is a non-empty structured document.
func (p *Profile) Validate() error {
	doc := map[string]interface{}{}
	var err error
	if p.Format == "json" {
		err = json.Unmarshal(p.Raw, &doc)
	} else {
		err = yaml.Unmarshal(p.Raw, &doc)
	}
	if err != nil {
		return errors.Wrapf(err, "malformed connection profile [%s]", p.Source)
	}
	if len(doc) == 0 {
		return errors.Errorf("connection profile [%s] is empty", p.Source)
	}
	return nil
}

func formatOf(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return "json"
	}
	return "yaml"
}
