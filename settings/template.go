// Package settings holds the default per-user settings template.
//
// The template is a flat key/value table loaded once at startup, typically
// from a TOML file:
//
//	[defaults]
//	theme = "light"
//	language = "en"
//	newsletter = false
//
// Non-string TOML values are stored in their canonical text form.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Setting is a single user setting row.
type Setting struct {
	Key   string `db:"setting_key" json:"key"`
	Value string `db:"setting_value" json:"value"`
}

// Template is an immutable, key-ordered set of default settings.
type Template struct {
	entries []Setting
}

type templateFile struct {
	Defaults map[string]any `toml:"defaults"`
}

// NewTemplate builds a template from values.
func NewTemplate(values map[string]string) *Template {
	entries := make([]Setting, 0, len(values))
	for k, v := range values {
		entries = append(entries, Setting{Key: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return &Template{entries: entries}
}

// LoadTemplateFile decodes the TOML template at path.
func LoadTemplateFile(path string) (*Template, error) {
	var file templateFile
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode settings template: %w", err)
	}
	return fromDecoded(file, md)
}

// ParseTemplate decodes a TOML template held in memory.
func ParseTemplate(data string) (*Template, error) {
	var file templateFile
	md, err := toml.Decode(data, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode settings template: %w", err)
	}
	return fromDecoded(file, md)
}

func fromDecoded(file templateFile, md toml.MetaData) (*Template, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown settings template keys: %v", undecoded)
	}

	values := make(map[string]string, len(file.Defaults))
	for k, raw := range file.Defaults {
		if strings.TrimSpace(k) == "" {
			return nil, errors.New("settings template contains an empty key")
		}
		v, err := stringify(raw)
		if err != nil {
			return nil, fmt.Errorf("settings template key %q: %w", k, err)
		}
		values[k] = v
	}
	return NewTemplate(values), nil
}

func stringify(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", raw)
	}
}

// LoadDefaults returns a fresh copy of the template rows for userID.
func (t *Template) LoadDefaults(_ context.Context, _ int64) ([]Setting, error) {
	if t == nil {
		return nil, nil
	}
	return append([]Setting(nil), t.entries...), nil
}

// Len returns the number of template keys.
func (t *Template) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Lookup returns the default value for key.
func (t *Template) Lookup(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Key >= key })
	if i < len(t.entries) && t.entries[i].Key == key {
		return t.entries[i].Value, true
	}
	return "", false
}
