package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleTemplate = `
[defaults]
theme = "light"
language = "en"
newsletter = false
page_size = 25
`

func TestParseTemplate(t *testing.T) {
	tpl, err := ParseTemplate(sampleTemplate)
	require.NoError(t, err)
	require.Equal(t, 4, tpl.Len())

	rows, err := tpl.LoadDefaults(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []Setting{
		{Key: "language", Value: "en"},
		{Key: "newsletter", Value: "false"},
		{Key: "page_size", Value: "25"},
		{Key: "theme", Value: "light"},
	}, rows)

	rows[0].Value = "mutated"
	v, ok := tpl.Lookup("language")
	require.True(t, ok)
	require.Equal(t, "en", v)
}

func TestLoadTemplateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTemplate), 0o600))

	tpl, err := LoadTemplateFile(path)
	require.NoError(t, err)
	require.Equal(t, 4, tpl.Len())

	_, err = LoadTemplateFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestParseTemplateRejectsUnknownSections(t *testing.T) {
	_, err := ParseTemplate("[other]\nx = 1\n")
	require.Error(t, err)

	_, err = ParseTemplate("[defaults]\nnested = [1, 2]\n")
	require.Error(t, err)
}

func TestNilTemplate(t *testing.T) {
	var tpl *Template
	rows, err := tpl.LoadDefaults(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, rows)
	require.Zero(t, tpl.Len())
}
