package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian-sdk/pkg/crmclient"
)

func TestParseMappingArg(t *testing.T) {
	t.Run("empty means automatic", func(t *testing.T) {
		mapping, err := parseMappingArg("")
		require.NoError(t, err)
		require.Nil(t, mapping)
	})

	t.Run("inline json", func(t *testing.T) {
		mapping, err := parseMappingArg(`[{"header":"Full Name","field":"name"},{"header":"Notes","field":"skip"}]`)
		require.NoError(t, err)
		require.Equal(t, []crmclient.ColumnMapping{
			{Header: "Full Name", Field: "name"},
			{Header: "Notes", Field: "skip"},
		}, mapping)
	})

	t.Run("at-file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mapping.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"header":"Email","field":"email"}]`), 0o644))

		mapping, err := parseMappingArg("@" + path)
		require.NoError(t, err)
		require.Equal(t, []crmclient.ColumnMapping{{Header: "Email", Field: "email"}}, mapping)
	})

	t.Run("missing at-file is a usage error", func(t *testing.T) {
		_, err := parseMappingArg("@" + filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
		require.Equal(t, exitUsage, exitCode(err))
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		_, err := parseMappingArg(`[{"header":"Email","column":"email"}]`)
		require.Error(t, err)
		require.Equal(t, exitValidation, exitCode(err))
	})
}

func TestPreviewExit(t *testing.T) {
	require.NoError(t, previewExit(&crmclient.ImportPreview{ValidRows: 3}))

	err := previewExit(&crmclient.ImportPreview{
		ValidRows: 3,
		Issues:    crmclient.MappingIssues{Missing: []string{"name"}},
	})
	require.Error(t, err)
	require.Equal(t, exitValidation, exitCode(err))
	require.Contains(t, err.Error(), "missing=1")

	err = previewExit(&crmclient.ImportPreview{ValidRows: 0, TotalRows: 4})
	require.Error(t, err)
	require.Equal(t, exitValidation, exitCode(err))
	require.Contains(t, err.Error(), "no valid rows")
}
