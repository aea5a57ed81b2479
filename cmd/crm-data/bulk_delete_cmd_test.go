package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectIDs_MergesFlagAndFileSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(path, []byte(
		"4d7d73a8-8b3b-4a2e-9c39-000000000003\n\n  4d7d73a8-8b3b-4a2e-9c39-000000000004  \n",
	), 0o644))

	ids, err := collectIDs([]string{
		"4d7d73a8-8b3b-4a2e-9c39-000000000001",
		" 4d7d73a8-8b3b-4a2e-9c39-000000000002 ",
		"",
	}, path)
	require.NoError(t, err)
	require.Equal(t, []string{
		"4d7d73a8-8b3b-4a2e-9c39-000000000001",
		"4d7d73a8-8b3b-4a2e-9c39-000000000002",
		"4d7d73a8-8b3b-4a2e-9c39-000000000003",
		"4d7d73a8-8b3b-4a2e-9c39-000000000004",
	}, ids)
}

func TestCollectIDs_RejectsInvalidID(t *testing.T) {
	_, err := collectIDs([]string{"not-a-uuid"}, "")
	require.Error(t, err)
	require.Equal(t, exitValidation, exitCode(err))
	require.Contains(t, err.Error(), `"not-a-uuid"`)
}

func TestCollectIDs_MissingFileIsUsageError(t *testing.T) {
	_, err := collectIDs(nil, filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	require.Equal(t, exitUsage, exitCode(err))
}
