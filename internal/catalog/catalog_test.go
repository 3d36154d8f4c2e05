package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Len(t, c.Projects, 5)
	assert.Equal(t, []string{"A", "B"}, c.Towers("Garden Isles"))
	assert.Equal(t, []string{"A", "B", "C", "D"}, c.Towers("Kube"))
	assert.Nil(t, c.Towers("Nowhere"))
	assert.Contains(t, c.Areas, "Other")
	assert.Equal(t, []string{"High", "Medium", "Low"}, c.Priorities)
	assert.True(t, c.HasDepartment("Legal"))
	assert.False(t, c.HasDepartment("Sales"))
}

func TestHasTower(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.True(t, c.HasTower("Casa Isles", "D"))
	assert.False(t, c.HasTower("Garden Isles", "C"))
}

func TestParseRejectsIncompleteCatalog(t *testing.T) {
	_, err := Parse([]byte("projects:\n  - name: X\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `project "X" has no towers`)
	assert.Contains(t, err.Error(), "catalog has no areas")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := `
projects:
  - name: Alpha
    towers: [North]
areas: [Downtown]
departments: [Civil]
priorities: [High]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"North"}, c.Towers("Alpha"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
