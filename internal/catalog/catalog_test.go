package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	for _, suffix := range []string{"name", "desc", "soln", "refs"} {
		msg, err := c.Lookup("pscanalpha.responsecode415." + suffix)
		require.NoError(t, err, suffix)
		assert.NotEmpty(t, msg, suffix)
	}
}

func TestLookup_Missing(t *testing.T) {
	c, err := Parse([]byte(`a.b: c`))
	require.NoError(t, err)

	_, err = c.Lookup("a.x")
	assert.True(t, errors.Is(err, ErrMissingMessage))
	assert.Contains(t, err.Error(), "a.x")
}

func TestPrefixed(t *testing.T) {
	c, err := Parse([]byte("rule.name: Rule\nrule.desc: Desc\n"))
	require.NoError(t, err)

	m := c.Prefixed("rule.")
	name, err := m.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "Rule", name)

	_, err = m.Get("soln")
	assert.ErrorIs(t, err, ErrMissingMessage)
}

func TestLoad_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pscanalpha.responsecode415.name: Overridden\nextra.key: x\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	name, err := c.Lookup("pscanalpha.responsecode415.name")
	require.NoError(t, err)
	assert.Equal(t, "Overridden", name)

	// остальные ключи остаются из встроенного каталога
	_, err = c.Lookup("pscanalpha.responsecode415.desc")
	assert.NoError(t, err)

	def, err := Default()
	require.NoError(t, err)
	assert.Equal(t, def.Len()+1, c.Len())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
