package aggregate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const categoriesCSV = `DUID,Category,Load,Comment
BAYSW1,Coal,,Bayswater unit 1
BW01,Coal,,
HPRG1,Battery,y,Hornsdale charging
HPRL1,Battery,,Hornsdale discharging
NYNGAN1,Solar,,
BOCORWF1,Wind,,extra,columns,ignored
`

func TestReadCategories(t *testing.T) {
	cm, err := readCategories(strings.NewReader(categoriesCSV))
	require.NoError(t, err)

	// Categories keep first-seen order.
	assert.Equal(t, []string{"Coal", "Battery", "Solar", "Wind"}, cm.Categories)
	assert.Equal(t, 4, cm.Len())

	cc, ok := cm.Lookup("BAYSW1")
	require.True(t, ok)
	assert.Equal(t, 0, cc.Index)
	assert.False(t, cc.IsLoad)

	cc, ok = cm.Lookup("HPRG1")
	require.True(t, ok)
	assert.Equal(t, 1, cc.Index)
	assert.True(t, cc.IsLoad)

	cc, ok = cm.Lookup("HPRL1")
	require.True(t, ok)
	assert.Equal(t, 1, cc.Index)
	assert.False(t, cc.IsLoad)

	_, ok = cm.Lookup("NOPE1")
	assert.False(t, ok)
}

func TestReadCategoriesErrors(t *testing.T) {
	t.Run("header only", func(t *testing.T) {
		_, err := readCategories(strings.NewReader("DUID,Category,Load\n"))
		assert.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := readCategories(strings.NewReader(""))
		assert.Error(t, err)
	})

	t.Run("record too short", func(t *testing.T) {
		_, err := readCategories(strings.NewReader("DUID,Category,Load\nBAYSW1,Coal\n"))
		assert.Error(t, err)
	})
}

func TestLoadCategories(t *testing.T) {
	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "categories.csv")
		require.NoError(t, os.WriteFile(path, []byte(categoriesCSV), 0o644))

		cm, err := LoadCategories(path)
		require.NoError(t, err)
		assert.Equal(t, 4, cm.Len())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCategories(filepath.Join(t.TempDir(), "absent.csv"))
		assert.Error(t, err)
	})
}
