package repository

import (
	"path/filepath"
	"testing"

	"github.com/abelzeko/radar-loop/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *SQLitePreferenceRepository {
	t.Helper()
	repo, err := NewSQLitePreferenceRepository(filepath.Join(t.TempDir(), "nested", "prefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestGetMissingKey(t *testing.T) {
	repo := newTestRepository(t)

	value, ok, err := repo.Get("selectedRegion")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestSetOverwrites(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Set("selectedRegion", "seoul"))
	require.NoError(t, repo.Set("selectedRegion", "jeju"))

	value, ok, err := repo.Get("selectedRegion")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "jeju", value)
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	repo, err := NewSQLitePreferenceRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Set("center", "1"))
	require.NoError(t, repo.Close())

	reopened, err := NewSQLitePreferenceRepository(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Get("center")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", value)
}

func TestLoadPreferencesDefaults(t *testing.T) {
	repo := newTestRepository(t)

	prefs, err := LoadPreferences(repo)
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultPreferences(), prefs)
}

func TestLoadPreferencesStored(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Set(entities.PrefRegion, "gangwon"))
	require.NoError(t, repo.Set(entities.PrefCenter, "1"))
	require.NoError(t, repo.Set(entities.PrefWindVector, "0"))
	require.NoError(t, SavePeriod(repo, 5000))

	prefs, err := LoadPreferences(repo)
	require.NoError(t, err)
	assert.Equal(t, entities.Preferences{
		Region:       "gangwon",
		Center:       true,
		WindVector:   false,
		PeriodMillis: 2000,
	}, prefs)
}

func TestLoadPreferencesBadSpeed(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Set(entities.PrefSpeed, "fast"))

	prefs, err := LoadPreferences(repo)
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultPeriodMillis, prefs.PeriodMillis)
}
