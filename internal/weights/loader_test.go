package weights

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kabupicks/internal/scoring"
	"github.com/wonny/kabupicks/pkg/logger"
)

const validYAML = `event:
  GUIDE_UP: 1.0
  EARNINGS_POSITIVE: 0.8
  TDNET: 0.5
  VOL_SPIKE: 0.6
  NEWS_POS: 0.7
  NEWS_NEU: 0.2
  NEWS_NEG: 0.1
tape:
  volume_z: 0.4
  gap_pct: 0.3
  supply_demand_proxy: 0.3
min_score: 60
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WEIGHT_CONFIG_PATH",
		"WEIGHT_EVENT_GUIDE_UP", "WEIGHT_EVENT_EARNINGS_POSITIVE",
		"WEIGHT_EVENT_TDNET", "WEIGHT_EVENT_VOL_SPIKE",
		"WEIGHT_EVENT_NEWS_POS", "WEIGHT_EVENT_NEWS_NEU", "WEIGHT_EVENT_NEWS_NEG",
		"WEIGHT_TAPE_VOLUME_Z", "WEIGHT_TAPE_GAP_PCT", "WEIGHT_TAPE_SUPPLY_DEMAND",
		"MIN_SCORE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	clearOverrides(t)
	path := writeConfig(t, validYAML)

	cfg, err := Load(path, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1.0, cfg.Event[scoring.TagGuideUp])
	assert.Equal(t, 0.1, cfg.Event[scoring.TagNewsNeg])
	assert.Equal(t, 0.4, cfg.Tape.VolumeZ)
	assert.Equal(t, 60.0, cfg.MinScore)
	assert.Len(t, cfg.Event, len(scoring.AllTags))
}

func TestLoadNotFound(t *testing.T) {
	clearOverrides(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = Load("", logger.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadEnvOverrides(t *testing.T) {
	clearOverrides(t)
	path := writeConfig(t, validYAML)

	t.Setenv("WEIGHT_EVENT_GUIDE_UP", "2.5")
	t.Setenv("WEIGHT_TAPE_SUPPLY_DEMAND", "0.9")
	t.Setenv("MIN_SCORE", "75")

	cfg, err := Load(path, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 2.5, cfg.Event[scoring.TagGuideUp])
	assert.Equal(t, 0.9, cfg.Tape.SupplyDemandProxy)
	assert.Equal(t, 75.0, cfg.MinScore)
}

func TestLoadIgnoresUnparsableOverride(t *testing.T) {
	clearOverrides(t)
	path := writeConfig(t, validYAML)

	t.Setenv("WEIGHT_EVENT_TDNET", "half")

	cfg, err := Load(path, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Event[scoring.TagTdnet], "bad override keeps base value")
}

func TestLoadRejectsInvalidSchema(t *testing.T) {
	clearOverrides(t)

	tests := []struct {
		name      string
		envKey    string
		envVal    string
		wantField string
	}{
		{
			name:      "negative event weight",
			envKey:    "WEIGHT_EVENT_NEWS_POS",
			envVal:    "-1",
			wantField: "event.NEWS_POS",
		},
		{
			name:      "min score above range",
			envKey:    "MIN_SCORE",
			envVal:    "150",
			wantField: "min_score",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, validYAML)
			t.Setenv(tt.envKey, tt.envVal)

			_, err := Load(path, logger.NewNop())
			require.Error(t, err)

			var verr ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestLoadRejectsMissingTag(t *testing.T) {
	clearOverrides(t)
	yamlMissing := `event:
  GUIDE_UP: 1.0
tape:
  volume_z: 0.4
  gap_pct: 0.3
  supply_demand_proxy: 0.3
min_score: 60
`
	path := writeConfig(t, yamlMissing)

	_, err := Load(path, logger.NewNop())
	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "required", verr.Message)
}

func TestLoadRejectsUnknownTag(t *testing.T) {
	clearOverrides(t)
	path := writeConfig(t, strings.Replace(validYAML, "event:\n", "event:\n  MERGER: 0.5\n", 1))

	_, err := Load(path, logger.NewNop())
	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "event.MERGER", verr.Field)
}

func TestStoreCachesAndRefreshes(t *testing.T) {
	clearOverrides(t)
	path := writeConfig(t, validYAML)

	store := NewStore(path, logger.NewNop())

	first, err := store.Get()
	require.NoError(t, err)

	second, err := store.Get()
	require.NoError(t, err)
	assert.Same(t, first, second, "Get returns the cached instance")

	refreshed, err := store.Refresh()
	require.NoError(t, err)
	assert.NotSame(t, first, refreshed, "Refresh builds a new immutable instance")
	assert.Equal(t, first.MinScore, refreshed.MinScore)

	// The old pointer is untouched by the refresh.
	assert.Equal(t, 1.0, first.Event[scoring.TagGuideUp])
}
