// Package weights loads the scoring weight configuration: a YAML document
// mapping every event tag and tape metric to its coefficient, plus the
// minimum-score admission threshold. Environment variables override single
// entries after the base file is read.
package weights

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/wonny/kabupicks/internal/scoring"
	"github.com/wonny/kabupicks/pkg/logger"
)

// ErrNotFound is returned when no weight configuration file exists on the
// search path.
var ErrNotFound = errors.New("weight configuration not found")

// ValidationError is a schema violation in the loaded document.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// document mirrors the YAML layout of config/weights.yaml.
type document struct {
	Event map[string]float64 `yaml:"event"`
	Tape  struct {
		VolumeZ           float64 `yaml:"volume_z"`
		GapPct            float64 `yaml:"gap_pct"`
		SupplyDemandProxy float64 `yaml:"supply_demand_proxy"`
	} `yaml:"tape"`
	MinScore float64 `yaml:"min_score"`
}

// envOverrides maps override variables onto config entries. Values that do
// not parse as numbers are logged and skipped.
var eventEnvKeys = map[scoring.Tag]string{
	scoring.TagGuideUp:          "WEIGHT_EVENT_GUIDE_UP",
	scoring.TagEarningsPositive: "WEIGHT_EVENT_EARNINGS_POSITIVE",
	scoring.TagTdnet:            "WEIGHT_EVENT_TDNET",
	scoring.TagVolSpike:         "WEIGHT_EVENT_VOL_SPIKE",
	scoring.TagNewsPos:          "WEIGHT_EVENT_NEWS_POS",
	scoring.TagNewsNeu:          "WEIGHT_EVENT_NEWS_NEU",
	scoring.TagNewsNeg:          "WEIGHT_EVENT_NEWS_NEG",
}

// Load reads the weight configuration. When path is empty the search order
// is WEIGHT_CONFIG_PATH, ./config/weights.yaml, then the same file in the
// two parent directories.
func Load(path string, log *logger.Logger) (*scoring.WeightConfig, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", resolved, err)
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // unknown top-level fields are typos, fail fast
	if err := dec.Decode(&doc); err != nil {
		return nil, ValidationError{Field: "weights", Message: err.Error()}
	}

	cfg, err := fromDocument(&doc)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg, log)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"path":      resolved,
		"min_score": cfg.MinScore,
	}).Debug("Weight configuration loaded")

	return cfg, nil
}

func resolvePath(explicit string) (string, error) {
	candidates := make([]string, 0, 5)
	if explicit != "" {
		candidates = append(candidates, explicit)
	}
	if envPath := os.Getenv("WEIGHT_CONFIG_PATH"); envPath != "" {
		candidates = append(candidates, envPath)
	}
	candidates = append(candidates,
		filepath.Join("config", "weights.yaml"),
		filepath.Join("..", "config", "weights.yaml"),
		filepath.Join("..", "..", "config", "weights.yaml"),
	)

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: looked in %v", ErrNotFound, candidates)
}

func fromDocument(doc *document) (*scoring.WeightConfig, error) {
	event := make(map[scoring.Tag]float64, len(scoring.AllTags))
	for _, tag := range scoring.AllTags {
		weight, ok := doc.Event[string(tag)]
		if !ok {
			return nil, ValidationError{
				Field:   "event." + string(tag),
				Message: "required",
			}
		}
		event[tag] = weight
	}
	for key := range doc.Event {
		if _, ok := event[scoring.Tag(key)]; !ok {
			return nil, ValidationError{
				Field:   "event." + key,
				Message: "unknown event tag",
			}
		}
	}

	return &scoring.WeightConfig{
		Event: event,
		Tape: scoring.TapeWeights{
			VolumeZ:           doc.Tape.VolumeZ,
			GapPct:            doc.Tape.GapPct,
			SupplyDemandProxy: doc.Tape.SupplyDemandProxy,
		},
		MinScore: doc.MinScore,
	}, nil
}

func applyEnvOverrides(cfg *scoring.WeightConfig, log *logger.Logger) {
	for tag, envKey := range eventEnvKeys {
		if value, ok := parseEnvFloat(envKey, log); ok {
			cfg.Event[tag] = value
		}
	}
	if value, ok := parseEnvFloat("WEIGHT_TAPE_VOLUME_Z", log); ok {
		cfg.Tape.VolumeZ = value
	}
	if value, ok := parseEnvFloat("WEIGHT_TAPE_GAP_PCT", log); ok {
		cfg.Tape.GapPct = value
	}
	if value, ok := parseEnvFloat("WEIGHT_TAPE_SUPPLY_DEMAND", log); ok {
		cfg.Tape.SupplyDemandProxy = value
	}
	if value, ok := parseEnvFloat("MIN_SCORE", log); ok {
		cfg.MinScore = value
	}
}

func parseEnvFloat(key string, log *logger.Logger) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"env":   key,
			"value": raw,
		}).Warn("Ignoring unparsable weight override")
		return 0, false
	}
	return value, true
}

func validate(cfg *scoring.WeightConfig) error {
	for tag, weight := range cfg.Event {
		if weight < 0 {
			return ValidationError{
				Field:   "event." + string(tag),
				Message: "must be >= 0",
			}
		}
	}
	if cfg.Tape.VolumeZ < 0 {
		return ValidationError{Field: "tape.volume_z", Message: "must be >= 0"}
	}
	if cfg.Tape.GapPct < 0 {
		return ValidationError{Field: "tape.gap_pct", Message: "must be >= 0"}
	}
	if cfg.Tape.SupplyDemandProxy < 0 {
		return ValidationError{Field: "tape.supply_demand_proxy", Message: "must be >= 0"}
	}
	if cfg.MinScore < 0 || cfg.MinScore > 100 {
		return ValidationError{Field: "min_score", Message: "must be in [0,100]"}
	}
	return nil
}
