package service

import (
	"fmt"
	"os"
	"time"

	"brokerage_backend/internal/workflow/catalog"

	"gopkg.in/yaml.v3"
)

// Thresholds holds the tunables for the insight scanner. Stage-level SLA
// values default to the catalog's SLAMaxAge and can be overridden per stage
// from a YAML file, so operations can tighten or relax SLAs without a deploy.
type Thresholds struct {
	Idle time.Duration
	sla  map[catalog.Kind]map[catalog.Stage]time.Duration
}

type thresholdsFile struct {
	Idle string                       `yaml:"idle"`
	SLA  map[string]map[string]string `yaml:"sla"`
}

// LoadThresholds builds the scanner thresholds from config and an optional
// YAML override file. A missing file is not an error; a malformed one is.
func LoadThresholds(path string, idleDefault time.Duration) (*Thresholds, error) {
	t := &Thresholds{
		Idle: idleDefault,
		sla:  make(map[catalog.Kind]map[catalog.Stage]time.Duration),
	}

	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("read thresholds file: %w", err)
	}

	var file thresholdsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse thresholds file: %w", err)
	}

	if file.Idle != "" {
		d, err := time.ParseDuration(file.Idle)
		if err != nil {
			return nil, fmt.Errorf("thresholds file: idle: %w", err)
		}
		t.Idle = d
	}

	for kind, stages := range file.SLA {
		k := catalog.Kind(kind)
		if k != catalog.KindQuote && k != catalog.KindClaim {
			return nil, fmt.Errorf("thresholds file: unknown workflow kind %q", kind)
		}
		for stage, raw := range stages {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("thresholds file: sla.%s.%s: %w", kind, stage, err)
			}
			if t.sla[k] == nil {
				t.sla[k] = make(map[catalog.Stage]time.Duration)
			}
			t.sla[k][catalog.Stage(stage)] = d
		}
	}

	return t, nil
}

// SLAFor returns the SLA for a stage: the file override if present, otherwise
// the catalog default. Zero means no SLA applies to the stage.
func (t *Thresholds) SLAFor(kind catalog.Kind, def catalog.StageDefinition) time.Duration {
	if byStage, ok := t.sla[kind]; ok {
		if d, ok := byStage[def.Stage]; ok {
			return d
		}
	}
	return def.SLAMaxAge
}
