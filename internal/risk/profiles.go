package risk

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProfilePack holds per-resource SLA threshold overrides loaded from a YAML
// pack. Fleets rarely share one threshold set: GPU nodes tolerate hot CPUs,
// databases do not.
type ProfilePack struct {
	profiles []Profile
	logger   *slog.Logger
}

// Profile maps a resource-id match to threshold overrides. Zero-valued
// threshold fields keep the scorer's defaults.
type Profile struct {
	ID    string `yaml:"id"`
	Match struct {
		ResourcePrefix string `yaml:"resourcePrefix"`
	} `yaml:"match"`
	Thresholds struct {
		CPU    float64 `yaml:"cpu"`
		Memory float64 `yaml:"memory"`
		GPU    float64 `yaml:"gpu"`
	} `yaml:"thresholds"`
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles reads a threshold profile pack. A missing file is not an error:
// the scorer simply runs with its configured defaults.
func LoadProfiles(path string, logger *slog.Logger) (*ProfilePack, error) {
	if path == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("threshold profile pack not found, using defaults", slog.String("path", path))
			return nil, nil
		}
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if len(file.Profiles) == 0 {
		return nil, nil
	}

	logger.Info("loaded threshold profiles", slog.Int("count", len(file.Profiles)), slog.String("path", path))
	return &ProfilePack{profiles: file.Profiles, logger: logger}, nil
}

// Lookup returns the thresholds for resourceID, applying the first matching
// profile's overrides on top of base.
func (p *ProfilePack) Lookup(resourceID string, base Thresholds) Thresholds {
	if p == nil {
		return base
	}
	for _, profile := range p.profiles {
		prefix := profile.Match.ResourcePrefix
		if prefix == "" || !strings.HasPrefix(resourceID, prefix) {
			continue
		}
		if profile.Thresholds.CPU > 0 {
			base.CPU = profile.Thresholds.CPU
		}
		if profile.Thresholds.Memory > 0 {
			base.Memory = profile.Thresholds.Memory
		}
		if profile.Thresholds.GPU > 0 {
			base.GPU = profile.Thresholds.GPU
		}
		return base
	}
	return base
}
