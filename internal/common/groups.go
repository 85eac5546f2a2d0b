package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/metior/internal/models"
)

// LoadGroups reads every threshold-group YAML file from dir. File name order
// is not significant; groups are returned sorted by name. A group file looks
// like:
//
//	name: "3000w"
//	cutoff_value: 30000000
//	instruments:
//	  - "510050.SH"
//	  - "159915.SZ"
func LoadGroups(dir string) ([]models.ThresholdGroup, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read groups directory %s: %w", dir, err)
	}

	var groups []models.ThresholdGroup
	seen := map[string]string{}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read group file %s: %w", path, err)
		}

		var group models.ThresholdGroup
		if err := yaml.Unmarshal(data, &group); err != nil {
			return nil, fmt.Errorf("failed to parse group file %s: %w", path, err)
		}
		if group.Name == "" {
			return nil, fmt.Errorf("group file %s: missing name", path)
		}
		if prev, dup := seen[group.Name]; dup {
			return nil, fmt.Errorf("group %q defined in both %s and %s", group.Name, prev, path)
		}
		seen[group.Name] = path
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}
