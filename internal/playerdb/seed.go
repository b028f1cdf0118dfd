package playerdb

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout of a seed fixture:
//
//	players:
//	  - xuid: 2535416409920839
//	    uuid: 1c9a2a8e-3f5b-4a9e-9e55-0b7f4a4b9c10
//	    name: Steve
type seedFile struct {
	Players []OfflinePlayerEntry `yaml:"players"`
}

// Seed loads offline players from a YAML file into store and returns how many were
// written.
func Seed(ctx context.Context, store OfflineStore, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parse seed %s: %w", path, err)
	}
	for i, p := range seed.Players {
		if p.XUID == 0 || p.Name == "" {
			return i, fmt.Errorf("seed %s: player %d needs xuid and name", path, i)
		}
		if err := store.Upsert(ctx, p); err != nil {
			return i, fmt.Errorf("seed %s: player %d: %w", path, i, err)
		}
	}
	return len(seed.Players), nil
}
