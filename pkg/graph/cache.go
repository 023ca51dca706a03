package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ryanlack616/howell-brain/pkg/utils"
)

type cacheFile struct {
	GeneratedAt time.Time `json:"generated_at"`
	Relations   []Triple  `json:"relations"`
}

// SaveCache writes the set to path atomically.
func SaveCache(path string, set *RelationSet) error {
	data, err := json.MarshalIndent(cacheFile{
		GeneratedAt: time.Now().UTC(),
		Relations:   set.Triples(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding relations cache: %w", err)
	}

	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing relations cache: %w", err)
	}
	return nil
}

// LoadCache reads a set written by SaveCache along with its generation time.
func LoadCache(path string) (*RelationSet, time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading relations cache: %w", err)
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, time.Time{}, fmt.Errorf("parsing relations cache: %w", err)
	}

	return NewRelationSet(cf.Relations...), cf.GeneratedAt, nil
}
