package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/pders01/feedscout/internal/dedupe"
)

// feedFile is the on-disk layout of an exported collection.
type feedFile struct {
	Feeds []dedupe.Feed `json:"feeds" yaml:"feeds" toml:"feeds"`
}

type codec struct {
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

func codecFor(path string) (codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return codec{yaml.Marshal, yaml.Unmarshal}, nil
	case ".toml":
		return codec{toml.Marshal, toml.Unmarshal}, nil
	case ".json":
		return codec{func(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }, json.Unmarshal}, nil
	}
	return codec{}, fmt.Errorf("unsupported feed file %q: use .yaml, .toml or .json", path)
}

func readFeedFile(path string) ([]dedupe.Feed, error) {
	c, err := codecFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading feed file: %w", err)
	}
	var f feedFile
	if err := c.unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i := range f.Feeds {
		if f.Feeds[i].ID == "" {
			f.Feeds[i].ID = fmt.Sprintf("%d", i+1)
		}
	}
	return f.Feeds, nil
}

func writeFeedFile(path string, feeds []dedupe.Feed) error {
	c, err := codecFor(path)
	if err != nil {
		return err
	}
	data, err := c.marshal(feedFile{Feeds: feeds})
	if err != nil {
		return fmt.Errorf("encoding feed file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
