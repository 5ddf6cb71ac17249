package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/animenews/internal/news"
)

// SourcesConfig is the YAML layout of the sources file:
//
//	sources:
//	  - name: Anime News Network
//	    url: https://www.animenewsnetwork.com/all/rss.xml
//	    strategy: feed
//	keywords:
//	  allow: [anime, trailer]
//	  deny: [live-action]
//	overrides:
//	  - name: crunchyroll
//	    url_contains: crunchyroll
type SourcesConfig struct {
	Sources []struct {
		Name     string `yaml:"name"`
		URL      string `yaml:"url"`
		Strategy string `yaml:"strategy"`
	} `yaml:"sources"`
	Keywords struct {
		Allow []string `yaml:"allow"`
		Deny  []string `yaml:"deny"`
	} `yaml:"keywords"`
	Overrides []struct {
		Name        string `yaml:"name"`
		URLContains string `yaml:"url_contains"`
	} `yaml:"overrides"`
}

// SourcesFile is the resolved content of the sources file.
type SourcesFile struct {
	Sources   []news.Source
	Allow     []string
	Deny      []string
	Overrides []news.Override
}

// LoadSources reads and validates the sources file.
func LoadSources(path string) (*SourcesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return ParseSources(data)
}

// ParseSources decodes a sources document. Missing keyword lists fall back to
// the package news defaults.
func ParseSources(data []byte) (*SourcesFile, error) {
	var raw SourcesConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	out := &SourcesFile{
		Allow: raw.Keywords.Allow,
		Deny:  raw.Keywords.Deny,
	}
	if len(out.Allow) == 0 {
		out.Allow = news.DefaultAllowKeywords
	}
	if len(out.Deny) == 0 {
		out.Deny = news.DefaultDenyKeywords
	}

	seen := make(map[string]bool)
	for i, s := range raw.Sources {
		url := strings.TrimSpace(s.URL)
		if url == "" {
			return nil, fmt.Errorf("sources[%d]: url is required", i)
		}
		if seen[url] {
			return nil, fmt.Errorf("sources[%d]: duplicate url %s", i, url)
		}
		seen[url] = true

		strategy, err := news.ParseStrategy(s.Strategy)
		if err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		name := strings.TrimSpace(s.Name)
		if name == "" {
			name = url
		}
		out.Sources = append(out.Sources, news.Source{Name: name, URL: url, Strategy: strategy})
	}
	if len(out.Sources) == 0 {
		return nil, errors.New("sources: at least one source must be configured")
	}

	for i, o := range raw.Overrides {
		if strings.TrimSpace(o.URLContains) == "" {
			return nil, fmt.Errorf("overrides[%d]: url_contains is required", i)
		}
		out.Overrides = append(out.Overrides, news.Override{Name: o.Name, URLContains: o.URLContains})
	}

	return out, nil
}
