package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Data kinds a source can serve.
const (
	KindSchedule = "schedule"
	KindEvents   = "events"
	KindLineup   = "lineup"
	KindBoxscore = "boxscore"
)

// SourcesFile is the on-disk shape of the adapter definitions.
type SourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig describes one upstream site: where its pages live and how
// its tables map onto row fields.
type SourceConfig struct {
	Name       string                 `yaml:"name"`
	Priority   string                 `yaml:"priority"`
	Confidence string                 `yaml:"confidence"`
	URLs       map[string]string      `yaml:"urls"`
	Tables     map[string]TableConfig `yaml:"tables"`
}

// TableConfig is the selector set and column mapping for one data kind.
type TableConfig struct {
	RowSelector  string            `yaml:"row_selector"`
	CellSelector string            `yaml:"cell_selector"`
	SkipRows     int               `yaml:"skip_rows"`
	Columns      map[string]int    `yaml:"columns"`
	Attributes   map[string]string `yaml:"attributes"`
	Coordinates  *CoordinateConfig `yaml:"coordinates"`
}

// CoordinateConfig names the pixel fields and the bounding box of the strike-zone graphic.
type CoordinateConfig struct {
	XField string  `yaml:"x_field"`
	YField string  `yaml:"y_field"`
	Box    BoxSize `yaml:"box"`
}

// BoxSize is the rendered zone box in pixels.
type BoxSize struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// URLFor expands {date}, {gameId} and {index} in the template for kind.
// Values are path-escaped.
func (s SourceConfig) URLFor(kind string, vars map[string]string) (string, bool) {
	tmpl, ok := s.URLs[kind]
	if !ok || tmpl == "" {
		return "", false
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", url.PathEscape(v))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl), true
}

// LoadSources reads and validates the adapter definitions at path.
func LoadSources(path string) ([]SourceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(raw)
}

// ParseSources decodes adapter definitions from YAML.
func ParseSources(raw []byte) ([]SourceConfig, error) {
	var file SourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Sources))
	for i := range file.Sources {
		src := &file.Sources[i]
		src.Name = strings.TrimSpace(src.Name)
		if src.Name == "" {
			return nil, fmt.Errorf("source %d: name is required", i)
		}
		if strings.ContainsAny(src.Name, "/\\") || strings.Contains(src.Name, "..") {
			return nil, fmt.Errorf("source %q: name must not contain path separators", src.Name)
		}
		if _, dup := seen[src.Name]; dup {
			return nil, fmt.Errorf("source %q defined twice", src.Name)
		}
		seen[src.Name] = struct{}{}

		src.Priority = strings.ToLower(strings.TrimSpace(src.Priority))
		switch src.Priority {
		case "":
			src.Priority = "secondary"
		case "primary", "secondary":
		default:
			return nil, fmt.Errorf("source %q: unknown priority %q", src.Name, src.Priority)
		}
		if src.Confidence == "" {
			src.Confidence = "medium"
		}
		for kind, table := range src.Tables {
			if table.RowSelector == "" {
				return nil, fmt.Errorf("source %q table %q: row_selector is required", src.Name, kind)
			}
			if table.CellSelector == "" {
				table.CellSelector = "td"
				src.Tables[kind] = table
			}
		}
	}
	return file.Sources, nil
}
