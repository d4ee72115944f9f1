package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phuslu/log"
	"gopkg.in/yaml.v3"

	"github.com/seenimoa/finpress/pkg/models"
)

// Default paths of the prepare tool.
const (
	DefaultInputFile  = "input.json"
	DefaultOutputFile = "prepared_output.json"
)

// Load reads a single object from path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("formatter: read %s: %w", path, err)
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
	}
	return raw, nil
}

// Prepare formats the object in inputPath and writes it to outputPath as
// 4-space indented JSON. Empty paths fall back to the defaults.
func Prepare(inputPath, outputPath string) (*models.ArticleInput, error) {
	if inputPath == "" {
		inputPath = DefaultInputFile
	}
	if outputPath == "" {
		outputPath = DefaultOutputFile
	}

	raw, err := Load(inputPath)
	if err != nil {
		return nil, err
	}
	in, err := Format(raw)
	if err != nil {
		return nil, err
	}

	data, err := Marshal(in)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("formatter: write %s: %w", outputPath, err)
	}

	log.Info().Str("input", inputPath).Str("output", outputPath).Str("company", in.CompanyName).Msg("prepared article input")
	return in, nil
}

// Marshal encodes v as 4-space indented JSON without HTML escaping.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("formatter: encode: %w", err)
	}
	return buf.Bytes(), nil
}
