// Package planfile reads execution plans from disk and writes result
// documents next to them.
package planfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/petrijr/keycase/pkg/api"
)

// Format is the encoding of a plan document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrEmptyPlan = errors.New("plan document is empty")

// FormatOf picks the format from the file extension. Anything that is not
// .yaml or .yml is read as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and decodes the plan stored at path.
func Load(path string) (*api.ExecutionPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	plan, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return plan, nil
}

// Parse decodes a plan document.
func Parse(data []byte, format Format) (*api.ExecutionPlan, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyPlan
	}

	var plan api.ExecutionPlan
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &plan); err != nil {
			return nil, fmt.Errorf("decode yaml plan: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &plan); err != nil {
			return nil, fmt.Errorf("decode json plan: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported plan format %q", format)
	}
	return &plan, nil
}

// ResultPath returns "<dir>/<stem>_results.json" for planPath. An empty dir
// means the current directory.
func ResultPath(planPath, dir string) string {
	base := filepath.Base(planPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+"_results.json")
}

// WriteResult stores res as an indented {"result": ...} document.
func WriteResult(path string, res *api.RunResult) error {
	data, err := json.MarshalIndent(api.ResultDocument{Result: res}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadResult loads a document written by WriteResult.
func ReadResult(path string) (*api.RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc api.ResultDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return doc.Result, nil
}
