package dataprocessing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	apperrors "staats/internal/errors"
	"staats/internal/pipeline"
)

// ProjectFormat identifies a project file encoding
type ProjectFormat string

const (
	FormatJSON     ProjectFormat = "json"
	FormatYAML     ProjectFormat = "yaml"
	FormatWorkbook ProjectFormat = "xlsx"
)

// FormatOf infers the project format from a file extension
func FormatOf(path string) (ProjectFormat, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".xlsx", ".xlsm":
		return FormatWorkbook, nil
	default:
		return "", apperrors.NewConfigError(fmt.Sprintf("unsupported project file extension %q", ext), nil)
	}
}

// LoadProject reads a project from JSON, YAML or a configuration workbook.
// Issues are only produced by workbooks, whose unreadable rows are skipped.
func LoadProject(path string) (*pipeline.Project, apperrors.Issues, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, nil, err
	}
	if format == FormatWorkbook {
		return ReadConfigWorkbook(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, apperrors.NewStorageError("read project file", err)
	}
	p, err := DecodeProject(bytes.NewReader(data), format)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil, nil
}

// DecodeProject decodes a JSON or YAML project. Unknown fields are rejected.
func DecodeProject(r io.Reader, format ProjectFormat) (*pipeline.Project, error) {
	var p pipeline.Project
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, apperrors.NewParseError("decode JSON project", err)
		}
	case FormatYAML:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, apperrors.NewStorageError("read YAML project", err)
		}
		if err := yaml.UnmarshalStrict(data, &p); err != nil {
			return nil, apperrors.NewParseError("decode YAML project", err)
		}
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("cannot decode %s project from a stream", format), nil)
	}
	return &p, nil
}

// SaveProject writes a project in the format implied by the extension
func SaveProject(p *pipeline.Project, path string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.NewStorageError("create output directory", err)
		}
	}

	var data []byte
	switch format {
	case FormatWorkbook:
		return WriteConfigWorkbook(p, path)
	case FormatJSON:
		data, err = json.MarshalIndent(p, "", "  ")
		data = append(data, '\n')
	case FormatYAML:
		data, err = yaml.Marshal(p)
	}
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("encode %s project", format), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.NewStorageError("write project file", err)
	}
	return nil
}
