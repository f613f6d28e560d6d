package formula

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
)

// Format is a formula file encoding.
type Format string

const (
	FormatLua  Format = "lua"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// Extensions lists the file extensions recognized by FormatFromPath, in the
// order a registry probes them.
var Extensions = []string{".lua", ".yaml", ".yml", ".toml", ".json", ".jsonc"}

// FormatFromPath picks a Format by file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lua":
		return FormatLua, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json", ".jsonc":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unrecognized formula file extension: %s", path)
}

// Decode parses data in the given format. Unknown fields are rejected in
// the structured formats.
func Decode(ctx context.Context, format Format, data []byte) (*Document, error) {
	if len(data) > MaxFormulaSize {
		return nil, &ParseError{Message: "formula too large", Detail: fmt.Sprintf("%d bytes exceeds %d", len(data), MaxFormulaSize)}
	}

	var doc Document
	switch format {
	case FormatLua:
		return DecodeLua(ctx, string(data))

	case FormatYAML:
		if err := yaml.UnmarshalWithOptions(data, &doc, yaml.DisallowUnknownField()); err != nil {
			return nil, &ParseError{Message: "YAML error", Detail: err.Error()}
		}

	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, &ParseError{Message: "TOML error", Detail: err.Error()}
		}

	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, &ParseError{Message: "JSON error", Detail: err.Error()}
		}

	default:
		return nil, fmt.Errorf("unsupported formula format %q", format)
	}

	return &doc, nil
}

// Parse decodes and builds a formula in one step.
func Parse(ctx context.Context, format Format, data []byte) (*Formula, error) {
	doc, err := Decode(ctx, format, data)
	if err != nil {
		return nil, err
	}
	return doc.Build()
}
