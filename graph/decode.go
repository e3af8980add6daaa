package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/referralmesh/core"
	"gopkg.in/yaml.v3"
)

// Format selects the document encoding.
type Format int

const (
	// FormatAuto treats documents starting with '[' or '{' as JSON and
	// everything else as YAML.
	FormatAuto Format = iota
	FormatJSON
	FormatYAML
)

// String returns the lower-case format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "auto"
	}
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatAuto
	}
}

// Decode parses doc into node specs, preserving document order. Null or empty
// documents and syntax errors are reported as *core.ValidationError. Node
// contents are not validated here; network.Registry.Load does that.
func Decode(doc []byte, format Format) ([]core.NodeSpec, error) {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 {
		return nil, &core.ValidationError{Field: "document", Err: core.ErrEmptyGraph}
	}
	if format == FormatAuto {
		format = FormatYAML
		if trimmed[0] == '[' || trimmed[0] == '{' {
			format = FormatJSON
		}
	}

	var (
		nodes []core.NodeSpec
		err   error
	)
	switch format {
	case FormatJSON:
		err = json.Unmarshal(trimmed, &nodes)
	case FormatYAML:
		err = yaml.Unmarshal(trimmed, &nodes)
	default:
		return nil, fmt.Errorf("unknown graph format %d", format)
	}
	if err != nil {
		return nil, &core.ValidationError{Field: "document", Reason: fmt.Sprintf("malformed %s: %v", format, err), Err: err}
	}
	if nodes == nil {
		return nil, &core.ValidationError{Field: "document", Err: core.ErrEmptyGraph}
	}
	return nodes, nil
}

// ReadFile loads and decodes a graph document, choosing the format from the
// file extension.
func ReadFile(path string) ([]core.NodeSpec, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	return Decode(doc, FormatFromPath(path))
}

// Encode renders nodes in the given format. FormatAuto encodes JSON.
func Encode(nodes []core.NodeSpec, format Format) ([]byte, error) {
	if format == FormatYAML {
		return yaml.Marshal(nodes)
	}
	return json.MarshalIndent(nodes, "", "  ")
}
