package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Batch is a list of identifiers read from a file.
type Batch struct {
	IDs  []string `yaml:"ids"`
	Dest string   `yaml:"dest,omitempty"`
}

// ReadBatchFile reads a batch from path. Files ending in .yaml or .yml are
// parsed as YAML; anything else as plain text.
func ReadBatchFile(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAMLBatch(data)
	default:
		return ParseTextBatch(string(data))
	}
}

// ParseYAMLBatch parses a document of the form
//
//	ids: [abc123, https://youtu.be/xyz]
//	dest: downloads
func ParseYAMLBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse yaml batch: %w", err)
	}
	ids := make([]string, 0, len(b.IDs))
	for _, id := range b.IDs {
		ids = append(ids, ExtractVideoID(id))
	}
	b.IDs = ids
	return &b, nil
}

// ParseTextBatch parses plain text identifiers. An optional YAML
// frontmatter block may set the destination:
//
//	---
//	dest: stems
//	---
//	abc123
//	def456
func ParseTextBatch(content string) (*Batch, error) {
	b := &Batch{}

	remaining := content
	if strings.HasPrefix(content, "---\n") {
		endIdx := strings.Index(content[4:], "\n---")
		if endIdx >= 0 {
			frontmatter := content[4 : 4+endIdx]
			remaining = strings.TrimPrefix(content[4+endIdx+4:], "\n")

			var fm Batch
			if err := yaml.Unmarshal([]byte(frontmatter), &fm); err != nil {
				return nil, fmt.Errorf("parse batch frontmatter: %w", err)
			}
			b.Dest = fm.Dest
			for _, id := range fm.IDs {
				b.IDs = append(b.IDs, ExtractVideoID(id))
			}
		}
	}

	b.IDs = append(b.IDs, SplitIdentifiers(remaining)...)
	return b, nil
}
