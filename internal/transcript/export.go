package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Exporter writes a transcript in one format
type Exporter interface {
	Export(t Transcript, w io.Writer) error
	Extension() string
}

// NewExporter creates an exporter for format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	case "yaml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: md, json, yaml)", format)
	}
}

// MarkdownExporter renders a readable conversation
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(t Transcript, w io.Writer) error {
	title := t.Title
	if title == "" {
		title = t.ID
	}
	if _, err := fmt.Fprintf(w, "# %s\n\n", oneLine(title)); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "**Transcript:** %s  \n", t.ID)
	if !t.UpdatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Updated:** %s  \n", t.UpdatedAt.Format("2006-01-02 15:04"))
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n---\n\n", len(t.Messages))

	for i, m := range t.Messages {
		speaker := "You"
		if m.Role != "user" {
			speaker = "Assistant"
		}
		if _, err := fmt.Fprintf(w, "**%s:**\n\n%s\n\n", speaker, m.Content); err != nil {
			return err
		}
		if i < len(t.Messages)-1 {
			_, _ = fmt.Fprint(w, "---\n\n")
		}
	}
	return nil
}

func (e *MarkdownExporter) Extension() string { return "md" }

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) > 80 {
		return string([]rune(s)[:77]) + "..."
	}
	return s
}

// JSONExporter writes indented JSON
type JSONExporter struct{}

func (e *JSONExporter) Export(t Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

func (e *JSONExporter) Extension() string { return "json" }

// YAMLExporter writes YAML
type YAMLExporter struct{}

func (e *YAMLExporter) Export(t Transcript, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()
	return enc.Encode(t)
}

func (e *YAMLExporter) Extension() string { return "yaml" }
