// Package templates loads and renders report templates.
//
// A template is a YAML or TOML file with a title, optional variables and a
// list of sections whose bodies are Go text/template markdown rendered
// against the current readings. Built-in templates are always available;
// files in .envlog/templates (project) and ~/.config/envlog/templates (user)
// override them by id.
package templates

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/taxilian/envlog/internal/db"
)

// Template defines a report template.
type Template struct {
	ID          string              `json:"id"`
	Title       string              `json:"title" yaml:"title" toml:"title"`
	Description string              `json:"description" yaml:"description" toml:"description"`
	Variables   map[string]Variable `json:"variables,omitempty" yaml:"variables" toml:"variables"`
	Sections    []Section           `json:"sections" yaml:"sections" toml:"sections"`
	SourcePath  string              `json:"sourcePath,omitempty"`
	Hash        string              `json:"hash"`
	Source      string              `json:"source"` // "project", "user", or "builtin"
}

// Variable defines a template variable.
// Variables are required by default. Set optional: true to make them optional.
type Variable struct {
	Description string `json:"description" yaml:"description" toml:"description"`
	Optional    bool   `json:"optional" yaml:"optional" toml:"optional"`
	Default     string `json:"default" yaml:"default" toml:"default"`
}

// Section is one heading of a rendered report.
type Section struct {
	ID    string `json:"id" yaml:"id" toml:"id"`
	Title string `json:"title" yaml:"title" toml:"title"`
	Body  string `json:"body" yaml:"body" toml:"body"`
}

// TemplateLocation represents a directory that may contain templates.
type TemplateLocation struct {
	Path   string
	Source string // "project" or "user"
}

// GetTemplateLocations returns the template directories that exist, most
// local first: project (.envlog/templates, searched upward) then user
// (~/.config/envlog/templates).
func GetTemplateLocations() []TemplateLocation {
	var locations []TemplateLocation

	if localDir, err := findProjectTemplatesDir(); err == nil {
		locations = append(locations, TemplateLocation{Path: localDir, Source: "project"})
	}

	if home, err := os.UserHomeDir(); err == nil {
		userDir := filepath.Join(home, ".config", "envlog", db.TemplatesDir)
		if info, err := os.Stat(userDir); err == nil && info.IsDir() {
			locations = append(locations, TemplateLocation{Path: userDir, Source: "user"})
		}
	}

	return locations
}

// findProjectTemplatesDir returns the templates directory of the nearest project.
func findProjectTemplatesDir() (string, error) {
	p, err := db.FindProject()
	if err != nil {
		return "", err
	}
	dir := p.Templates()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("no templates directory in %s", p.Dir)
	}
	return dir, nil
}

// ListTemplates returns every available template sorted by id. Files
// override built-ins, and more local locations override more global ones.
// Files that fail to parse are skipped.
func ListTemplates() ([]*Template, error) {
	seen := make(map[string]*Template)

	for _, loc := range GetTemplateLocations() {
		_ = filepath.WalkDir(loc.Path, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			id, ok := templateID(d.Name())
			if !ok {
				return nil
			}
			if _, exists := seen[id]; exists {
				return nil
			}
			tmpl, err := loadTemplateFromPath(path, id, loc.Source)
			if err != nil {
				return nil
			}
			seen[id] = tmpl
			return nil
		})
	}

	for _, tmpl := range builtins() {
		if _, exists := seen[tmpl.ID]; !exists {
			seen[tmpl.ID] = tmpl
		}
	}

	result := make([]*Template, 0, len(seen))
	for _, tmpl := range seen {
		result = append(result, tmpl)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// LoadTemplate loads a template by id, searching files first and then the
// built-ins.
func LoadTemplate(id string) (*Template, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("template id is required")
	}

	for _, loc := range GetTemplateLocations() {
		path, err := findTemplatePathInDir(loc.Path, id)
		if err != nil {
			continue
		}
		return loadTemplateFromPath(path, id, loc.Source)
	}

	for _, tmpl := range builtins() {
		if tmpl.ID == id {
			return tmpl, nil
		}
	}

	return nil, fmt.Errorf("template not found: %s", id)
}

func templateID(name string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".yaml" && ext != ".yml" && ext != ".toml" {
		return "", false
	}
	return strings.TrimSuffix(name, filepath.Ext(name)), true
}

func findTemplatePathInDir(dir, id string) (string, error) {
	for _, ext := range []string{".yaml", ".yml", ".toml"} {
		candidate := filepath.Join(dir, id+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	var foundPath string
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fileID, ok := templateID(d.Name()); ok && fileID == id {
			foundPath = path
			return filepath.SkipAll
		}
		return nil
	})

	if foundPath != "" {
		return foundPath, nil
	}
	return "", fmt.Errorf("template not found: %s", id)
}

func loadTemplateFromPath(path, id, source string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	tmpl, err := parseTemplate(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, err
	}
	tmpl.ID = id
	tmpl.SourcePath = path
	tmpl.Source = source
	return tmpl, nil
}

// parseTemplate decodes and validates template data in the format named by ext.
func parseTemplate(data []byte, ext string) (*Template, error) {
	var tmpl Template
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			return nil, fmt.Errorf("failed to parse yaml template: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &tmpl); err != nil {
			return nil, fmt.Errorf("failed to parse toml template: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported template extension: %s", ext)
	}

	if len(tmpl.Sections) == 0 {
		return nil, fmt.Errorf("template has no sections")
	}

	seen := map[string]bool{}
	for i, s := range tmpl.Sections {
		if s.ID == "" {
			continue
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate section id: %s", s.ID)
		}
		seen[s.ID] = true
		// Catch syntax errors at load time rather than at render time.
		if _, err := template.New(s.ID).Funcs(templateFuncs).Parse(s.Body); err != nil {
			return nil, fmt.Errorf("section %d (%s): %w", i+1, s.ID, err)
		}
	}

	hash := sha256.Sum256(data)
	tmpl.Hash = hex.EncodeToString(hash[:])
	if tmpl.Variables == nil {
		tmpl.Variables = map[string]Variable{}
	}
	return &tmpl, nil
}

// ShortHash is the first 12 hex digits of the template hash.
func (t *Template) ShortHash() string {
	if len(t.Hash) <= 12 {
		return t.Hash
	}
	return t.Hash[:12]
}

// ResolveVars applies defaults to provided and reports required variables
// that are still missing. Unknown variables are rejected.
func (t *Template) ResolveVars(provided map[string]string) (map[string]string, error) {
	vars := make(map[string]string, len(t.Variables))
	for name := range provided {
		if _, ok := t.Variables[name]; !ok {
			return nil, fmt.Errorf("unknown variable %q for template %s", name, t.ID)
		}
	}

	var missing []string
	for name, v := range t.Variables {
		val := strings.TrimSpace(provided[name])
		if val == "" {
			val = v.Default
		}
		if val == "" && !v.Optional {
			missing = append(missing, name)
		}
		vars[name] = val
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required variables: %s", strings.Join(missing, ", "))
	}
	return vars, nil
}

// Render produces the markdown report for data.
func (t *Template) Render(data Data) (string, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", renderInline(t.Title, data))
	if t.Description != "" {
		fmt.Fprintf(&buf, "%s\n\n", renderInline(t.Description, data))
	}
	for i, s := range t.Sections {
		name := s.ID
		if name == "" {
			name = fmt.Sprintf("section-%d", i+1)
		}
		tpl, err := template.New(name).Funcs(templateFuncs).Parse(s.Body)
		if err != nil {
			return "", fmt.Errorf("section %s: %w", name, err)
		}
		if s.Title != "" {
			fmt.Fprintf(&buf, "## %s\n\n", renderInline(s.Title, data))
		}
		if err := tpl.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("section %s: %w", name, err)
		}
		buf.WriteString("\n\n")
	}
	return strings.TrimRight(buf.String(), "\n") + "\n", nil
}

// renderInline renders short fields like titles; on any template error the
// text is returned unchanged.
func renderInline(input string, data Data) string {
	tpl, err := template.New("").Funcs(templateFuncs).Parse(input)
	if err != nil {
		return input
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return input
	}
	return buf.String()
}
