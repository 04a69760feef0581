package packaging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/utils"
)

var ErrNoManifest = errors.New("no extension manifest")

// ManifestFiles lists recognized manifest names in lookup order
var ManifestFiles = []string{
	"extension.json",
	"extension.yaml",
	"extension.yml",
	"extension.toml",
	"package.json",
}

// Manifest is the package metadata an extension ships with
type Manifest struct {
	ID          string `json:"id" yaml:"id" toml:"id"`
	Name        string `json:"name" yaml:"name" toml:"name"`
	DisplayName string `json:"displayName" yaml:"displayName" toml:"displayName"`
	Version     string `json:"version" yaml:"version" toml:"version"`
	Description string `json:"description" yaml:"description" toml:"description"`
	Author      Author `json:"author" yaml:"author" toml:"author"`
	Icon        string `json:"icon" yaml:"icon" toml:"icon"`
	Main        string `json:"main" yaml:"main" toml:"main"`

	file string
}

// Author accepts both "Jane <jane@x>" and {"name": "Jane"} forms
type Author struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Email string `json:"email" yaml:"email" toml:"email"`
}

// UnmarshalJSON accepts a string or an object
func (a *Author) UnmarshalJSON(data []byte) error {
	var s string
	if err := sonic.Unmarshal(data, &s); err == nil {
		a.Name = s
		return nil
	}
	type plain Author
	return sonic.Unmarshal(data, (*plain)(a))
}

// UnmarshalYAML accepts a string or a mapping
func (a *Author) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		a.Name = v
	case map[string]interface{}:
		a.Name, _ = v["name"].(string)
		a.Email, _ = v["email"].(string)
	}
	return nil
}

// UnmarshalText handles the string form in TOML
func (a *Author) UnmarshalText(text []byte) error {
	a.Name = string(text)
	return nil
}

// File returns the manifest file name the manifest was read from
func (m *Manifest) File() string {
	return m.file
}

// ExtensionID returns the declared id, falling back to the package name
func (m *Manifest) ExtensionID() string {
	if m.ID != "" {
		return m.ID
	}
	return m.Name
}

// Title returns the human readable name
func (m *Manifest) Title() string {
	switch {
	case m.DisplayName != "":
		return m.DisplayName
	case m.Name != "":
		return m.Name
	}
	return m.ID
}

// Validate checks field limits
func (m *Manifest) Validate() error {
	if m.ExtensionID() == "" {
		return fmt.Errorf("%s: id or name required", m.file)
	}
	if err := utils.ValidateName(m.Title(), "name"); err != nil {
		return fmt.Errorf("%s: %w", m.file, err)
	}
	if err := utils.ValidateVersion(m.Version); err != nil {
		return fmt.Errorf("%s: %w", m.file, err)
	}
	if err := utils.ValidateDescription(m.Description, "description"); err != nil {
		return fmt.Errorf("%s: %w", m.file, err)
	}
	if strings.HasPrefix(m.Main, "/") || strings.Contains(m.Main, "..") {
		return fmt.Errorf("%s: main %q must stay inside the package", m.file, m.Main)
	}
	return nil
}

// ReadManifest loads the first recognized manifest in dir
func ReadManifest(dir string) (*Manifest, error) {
	for _, name := range ManifestFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		m, err := ParseManifest(name, data)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("%s: %w", dir, ErrNoManifest)
}

// ParseManifest decodes data according to the manifest file name
func ParseManifest(name string, data []byte) (*Manifest, error) {
	if err := utils.ValidateSize(data, utils.MaxManifestSize, name); err != nil {
		return nil, err
	}

	m := &Manifest{file: name}
	var err error
	switch filepath.Ext(name) {
	case ".json":
		err = sonic.Unmarshal(data, m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, m)
	case ".toml":
		err = toml.Unmarshal(data, m)
	default:
		return nil, fmt.Errorf("unsupported manifest %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return m, nil
}
