package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Project is a site and the towers it is split into.
type Project struct {
	Name   string   `yaml:"name" json:"name"`
	Towers []string `yaml:"towers" json:"towers"`
}

// Catalog is the reference data the raise/edit form offers.
type Catalog struct {
	Projects    []Project `yaml:"projects" json:"projects"`
	Areas       []string  `yaml:"areas" json:"areas"`
	Departments []string  `yaml:"departments" json:"departments"`
	Priorities  []string  `yaml:"priorities" json:"priorities"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads the catalog from path, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog and checks it is usable.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	var errs []error
	if len(c.Projects) == 0 {
		errs = append(errs, errors.New("catalog has no projects"))
	}
	for _, p := range c.Projects {
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, errors.New("catalog project without a name"))
		}
		if len(p.Towers) == 0 {
			errs = append(errs, fmt.Errorf("project %q has no towers", p.Name))
		}
	}
	if len(c.Areas) == 0 {
		errs = append(errs, errors.New("catalog has no areas"))
	}
	if len(c.Departments) == 0 {
		errs = append(errs, errors.New("catalog has no departments"))
	}
	if len(c.Priorities) == 0 {
		errs = append(errs, errors.New("catalog has no priorities"))
	}
	return errors.Join(errs...)
}

// Towers returns the towers of project, or nil for an unknown project.
func (c *Catalog) Towers(project string) []string {
	for _, p := range c.Projects {
		if p.Name == project {
			return p.Towers
		}
	}
	return nil
}

// HasTower reports whether tower belongs to project.
func (c *Catalog) HasTower(project, tower string) bool {
	return slices.Contains(c.Towers(project), tower)
}

// HasDepartment reports whether department is listed.
func (c *Catalog) HasDepartment(department string) bool {
	return slices.Contains(c.Departments, department)
}
