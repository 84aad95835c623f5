package project

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/dshills/codemate/pkg/types"
)

// markerProbe pairs a marker filename with an inspector that derives
// the module name and type from the file. Order is priority order.
type markerProbe struct {
	file    string
	inspect func(path, fallback string) (string, types.ProjectType)
}

var markerProbes = []markerProbe{
	{"Cargo.toml", inspectCargoToml},
	{"go.mod", inspectGoMod},
	{"package.json", inspectPackageJSON},
	{"pyproject.toml", inspectPyprojectToml},
	{"setup.py", staticType(types.ProjectPackage)},
	{"pom.xml", staticType(types.ProjectJavaProject)},
	{"build.gradle", staticType(types.ProjectJavaProject)},
	{"build.gradle.kts", staticType(types.ProjectJavaProject)},
	{"main.tf", staticType(types.ProjectTerraformModule)},
}

func staticType(t types.ProjectType) func(string, string) (string, types.ProjectType) {
	return func(_, fallback string) (string, types.ProjectType) {
		return fallback, t
	}
}

// inspectCargoToml distinguishes workspace roots from crates and pulls
// the crate name from [package].
func inspectCargoToml(path, fallback string) (string, types.ProjectType) {
	var manifest struct {
		Workspace *struct {
			Members []string `toml:"members"`
		} `toml:"workspace"`
		Package *struct {
			Name string `toml:"name"`
		} `toml:"package"`
	}
	raw, err := os.ReadFile(path)
	if err != nil || toml.Unmarshal(raw, &manifest) != nil {
		return fallback, types.ProjectCrate
	}
	name := fallback
	if manifest.Package != nil && manifest.Package.Name != "" {
		name = manifest.Package.Name
	}
	if manifest.Workspace != nil && manifest.Package == nil {
		return name, types.ProjectWorkspace
	}
	return name, types.ProjectCrate
}

// inspectGoMod reads the module directive and uses its last path element
// as the module name.
func inspectGoMod(path, fallback string) (string, types.ProjectType) {
	f, err := os.Open(path)
	if err != nil {
		return fallback, types.ProjectGoModule
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if modPath, ok := strings.CutPrefix(line, "module "); ok {
			modPath = strings.TrimSpace(modPath)
			if idx := strings.LastIndex(modPath, "/"); idx >= 0 {
				modPath = modPath[idx+1:]
			}
			if modPath != "" {
				return modPath, types.ProjectGoModule
			}
			break
		}
	}
	return fallback, types.ProjectGoModule
}

func inspectPackageJSON(path, fallback string) (string, types.ProjectType) {
	var manifest struct {
		Name string `json:"name"`
	}
	raw, err := os.ReadFile(path)
	if err != nil || json.Unmarshal(raw, &manifest) != nil || manifest.Name == "" {
		return fallback, types.ProjectNpmPackage
	}
	return manifest.Name, types.ProjectNpmPackage
}

// inspectPyprojectToml checks [project] first, then the poetry table.
func inspectPyprojectToml(path, fallback string) (string, types.ProjectType) {
	var manifest struct {
		Project *struct {
			Name string `toml:"name"`
		} `toml:"project"`
		Tool *struct {
			Poetry *struct {
				Name string `toml:"name"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	raw, err := os.ReadFile(path)
	if err != nil || toml.Unmarshal(raw, &manifest) != nil {
		return fallback, types.ProjectPackage
	}
	if manifest.Project != nil && manifest.Project.Name != "" {
		return manifest.Project.Name, types.ProjectPackage
	}
	if manifest.Tool != nil && manifest.Tool.Poetry != nil && manifest.Tool.Poetry.Name != "" {
		return manifest.Tool.Poetry.Name, types.ProjectPackage
	}
	return fallback, types.ProjectPackage
}
