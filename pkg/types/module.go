package types

import "strings"

// ProjectType identifies the marker file that declared a module.
type ProjectType string

const (
	ProjectWorkspace       ProjectType = "workspace"
	ProjectCrate           ProjectType = "crate"
	ProjectPackage         ProjectType = "package"
	ProjectNpmPackage      ProjectType = "npm_package"
	ProjectGoModule        ProjectType = "go_module"
	ProjectJavaProject     ProjectType = "java_project"
	ProjectTerraformModule ProjectType = "terraform_module"
	ProjectDirectory       ProjectType = "directory"
)

// RootModuleID is the identifier of the repository root module.
const RootModuleID = "root"

// Module is a detected project module. ID is the module's repo-relative
// path with "/" replaced by "::"; the repository root is "root".
type Module struct {
	ID       string
	Name     string
	Path     string
	Type     ProjectType
	ParentID string
}

// ModuleIDForPath converts a repo-relative directory path to a module ID.
func ModuleIDForPath(relPath string) string {
	relPath = strings.Trim(relPath, "/")
	if relPath == "" || relPath == "." {
		return RootModuleID
	}
	return strings.ReplaceAll(relPath, "/", "::")
}
