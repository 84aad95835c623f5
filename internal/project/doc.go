// Package project detects the module structure of a repository from
// marker files (Cargo.toml, go.mod, package.json, pyproject.toml and
// friends) and maps every source file to its owning module.
//
// Detection walks the tree once and records a module per marker
// directory. Nested markers are allowed; a file belongs to the deepest
// module whose directory contains it, and each module chains to its
// nearest enclosing module through ParentID. The repository root is
// always a module, with ID "root".
package project
