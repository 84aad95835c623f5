package project

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/codemate/pkg/types"
)

// skipDirs are directory names never descended into. Build output and
// dependency trees would otherwise flood the module list.
var skipDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"target":       true,
	"__pycache__":  true,
	"dist":         true,
	".git":         true,
}

// Tree holds the detected modules of one repository.
type Tree struct {
	root    string
	byID    map[string]*types.Module
	ordered []*types.Module
	// dirs maps repo-relative module directories to IDs, used for
	// deepest-wins file ownership lookups.
	dirs map[string]string
}

// Scan walks the repository and detects its modules. The root is always
// a module; nested marker files become child modules chained through
// ParentID.
func Scan(root string) (*Tree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	tree := &Tree{
		root: abs,
		byID: make(map[string]*types.Module),
		dirs: make(map[string]string),
	}

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != abs && (skipDirs[name] || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		module := detectModule(path, rel)
		if module == nil && rel == "." {
			// The root is a module even without a marker.
			module = &types.Module{
				ID:   types.RootModuleID,
				Name: filepath.Base(abs),
				Path: ".",
				Type: types.ProjectWorkspace,
			}
		}
		if module != nil {
			tree.add(module)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	tree.chainParents()
	return tree, nil
}

func (t *Tree) add(module *types.Module) {
	t.byID[module.ID] = module
	t.dirs[module.Path] = module.ID
	t.ordered = append(t.ordered, module)
}

// chainParents links each module to its nearest enclosing module.
// Modules are sorted shallowest-first so parents exist before children.
func (t *Tree) chainParents() {
	sort.Slice(t.ordered, func(i, j int) bool {
		return t.ordered[i].ID < t.ordered[j].ID
	})
	for _, module := range t.ordered {
		if module.ID == types.RootModuleID {
			continue
		}
		dir := module.Path
		for {
			idx := strings.LastIndex(dir, "/")
			if idx < 0 {
				module.ParentID = types.RootModuleID
				break
			}
			dir = dir[:idx]
			if id, ok := t.dirs[dir]; ok {
				module.ParentID = id
				break
			}
		}
	}
}

// Modules returns all detected modules, ordered by ID.
func (t *Tree) Modules() []*types.Module {
	return t.ordered
}

// Get returns the module with the given ID.
func (t *Tree) Get(id string) (*types.Module, bool) {
	m, ok := t.byID[id]
	return m, ok
}

// Owner maps a repo-relative file path to its owning module ID. The
// deepest module whose directory contains the file wins; files outside
// any marker directory belong to the root.
func (t *Tree) Owner(relPath string) string {
	dir := filepath.ToSlash(filepath.Dir(relPath))
	for dir != "." && dir != "" {
		if id, ok := t.dirs[dir]; ok {
			return id
		}
		idx := strings.LastIndex(dir, "/")
		if idx < 0 {
			break
		}
		dir = dir[:idx]
	}
	return types.RootModuleID
}

// detectModule inspects one directory for marker files. Primary markers
// (manifests) win over secondary markers (mod.rs, __init__.py), and the
// first matching primary marker in priority order decides the type.
func detectModule(dir, rel string) *types.Module {
	id := types.ModuleIDForPath(rel)
	base := filepath.Base(dir)
	if rel == "." {
		id = types.RootModuleID
	}

	for _, probe := range markerProbes {
		marker := filepath.Join(dir, probe.file)
		if _, err := os.Stat(marker); err != nil {
			continue
		}
		name, projType := probe.inspect(marker, base)
		return &types.Module{ID: id, Name: name, Path: rel, Type: projType}
	}

	// Secondary markers promote plain directories to sub-modules. A
	// src directory directly under a Cargo manifest is the crate's own
	// source root, not a nested module, so its lib.rs does not count.
	for _, file := range []string{"__init__.py", "mod.rs", "lib.rs"} {
		if rel == "." {
			break
		}
		if base == "src" && hasCargoManifest(filepath.Dir(dir)) {
			break
		}
		if _, err := os.Stat(filepath.Join(dir, file)); err == nil {
			return &types.Module{ID: id, Name: base, Path: rel, Type: types.ProjectDirectory}
		}
	}
	return nil
}

func hasCargoManifest(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "Cargo.toml"))
	return err == nil
}
