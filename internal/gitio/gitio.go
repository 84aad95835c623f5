package gitio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// ErrStopWalk terminates a commit walk early without error.
var ErrStopWalk = errors.New("stop walk")

// Repository wraps a go-git repository.
type Repository struct {
	repo *git.Repository
	path string
}

// Open opens an existing git repository rooted at repoPath.
func Open(repoPath string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	return &Repository{repo: repo, path: repoPath}, nil
}

// Path returns the filesystem path the repository was opened at.
func (r *Repository) Path() string {
	return r.path
}

// Branches lists local branch names.
func (r *Repository) Branches() ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// CurrentBranch returns the branch HEAD points at, or the short hash
// when HEAD is detached.
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String()[:7], nil
}

// ResolveRef resolves a branch name, tag, or commit hash to a commit.
func (r *Repository) ResolveRef(refName string) (*object.Commit, error) {
	if ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(refName), true); err == nil {
		return r.repo.CommitObject(ref.Hash())
	}
	if ref, err := r.repo.Reference(plumbing.NewTagReferenceName(refName), true); err == nil {
		return r.repo.CommitObject(ref.Hash())
	}
	commit, err := r.repo.CommitObject(plumbing.NewHash(refName))
	if err != nil {
		return nil, fmt.Errorf("resolving ref %q: not a branch, tag, or commit hash", refName)
	}
	return commit, nil
}

// WalkLimits bounds a commit walk. Zero values mean unbounded.
type WalkLimits struct {
	// MaxCommits stops the walk after this many commits.
	MaxCommits int
	// Since excludes commits authored before this time.
	Since *time.Time
	// UntilCommit stops the walk when this commit is reached, excluding
	// it. Used for incremental resume from a recorded index state.
	UntilCommit string
}

// WalkCommits visits commits reachable from the branch head in
// topological order, parents after children, bounded by limits. The
// callback may return ErrStopWalk to end the walk cleanly.
func (r *Repository) WalkCommits(branch string, limits WalkLimits, fn func(*object.Commit) error) error {
	head, err := r.ResolveRef(branch)
	if err != nil {
		return err
	}

	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash, Order: git.LogOrderDFS})
	if err != nil {
		return fmt.Errorf("starting commit walk: %w", err)
	}
	defer iter.Close()

	visited := 0
	err = iter.ForEach(func(commit *object.Commit) error {
		if limits.UntilCommit != "" && commit.Hash.String() == limits.UntilCommit {
			return storer.ErrStop
		}
		// Topological order is not time-sorted across merged branches,
		// so commits older than the bound are skipped, not a stop point.
		if limits.Since != nil && commit.Author.When.Before(*limits.Since) {
			return nil
		}
		if limits.MaxCommits > 0 && visited >= limits.MaxCommits {
			return storer.ErrStop
		}
		visited++

		if err := fn(commit); err != nil {
			if errors.Is(err, ErrStopWalk) {
				return storer.ErrStop
			}
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking commits: %w", err)
	}
	return nil
}

// FileChange is one path touched by a commit relative to its first
// parent. Deleted paths are tombstones: no blob, no new locations.
type FileChange struct {
	Path     string
	BlobHash string
	Deleted  bool
}

// DiffAgainstParent diffs a commit against its first parent. The root
// commit diffs against the empty tree, so every file shows as added.
func (r *Repository) DiffAgainstParent(commit *object.Commit) ([]FileChange, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting commit tree: %w", err)
	}

	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("getting first parent: %w", err)
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("getting parent tree: %w", err)
		}
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	var result []FileChange
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			continue
		}
		switch action {
		case merkletrie.Insert, merkletrie.Modify:
			result = append(result, FileChange{
				Path:     change.To.Name,
				BlobHash: change.To.TreeEntry.Hash.String(),
			})
		case merkletrie.Delete:
			result = append(result, FileChange{Path: change.From.Name, Deleted: true})
		}
	}
	return result, nil
}

// Blob reads blob contents by hash.
func (r *Repository) Blob(blobHash string) ([]byte, error) {
	blob, err := r.repo.BlobObject(plumbing.NewHash(blobHash))
	if err != nil {
		return nil, fmt.Errorf("getting blob %s: %w", blobHash, err)
	}
	reader, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening blob %s: %w", blobHash, err)
	}
	defer func() { _ = reader.Close() }()
	return io.ReadAll(reader)
}

// Attribution is the authorship of a line range.
type Attribution struct {
	// Author is "Name <email>" of the primary author, the one who wrote
	// the most lines in the range.
	Author string
	// AuthoredAt is the earliest authoring time within the range.
	AuthoredAt time.Time
}

// Blame attributes a 1-based inclusive line range of a file at a
// commit. When blame cannot be computed the commit's own author is
// used instead, so attribution never fails the ingest.
func (r *Repository) Blame(commit *object.Commit, path string, startLine, endLine int) Attribution {
	fallback := Attribution{
		Author:     formatSignature(commit.Author),
		AuthoredAt: commit.Author.When,
	}

	result, err := git.Blame(commit, path)
	if err != nil {
		return fallback
	}
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(result.Lines) {
		endLine = len(result.Lines)
	}
	if startLine > endLine {
		return fallback
	}

	counts := make(map[string]int)
	authors := make(map[string]string)
	earliest := time.Time{}
	for i := startLine - 1; i < endLine; i++ {
		line := result.Lines[i]
		key := line.Author
		counts[key]++
		if _, ok := authors[key]; !ok {
			authors[key] = fmt.Sprintf("%s <%s>", line.AuthorName, line.Author)
		}
		if earliest.IsZero() || line.Date.Before(earliest) {
			earliest = line.Date
		}
	}
	if len(counts) == 0 {
		return fallback
	}

	primary := ""
	for key, n := range counts {
		if primary == "" || n > counts[primary] || (n == counts[primary] && key < primary) {
			primary = key
		}
	}
	return Attribution{Author: authors[primary], AuthoredAt: earliest}
}

func formatSignature(sig object.Signature) string {
	return fmt.Sprintf("%s <%s>", sig.Name, sig.Email)
}
