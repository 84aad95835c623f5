package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/codemate/internal/chunker"
	"github.com/dshills/codemate/internal/embedder"
	"github.com/dshills/codemate/internal/gitio"
	"github.com/dshills/codemate/internal/graph"
	"github.com/dshills/codemate/internal/project"
	"github.com/dshills/codemate/internal/storage"
	"github.com/dshills/codemate/pkg/types"

	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrIndexInProgress is returned when an index run is already active on
// this Indexer.
var ErrIndexInProgress = errors.New("indexing already in progress")

// workdirCommit is the pseudo commit hash recorded for locations found
// by a plain directory scan, where no git history is available.
const workdirCommit = "workdir"

// maxFileBytes caps the size of a file considered for chunking.
const maxFileBytes = 1 << 20

const (
	defaultEmbedQueueDepth = 1024
	defaultEmbedBatchSize  = 32
)

// skipDirs are directory names never walked in directory mode.
var skipDirs = map[string]bool{
	"vendor": true, "node_modules": true, "target": true,
	"__pycache__": true, "dist": true, ".git": true,
}

// Config controls one index run.
type Config struct {
	Workers int // concurrent file units, default runtime.NumCPU()

	// Git mode settings. When Git is false the path is walked as a
	// plain directory tree.
	Git        bool
	Branch     string // default: the repository's current branch
	MaxCommits int
	Since      time.Time
	Until      string // stop when this commit hash is reached

	EmbedQueueDepth int
	EmbedBatchSize  int
}

func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.EmbedQueueDepth <= 0 {
		c.EmbedQueueDepth = defaultEmbedQueueDepth
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = defaultEmbedBatchSize
	}
}

// Stats summarizes one index run.
type Stats struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	CommitsWalked int

	ChunksStored  int
	ChunksReused  int
	EdgesStored   int
	EdgesRemoved  int
	Embedded      int
	ParseErrors   int
	SymbolsLinked int
	Duration      time.Duration

	Errors []string
}

// counters is the mutex-guarded mutable half of Stats, shared by the
// worker pool.
type counters struct {
	mu    sync.Mutex
	stats Stats
}

func (c *counters) add(fn func(*Stats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

func (c *counters) fail(path string, err error) {
	c.add(func(s *Stats) {
		s.FilesFailed++
		s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", path, err))
	})
}

// Indexer ingests a directory tree or a git history into storage.
type Indexer struct {
	store    storage.Storage
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	resolver *graph.Engine
	lock     IndexLock
}

// New creates an Indexer. A nil embedder disables embedding generation;
// everything else still indexes.
func New(store storage.Storage, emb embedder.Embedder) *Indexer {
	return &Indexer{
		store:    store,
		chunker:  chunker.New(),
		embedder: emb,
		resolver: graph.New(store),
	}
}

// Index runs one ingest over path. Only one run per Indexer at a time.
func (idx *Indexer) Index(ctx context.Context, path string, cfg *Config) (*Stats, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexInProgress
	}
	defer idx.lock.Release()

	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()

	start := time.Now()
	c := &counters{}

	queue, drained := idx.startEmbedWorker(ctx, cfg, c)

	var err error
	resolveCommit := workdirCommit
	if cfg.Git {
		resolveCommit, err = idx.indexGit(ctx, path, cfg, c, queue)
	} else {
		err = idx.indexDirectory(ctx, path, cfg, c, queue)
	}
	close(queue)
	<-drained
	if err != nil {
		return nil, err
	}

	// Pending symbol targets resolve once the whole corpus is stored.
	res, err := idx.resolver.ResolveSymbols(ctx, resolveCommit, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("symbol resolution: %w", err)
	}
	c.add(func(s *Stats) { s.SymbolsLinked = res.Resolved })

	c.stats.Duration = time.Since(start)
	return &c.stats, nil
}

// PruneBranch removes every location and the index state for a branch
// that no longer exists in the repository.
func (idx *Indexer) PruneBranch(ctx context.Context, repoPath, branch string) error {
	return idx.store.DeleteBranchLocations(ctx, repoPath, branch)
}

// fileUnit is one (commit, path) unit of work.
type fileUnit struct {
	repo       string
	relPath    string
	src        []byte
	moduleID   string
	commitHash string
	branch     string
	blobHash   string

	// attribution fallback; blame refines per chunk in git mode
	author     string
	authoredAt time.Time

	blame func(startLine, endLine int) gitio.Attribution
}

// indexDirectory walks a working tree and indexes every regular file.
func (idx *Indexer) indexDirectory(ctx context.Context, root string, cfg *Config, c *counters, queue chan<- types.ContentHash) error {
	tree, err := project.Scan(root)
	if err != nil {
		return fmt.Errorf("module scan: %w", err)
	}
	if err := idx.storeModules(ctx, tree); err != nil {
		return err
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > maxFileBytes {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}

	now := time.Now().UTC()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, path := range files {
		g.Go(func() error {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			src, err := os.ReadFile(path)
			if err != nil {
				c.fail(rel, err)
				return nil
			}
			unit := fileUnit{
				repo:       root,
				relPath:    rel,
				src:        src,
				moduleID:   tree.Owner(rel),
				commitHash: workdirCommit,
				authoredAt: now,
			}
			if err := idx.indexUnit(gctx, unit, c, queue); err != nil {
				if gctx.Err() != nil {
					return err
				}
				c.fail(rel, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// indexGit walks commit history for one branch, oldest first, resuming
// from the recorded index state. It returns the hash of the newest
// commit indexed, for edge provenance in the resolution pass.
func (idx *Indexer) indexGit(ctx context.Context, repoPath string, cfg *Config, c *counters, queue chan<- types.ContentHash) (string, error) {
	repo, err := gitio.Open(repoPath)
	if err != nil {
		return "", err
	}

	branch := cfg.Branch
	if branch == "" {
		branch, err = repo.CurrentBranch()
		if err != nil {
			return "", err
		}
	}

	tree, err := project.Scan(repoPath)
	if err != nil {
		return "", fmt.Errorf("module scan: %w", err)
	}
	if err := idx.storeModules(ctx, tree); err != nil {
		return "", err
	}

	state, err := idx.store.GetIndexState(ctx, repoPath, branch)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	limits := gitio.WalkLimits{MaxCommits: cfg.MaxCommits, UntilCommit: cfg.Until}
	if !cfg.Since.IsZero() {
		limits.Since = &cfg.Since
	}
	var commits []*object.Commit
	err = repo.WalkCommits(branch, limits, func(commit *object.Commit) error {
		if state != nil && commit.Hash.String() == state.LastCommitHash {
			return gitio.ErrStopWalk
		}
		commits = append(commits, commit)
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(commits) == 0 {
		if state != nil {
			return state.LastCommitHash, nil
		}
		return "", nil
	}

	// The walk yields newest first; state must advance oldest first.
	head := commits[0].Hash.String()
	for i := len(commits) - 1; i >= 0; i-- {
		commit := commits[i]
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := idx.indexCommit(ctx, repo, tree, commit, branch, cfg, c, queue); err != nil {
			return "", fmt.Errorf("commit %s: %w", commit.Hash.String()[:8], err)
		}
		c.add(func(s *Stats) { s.CommitsWalked++ })

		err = idx.store.SetIndexState(ctx, &types.IndexState{
			RepoPath:       repoPath,
			Branch:         branch,
			LastCommitHash: commit.Hash.String(),
			IndexedAt:      time.Now().UTC(),
		})
		if err != nil {
			return "", err
		}
	}
	return head, nil
}

// indexCommit diffs one commit against its first parent and indexes the
// changed files concurrently.
func (idx *Indexer) indexCommit(ctx context.Context, repo *gitio.Repository, tree *project.Tree, commit *object.Commit, branch string, cfg *Config, c *counters, queue chan<- types.ContentHash) error {
	changes, err := repo.DiffAgainstParent(commit)
	if err != nil {
		return err
	}

	commitHash := commit.Hash.String()
	author := commit.Author.Name + " <" + commit.Author.Email + ">"
	authoredAt := commit.Author.When.UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, change := range changes {
		if change.Deleted {
			// Tombstone: the path's prior locations keep their
			// authored_at; nothing new is written.
			continue
		}
		g.Go(func() error {
			reused, err := idx.reuseBlob(gctx, change, repo.Path(), commitHash, branch, author, authoredAt)
			if err != nil {
				c.fail(change.Path, err)
				return nil
			}
			if reused {
				c.add(func(s *Stats) { s.ChunksReused++ })
				return nil
			}

			src, err := repo.Blob(change.BlobHash)
			if err != nil {
				c.fail(change.Path, err)
				return nil
			}
			if len(src) > maxFileBytes {
				c.add(func(s *Stats) { s.FilesSkipped++ })
				return nil
			}
			unit := fileUnit{
				repo:       repo.Path(),
				relPath:    change.Path,
				src:        src,
				moduleID:   tree.Owner(change.Path),
				commitHash: commitHash,
				branch:     branch,
				blobHash:   change.BlobHash,
				author:     author,
				authoredAt: authoredAt,
				blame: func(startLine, endLine int) gitio.Attribution {
					return repo.Blame(commit, change.Path, startLine, endLine)
				},
			}
			if err := idx.indexUnit(gctx, unit, c, queue); err != nil {
				if gctx.Err() != nil {
					return err
				}
				c.fail(change.Path, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// reuseBlob fans out locations for a blob whose content was already
// chunked, from any repo or branch. Returns true when handled.
func (idx *Indexer) reuseBlob(ctx context.Context, change gitio.FileChange, repoPath, commitHash, branch, author string, authoredAt time.Time) (bool, error) {
	if change.BlobHash == "" {
		return false, nil
	}
	indexed, err := idx.store.BlobIndexed(ctx, change.BlobHash)
	if err != nil || !indexed {
		return false, err
	}
	existing, err := idx.store.LocationsForBlob(ctx, change.BlobHash)
	if err != nil {
		return false, err
	}
	if len(existing) == 0 {
		return false, nil
	}

	tx, err := idx.store.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	// One fan-out per occurrence: a hash may legitimately repeat within
	// the blob at different byte offsets.
	type occurrence struct {
		hash      types.ContentHash
		startByte int
	}
	seen := map[occurrence]bool{}
	for _, prior := range existing {
		occ := occurrence{prior.Hash, prior.StartByte}
		if seen[occ] {
			continue
		}
		seen[occ] = true
		loc := prior
		loc.Repo = repoPath
		loc.FilePath = change.Path
		loc.CommitHash = commitHash
		loc.Branch = branch
		loc.Author = author
		loc.AuthoredAt = authoredAt
		if err := tx.AddLocation(ctx, &loc); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

// indexUnit chunks one file and commits its chunks, locations, and
// edges in a single transaction. Chunks that held the path before but
// are absent from the new chunk set have their edges retired, so a
// removed call site leaves the current graph with a 'deleted' event.
func (idx *Indexer) indexUnit(ctx context.Context, unit fileUnit, c *counters, queue chan<- types.ContentHash) error {
	result, err := idx.chunker.ChunkFile(ctx, unit.relPath, unit.src, unit.moduleID)
	if err != nil {
		return err
	}

	tx, err := idx.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	removed, err := idx.retireStaleChunks(ctx, tx, unit, result.Chunks)
	if err != nil {
		return err
	}

	var stored, edges int
	var fresh []types.ContentHash
	for i := range result.Chunks {
		chunk := &result.Chunks[i]
		created, err := tx.StoreChunk(ctx, chunk)
		if err != nil {
			return err
		}
		if created {
			stored++
			fresh = append(fresh, chunk.Hash)
		}

		loc := types.ChunkLocation{
			Hash:       chunk.Hash,
			Repo:       unit.repo,
			FilePath:   unit.relPath,
			CommitHash: unit.commitHash,
			Branch:     unit.branch,
			BlobHash:   unit.blobHash,
			StartLine:  chunk.StartLine,
			EndLine:    chunk.EndLine,
			StartByte:  chunk.StartByte,
			EndByte:    chunk.EndByte,
			Author:     unit.author,
			AuthoredAt: unit.authoredAt,
		}
		if unit.blame != nil {
			attr := unit.blame(chunk.StartLine, chunk.EndLine)
			if attr.Author != "" {
				loc.Author = attr.Author
				loc.AuthoredAt = attr.AuthoredAt
			}
		}
		if err := tx.AddLocation(ctx, &loc); err != nil {
			return err
		}
	}

	for i := range result.Edges {
		if _, err := tx.UpsertEdge(ctx, &result.Edges[i], unit.commitHash, unit.authoredAt); err != nil {
			return err
		}
		edges++
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	c.add(func(s *Stats) {
		s.FilesIndexed++
		s.ChunksStored += stored
		s.ChunksReused += len(result.Chunks) - stored
		s.EdgesStored += edges
		s.EdgesRemoved += removed
		s.ParseErrors += len(result.Errors)
	})

	// Enqueue after commit so the embed worker always finds the chunk.
	// A full queue blocks, which is the intended back-pressure.
	for _, hash := range fresh {
		select {
		case queue <- hash:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// retireStaleChunks diffs the path's previously indexed chunk set
// against the new one and removes the graph edges of chunks that no
// longer appear anywhere, writing 'deleted' history events. Chunks
// still located in another file keep their edges.
func (idx *Indexer) retireStaleChunks(ctx context.Context, tx storage.Tx, unit fileUnit, chunks []types.Chunk) (int, error) {
	prior, err := tx.ChunkHashesForFile(ctx, unit.repo, unit.relPath)
	if err != nil {
		return 0, err
	}
	if len(prior) == 0 {
		return 0, nil
	}

	current := make(map[types.ContentHash]bool, len(chunks))
	for i := range chunks {
		current[chunks[i].Hash] = true
	}

	fileNode := types.FileNodeID(unit.relPath)
	removed := 0
	for _, hash := range prior {
		if current[hash] {
			continue
		}
		elsewhere, err := tx.ChunkLocatedElsewhere(ctx, hash, unit.repo, unit.relPath)
		if err != nil {
			return 0, err
		}
		if elsewhere {
			continue
		}
		node := types.ChunkNodeID(hash)
		n, err := tx.RemoveEdgesFrom(ctx, node, unit.commitHash, unit.authoredAt)
		if err != nil {
			return 0, err
		}
		removed += n
		if err := tx.RemoveEdge(ctx, fileNode, node, types.EdgeContains, unit.commitHash, unit.authoredAt); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

// startEmbedWorker drains the embedding queue in batches. The returned
// channel closes when the worker has flushed everything.
func (idx *Indexer) startEmbedWorker(ctx context.Context, cfg *Config, c *counters) (chan types.ContentHash, <-chan struct{}) {
	queue := make(chan types.ContentHash, cfg.EmbedQueueDepth)
	drained := make(chan struct{})

	go func() {
		defer close(drained)
		batch := make([]types.ContentHash, 0, cfg.EmbedBatchSize)
		flush := func() {
			if len(batch) > 0 {
				idx.embedBatch(ctx, batch, c)
				batch = batch[:0]
			}
		}
		for hash := range queue {
			if idx.embedder == nil {
				continue
			}
			batch = append(batch, hash)
			if len(batch) >= cfg.EmbedBatchSize {
				flush()
			}
		}
		flush()
	}()
	return queue, drained
}

// embedBatch generates and stores vectors for one batch. Failures are
// recorded, not fatal; chunks stay queryable by keyword.
func (idx *Indexer) embedBatch(ctx context.Context, hashes []types.ContentHash, c *counters) {
	texts := make([]string, 0, len(hashes))
	valid := make([]types.ContentHash, 0, len(hashes))
	for _, hash := range hashes {
		chunk, err := idx.store.GetChunk(ctx, hash)
		if err != nil {
			continue
		}
		texts = append(texts, chunk.Content)
		valid = append(valid, hash)
	}
	if len(texts) == 0 {
		return
	}

	vectors, err := idx.embedder.GenerateBatch(ctx, texts)
	if err != nil {
		c.add(func(s *Stats) {
			s.Errors = append(s.Errors, fmt.Sprintf("embedding batch: %v", err))
		})
		return
	}
	model := idx.embedder.ModelID()
	stored := 0
	for i, vec := range vectors {
		if err := idx.store.StoreEmbedding(ctx, valid[i], vec, model); err != nil {
			continue
		}
		stored++
	}
	c.add(func(s *Stats) { s.Embedded += stored })
}

func (idx *Indexer) storeModules(ctx context.Context, tree *project.Tree) error {
	for _, module := range tree.Modules() {
		if err := idx.store.UpsertModule(ctx, module); err != nil {
			return fmt.Errorf("module %s: %w", module.ID, err)
		}
	}
	return nil
}
