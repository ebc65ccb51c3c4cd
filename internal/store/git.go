package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	gogitfs "github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/google/uuid"

	appLog "hackcal/internal/log"
	"hackcal/internal/model"
)

// gitDataFile is the listings file inside the work tree.
const gitDataFile = "hackathons.json"

// Change is one committed modification of the listings.
type Change struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
}

// Auditor is implemented by backends that keep a change history.
type Auditor interface {
	// History returns up to limit changes, newest first.
	History(ctx context.Context, limit int) ([]Change, error)
}

// GitStore is a FileStore whose file lives in a git work tree. Every write
// is committed, so the repository is an audit log of submissions and
// moderation.
type GitStore struct {
	*FileStore

	repo  *gogit.Repository
	name  string
	email string
	now   func() time.Time

	// mu serializes write+commit pairs so each commit holds one change.
	mu sync.Mutex
}

// OpenGit opens or initializes the repository at dir.
func OpenGit(dir, authorName, authorEmail string) (*GitStore, error) {
	if dir == "" {
		return nil, errors.New("store: git dir is empty")
	}

	fsys := osfs.New(dir)
	if err := fsys.MkdirAll(".git", 0o755); err != nil {
		return nil, fmt.Errorf("store: create .git dir: %w", err)
	}
	dotGit, err := fsys.Chroot(".git")
	if err != nil {
		return nil, fmt.Errorf("store: chroot .git dir: %w", err)
	}
	storage := gogitfs.NewStorage(dotGit, cache.NewObjectLRUDefault())

	repo, err := gogit.Init(storage, fsys)
	if errors.Is(err, gogit.ErrRepositoryAlreadyExists) {
		repo, err = gogit.Open(storage, fsys)
	}
	if err != nil {
		return nil, fmt.Errorf("store: open repository %s: %w", dir, err)
	}

	fileStore, err := OpenFile(filepath.Join(dir, gitDataFile))
	if err != nil {
		return nil, err
	}
	if authorName == "" {
		authorName = "hackcal"
	}
	return &GitStore{
		FileStore: fileStore,
		repo:      repo,
		name:      authorName,
		email:     authorEmail,
		now:       time.Now,
	}, nil
}

func (g *GitStore) Insert(ctx context.Context, h *model.Hackathon) (*model.Hackathon, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	row, err := g.FileStore.Insert(ctx, h)
	if err != nil {
		return nil, err
	}
	g.commit(fmt.Sprintf("Submit %q (%s)", row.Name, row.Slug))
	return row, nil
}

func (g *GitStore) SetDisplay(ctx context.Context, id uuid.UUID, display bool) (*model.Hackathon, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	row, err := g.FileStore.SetDisplay(ctx, id, display)
	if err != nil {
		return nil, err
	}
	verb := "Approve"
	if !display {
		verb = "Hide"
	}
	g.commit(fmt.Sprintf("%s %q (%s)", verb, row.Name, row.Slug))
	return row, nil
}

func (g *GitStore) Delete(ctx context.Context, id uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	row, ok := g.FileStore.get(id)
	if err := g.FileStore.Delete(ctx, id); err != nil {
		return err
	}
	if ok {
		g.commit(fmt.Sprintf("Reject %q (%s)", row.Name, row.Slug))
	} else {
		g.commit("Reject " + id.String())
	}
	return nil
}

// commit records the current listings file. The write it follows already
// succeeded, so failures are logged and picked up by the next commit.
func (g *GitStore) commit(msg string) {
	w, err := g.repo.Worktree()
	if err != nil {
		appLog.Error("git store: worktree unavailable", err)
		return
	}
	if _, err := w.Add(gitDataFile); err != nil {
		appLog.Error("git store: stage failed", err, "file", gitDataFile)
		return
	}
	_, err = w.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  g.name,
			Email: g.email,
			When:  g.now(),
		},
	})
	if err != nil && !errors.Is(err, gogit.ErrEmptyCommit) {
		appLog.Error("git store: commit failed", err, "message", msg)
	}
}

// History returns up to limit commits, newest first.
func (g *GitStore) History(ctx context.Context, limit int) ([]Change, error) {
	head, err := g.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Change{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: head: %w", err)
	}

	iter, err := g.repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("store: log: %w", err)
	}
	defer iter.Close()

	out := make([]Change, 0)
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(out) >= limit {
			return storer.ErrStop
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		out = append(out, Change{
			Hash:    c.Hash.String(),
			Message: c.Message,
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: log: %w", err)
	}
	return out, nil
}
