package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// CloneOptions select what to check out.
type CloneOptions struct {
	// Branch to check out. Empty uses the remote HEAD.
	Branch string
	// Depth limits history. Zero clones everything.
	Depth int
}

// Checkout describes a cloned repository.
type Checkout struct {
	Dir    string
	Branch string
	Commit string
}

// CloneRepository clones url into dir, which must not exist or be empty.
// Documents from a checkout are usually ingested with Options.SourcePrefix
// set to url so their sources survive re-cloning elsewhere.
func CloneRepository(ctx context.Context, url, dir string, opts CloneOptions) (*Checkout, error) {
	if url == "" {
		return nil, errors.New("repository url is required")
	}
	co := &git.CloneOptions{
		URL:          url,
		Depth:        max(opts.Depth, 0),
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if opts.Branch != "" {
		co.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, co)
	if err != nil {
		return nil, fmt.Errorf("cloning %s: %w", url, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("reading HEAD of %s: %w", url, err)
	}

	out := &Checkout{Dir: dir, Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		out.Branch = head.Name().Short()
	}
	return out, nil
}
