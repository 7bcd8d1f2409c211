// Package buildinfo reads revision metadata for the project being built.
package buildinfo

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Info describes the checked-out revision. The zero value means the project is not
// inside a git repository or HEAD has no commits yet.
type Info struct {
	Commit    string
	Short     string
	Branch    string
	Committed time.Time
}

// Detect opens the repository containing root, searching parent directories.
func Detect(root string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Info{}, nil
		}
		return Info{}, fmt.Errorf("open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return Info{}, nil
		}
		return Info{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	info := Info{Commit: head.Hash().String()}
	info.Short = info.Commit
	if len(info.Short) > 7 {
		info.Short = info.Short[:7]
	}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}
	if c, err := repo.CommitObject(head.Hash()); err == nil {
		info.Committed = c.Committer.When
	}
	return info, nil
}

// Map returns the template view of the revision.
func (i Info) Map() map[string]any {
	return map[string]any{
		"commit":    i.Commit,
		"short":     i.Short,
		"branch":    i.Branch,
		"committed": i.Committed,
	}
}
