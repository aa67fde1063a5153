package git

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Commit represents a git commit with its metadata.
type Commit struct {
	SHA         string    // Full 40-character SHA
	Short       string    // Abbreviated SHA (7 chars)
	Subject     string    // First line of commit message
	Author      string    // Author name
	AuthorEmail string    // Author email
	Date        time.Time // Author date
}

// LastCommit returns HEAD's commit, or nil when the repository has no commits.
func (r *Repository) LastCommit() (*Commit, error) {
	commits, err := r.Log(1)
	if err != nil || len(commits) == 0 {
		return nil, err
	}
	return &commits[0], nil
}

// Log returns up to n commits reachable from HEAD, newest first. An empty
// repository yields no commits.
func (r *Repository) Log(n int) ([]Commit, error) {
	repo, err := gogit.PlainOpenWithOptions(r.dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", r.dir, err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&gogit.LogOptions{From: head.Hash(), Order: gogit.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	for len(commits) < n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		commits = append(commits, toCommit(c))
	}
	return commits, nil
}

func toCommit(c *object.Commit) Commit {
	sha := c.Hash.String()
	subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
	return Commit{
		SHA:         sha,
		Short:       sha[:7],
		Subject:     subject,
		Author:      c.Author.Name,
		AuthorEmail: c.Author.Email,
		Date:        c.Author.When,
	}
}
