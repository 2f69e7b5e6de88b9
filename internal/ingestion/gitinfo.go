package ingestion

import (
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Unknown is reported for branch and commit outside a git work tree.
const Unknown = "unknown"

// GitInfo identifies the revision a pack was generated from.
type GitInfo struct {
	Branch string
	Commit string
}

// ReadGitInfo returns the current branch and commit of the repository
// containing root. A detached HEAD reports branch "HEAD".
func ReadGitInfo(root string) GitInfo {
	info := GitInfo{Branch: Unknown, Commit: Unknown}

	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return info
	}
	head, err := repo.Head()
	if err != nil {
		// An empty repository has a symbolic HEAD but no commit yet.
		if ref, rerr := repo.Storer.Reference(plumbing.HEAD); rerr == nil && ref.Target().IsBranch() {
			info.Branch = ref.Target().Short()
		}
		return info
	}

	info.Commit = head.Hash().String()
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	} else {
		info.Branch = "HEAD"
	}
	return info
}
