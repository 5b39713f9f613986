package application

import (
	"strings"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
)

// correctiveBranchPrefixes are branch-name prefixes that mark a fix.
var correctiveBranchPrefixes = []string{"bugfix", "hotfix", "fix", "patch"}

// Classification is the outcome of classifying a pull request.
type Classification struct {
	IsCorrective bool
	// NeedsLabel is set when only the branch name marks the pull request as a
	// fix; the caller should add model.CorrectiveLabel.
	NeedsLabel bool
}

// Classify decides whether a pull request is a corrective change from its
// labels and branch name.
func Classify(labels []string, branch string) Classification {
	hasLabel := false
	for _, l := range labels {
		if l == model.CorrectiveLabel {
			hasLabel = true
			break
		}
	}

	lower := strings.ToLower(branch)
	byBranch := false
	for _, prefix := range correctiveBranchPrefixes {
		if strings.HasPrefix(lower, prefix) {
			byBranch = true
			break
		}
	}

	return Classification{
		IsCorrective: hasLabel || byBranch,
		NeedsLabel:   byBranch && !hasLabel,
	}
}
