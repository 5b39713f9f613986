package application

import (
	"regexp"
	"strconv"
	"strings"
)

var pullRefPattern = regexp.MustCompile(`#(\d+)`)

// FindPullReference returns the last "#<digits>" reference in texts, scanned
// in order as one document. Returns nil when there is none.
func FindPullReference(texts ...string) *int {
	matches := pullRefPattern.FindAllStringSubmatch(joinTexts(texts), -1)
	for i := len(matches) - 1; i >= 0; i-- {
		n, err := strconv.Atoi(matches[i][1])
		if err != nil {
			continue
		}
		return &n
	}
	return nil
}

// FindIssueReference returns the last "<projectKey>-<digits>" reference in
// texts. The key matches case-insensitively and the result is upper-cased.
// Returns nil when there is none or projectKey is empty.
func FindIssueReference(projectKey string, texts ...string) *string {
	if projectKey == "" {
		return nil
	}
	pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(projectKey) + `-(\d+)`)
	matches := pattern.FindAllStringSubmatch(joinTexts(texts), -1)
	if len(matches) == 0 {
		return nil
	}
	ref := strings.ToUpper(projectKey) + "-" + matches[len(matches)-1][1]
	return &ref
}

func joinTexts(texts []string) string {
	return strings.Join(texts, "\n")
}
