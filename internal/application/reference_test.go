package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/dorametrics/internal/application"
	"github.com/ericfisherdev/dorametrics/internal/domain/model"
)

func TestFindPullReference(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  *int
	}{
		{name: "single reference", texts: []string{"reverts #12"}, want: ptr(12)},
		{name: "last reference wins", texts: []string{"fixes #12 and #34"}, want: ptr(34)},
		{name: "last text wins", texts: []string{"see #1", "actually #2"}, want: ptr(2)},
		{name: "no reference", texts: []string{"no numbers here", "# 5"}, want: nil},
		{name: "no texts", texts: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, application.FindPullReference(tt.texts...))
		})
	}
}

func TestFindIssueReference(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		texts []string
		want  *string
	}{
		{name: "exact key", key: "FAGSYSTEM", texts: []string{"closes FAGSYSTEM-9"}, want: ptr("FAGSYSTEM-9")},
		{name: "lower-case reference is upper-cased", key: "FAGSYSTEM", texts: []string{"fagsystem-17 fixed"}, want: ptr("FAGSYSTEM-17")},
		{name: "last reference wins", key: "OPS", texts: []string{"OPS-1", "and OPS-22"}, want: ptr("OPS-22")},
		{name: "other project ignored", key: "OPS", texts: []string{"DEVOPS-3"}, want: nil},
		{name: "empty key", key: "", texts: []string{"OPS-1"}, want: nil},
		{name: "no reference", key: "OPS", texts: []string{"nothing"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, application.FindIssueReference(tt.key, tt.texts...))
		})
	}
}

func TestResolveReferences_SourcePrecedence(t *testing.T) {
	pr := model.PullRequestFact{
		Comments:    []string{"follow-up to #7"},
		Commits:     []model.Commit{{Message: "fix OPS-3, see #8"}},
		Description: "OPS-4 #9",
	}

	refs := application.ResolveReferences(pr, "OPS")

	require.NotNil(t, refs.Pull)
	require.NotNil(t, refs.Ticket)
	assert.Equal(t, 7, *refs.Pull, "comments are searched before commits")
	assert.Equal(t, "OPS-3", *refs.Ticket, "each kind takes its first source with a match")
}

func TestResolveReferences_DescriptionFallback(t *testing.T) {
	pr := model.PullRequestFact{
		Comments:    []string{"LGTM"},
		Commits:     []model.Commit{{Message: "tidy"}},
		Description: "Fixes #40",
	}

	refs := application.ResolveReferences(pr, "OPS")

	require.NotNil(t, refs.Pull)
	assert.Equal(t, 40, *refs.Pull)
	assert.Nil(t, refs.Ticket)
}

func TestResolveReferences_None(t *testing.T) {
	refs := application.ResolveReferences(model.PullRequestFact{Description: "small change"}, "OPS")

	assert.Nil(t, refs.Pull)
	assert.Nil(t, refs.Ticket)
}
