package application_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/dorametrics/internal/application"
	"github.com/ericfisherdev/dorametrics/internal/domain/model"
)

func TestFilterNew(t *testing.T) {
	rows := []model.SuccessfulDeploy{
		{Repo: "svc-api", Pull: 1},
		{Repo: "svc-api", Pull: 2},
		{Repo: "svc-web", Pull: 1},
		{Repo: "svc-api", Pull: 2, Team: "dup"},
	}
	existing := map[model.DeployKey]struct{}{
		{Repo: "svc-api", Pull: 1}: {},
	}

	got := application.FilterNew(rows, model.SuccessfulDeploy.Key, existing)

	assert.Equal(t, []model.SuccessfulDeploy{
		{Repo: "svc-api", Pull: 2},
		{Repo: "svc-web", Pull: 1},
	}, got)
}

func TestFilterNew_Idempotent(t *testing.T) {
	rows := []string{"OPS-1", "OPS-2", "OPS-1", "OPS-3"}
	existing := map[string]struct{}{"OPS-3": {}}
	key := func(s string) string { return s }

	once := application.FilterNew(rows, key, existing)
	twice := application.FilterNew(once, key, existing)

	assert.Equal(t, []string{"OPS-1", "OPS-2"}, once)
	assert.Equal(t, once, twice)
}

func TestFilterNew_Empty(t *testing.T) {
	got := application.FilterNew([]string(nil), func(s string) string { return s }, nil)
	assert.Empty(t, got)
}
