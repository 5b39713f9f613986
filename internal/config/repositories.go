package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/dorametrics/internal/domain/model"
)

// repositoriesFile is the on-disk layout of the repositories file. Defaults
// fill in workflow and job for entries that leave them out.
type repositoriesFile struct {
	Defaults struct {
		Workflow string `yaml:"workflow"`
		Job      string `yaml:"job"`
	} `yaml:"defaults"`
	Repositories []model.RepositoryTarget `yaml:"repositories"`
}

// LoadRepositories reads the targets from path and assigns them to owner.
func LoadRepositories(path, owner string) ([]model.RepositoryTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read repositories file: %w", err)
	}
	return ParseRepositories(data, owner)
}

// ParseRepositories decodes a repositories file. Every entry needs a name,
// names must be unique, and workflow and job must be set either on the entry
// or in defaults.
func ParseRepositories(data []byte, owner string) ([]model.RepositoryTarget, error) {
	var file repositoriesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse repositories file: %w", err)
	}
	if len(file.Repositories) == 0 {
		return nil, errors.New("repositories file lists no repositories")
	}

	seen := make(map[string]struct{}, len(file.Repositories))
	targets := make([]model.RepositoryTarget, 0, len(file.Repositories))
	for i, r := range file.Repositories {
		if r.Name == "" {
			return nil, fmt.Errorf("repository %d has no name", i+1)
		}
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("repository %q is listed twice", r.Name)
		}
		seen[r.Name] = struct{}{}

		if r.Workflow == "" {
			r.Workflow = file.Defaults.Workflow
		}
		if r.Job == "" {
			r.Job = file.Defaults.Job
		}
		if r.Workflow == "" || r.Job == "" {
			return nil, fmt.Errorf("repository %q needs a workflow and a job", r.Name)
		}
		r.Owner = owner
		targets = append(targets, r)
	}

	return targets, nil
}
