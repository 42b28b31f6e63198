package repo

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/repos.yaml
var demoRepos []byte

// LoadFixtures decodes a YAML list of repositories.
func LoadFixtures(data []byte) ([]Repo, error) {
	var repos []Repo
	if err := yaml.Unmarshal(data, &repos); err != nil {
		return nil, fmt.Errorf("failed to parse repo fixtures: %w", err)
	}
	for i := range repos {
		if repos[i].RepoID == "" {
			return nil, fmt.Errorf("repo fixture %d: repoId is required", i)
		}
		if repos[i].Files == nil {
			repos[i].Files = map[string]FileVersions{}
		}
	}
	return repos, nil
}

// NewDemoStore creates a Store seeded with the embedded demo repositories.
func NewDemoStore() (*Store, error) {
	repos, err := LoadFixtures(demoRepos)
	if err != nil {
		return nil, err
	}
	return NewStore(repos), nil
}
