package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"savium-invest-go/internal/models"

	"gopkg.in/yaml.v2"
)

type SeedUser struct {
	Id    string `yaml:"id"`
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

type SeedConfig struct {
	Users []SeedUser `yaml:"users"`
}

// UserUpserter creates a user profile or touches an existing one
type UserUpserter interface {
	UpsertUser(ctx context.Context, userId, email, name string) (*models.User, bool, error)
}

func LoadSeedUsers(seedFile string) ([]SeedUser, error) {
	var seedPath string
	if filepath.IsAbs(seedFile) {
		seedPath = seedFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		seedPath = filepath.Join(wd, seedFile)
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", seedFile, err)
	}

	var config SeedConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", seedFile, err)
	}

	seen := make(map[string]bool, len(config.Users))
	for i, u := range config.Users {
		if u.Id == "" {
			return nil, fmt.Errorf("user at index %d missing id", i)
		}
		if strings.TrimSpace(u.Email) == "" {
			return nil, fmt.Errorf("user at index %d missing email", i)
		}
		if seen[u.Id] {
			return nil, fmt.Errorf("duplicate user id %q at index %d", u.Id, i)
		}
		seen[u.Id] = true
	}

	return config.Users, nil
}

// SeedUsers upserts every seed user and reports how many were new.
func SeedUsers(ctx context.Context, repo UserUpserter, users []SeedUser) (int, error) {
	created := 0
	for _, u := range users {
		_, isNew, err := repo.UpsertUser(ctx, u.Id, u.Email, u.Name)
		if err != nil {
			return created, fmt.Errorf("failed to seed user %s: %w", u.Id, err)
		}
		if isNew {
			created++
		}
	}
	return created, nil
}
