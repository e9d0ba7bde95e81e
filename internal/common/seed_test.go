package common

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"savium-invest-go/internal/models"
)

type fakeUpserter struct {
	users map[string]models.User
}

func (f *fakeUpserter) UpsertUser(_ context.Context, userId, email, name string) (*models.User, bool, error) {
	if u, ok := f.users[userId]; ok {
		return &u, false, nil
	}
	u := models.User{Id: userId, Email: email, Name: name}
	f.users[userId] = u
	return &u, true, nil
}

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write seed file: %v", err)
	}
	return path
}

func TestLoadSeedUsers(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantN   int
		wantErr string
	}{
		{"valid", "users:\n  - id: u1\n    email: a@example.com\n    name: Alice\n  - id: u2\n    email: b@example.com\n", 2, ""},
		{"missing id", "users:\n  - email: a@example.com\n", 0, "missing id"},
		{"missing email", "users:\n  - id: u1\n", 0, "missing email"},
		{"duplicate", "users:\n  - id: u1\n    email: a@example.com\n  - id: u1\n    email: b@example.com\n", 0, "duplicate"},
		{"bad yaml", "users: [", 0, "unable to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := LoadSeedUsers(writeSeed(t, tt.content))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadSeedUsers failed: %v", err)
			}
			if len(users) != tt.wantN {
				t.Errorf("Expected %d users, got %d", tt.wantN, len(users))
			}
		})
	}

	if _, err := LoadSeedUsers(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestSeedUsers_Idempotent(t *testing.T) {
	repo := &fakeUpserter{users: map[string]models.User{}}
	users := []SeedUser{{Id: "u1", Email: "a@example.com"}, {Id: "u2", Email: "b@example.com"}}

	created, err := SeedUsers(context.Background(), repo, users)
	if err != nil || created != 2 {
		t.Fatalf("First seed = %d, %v", created, err)
	}
	created, err = SeedUsers(context.Background(), repo, users)
	if err != nil || created != 0 {
		t.Errorf("Second seed = %d, %v, expected no new users", created, err)
	}
}
