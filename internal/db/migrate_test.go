package db

import "testing"

func TestMigrationVersions(t *testing.T) {
	versions, err := migrationVersions()
	if err != nil {
		t.Fatalf("Failed to read migrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != "001_init.sql" {
		t.Fatalf("Expected 001_init.sql first, got %v", versions)
	}
}
