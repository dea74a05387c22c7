package database

import "testing"

func TestMigrationVersion(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"001_initial_schema.sql", 1},
		{"012_chip_playlists.sql", 12},
		{"README.md", 0},
		{"abc_schema.sql", 0},
		{"002-missing-underscore.sql", 0},
		{"003_notes.txt", 0},
	}

	for _, tc := range tests {
		if got := migrationVersion(tc.name); got != tc.want {
			t.Errorf("migrationVersion(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
}
