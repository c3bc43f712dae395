// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration_test

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/profilegate/data"
	"github.com/taibuivan/profilegate/internal/platform/migration"
)

func TestToPgx5DSN(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/gate":   "pgx5://u:p@db:5432/gate",
		"postgresql://u:p@db:5432/gate": "pgx5://u:p@db:5432/gate",
		"pgx5://u:p@db:5432/gate":       "pgx5://u:p@db:5432/gate",
	}

	for input, want := range tests {
		assert.Equal(t, want, migration.ToPgx5DSN(input))
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(data.Migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(data.Migrations, "migrations/*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
