package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlan(t *testing.T) {
	up := []string{"m/0002_index.up.sql", "m/0001_transfers.up.sql", "m/0003_more.up.sql"}
	down := []string{"m/0001_transfers.down.sql", "m/0002_index.down.sql", "m/0003_more.down.sql"}

	versions := func(ms []migration) []string {
		var out []string
		for _, m := range ms {
			out = append(out, m.version)
		}
		return out
	}

	t.Run("up skips applied", func(t *testing.T) {
		got := plan(up, map[string]bool{"0001_transfers": true}, "up", 0)
		assert.Equal(t, []string{"0002_index", "0003_more"}, versions(got))
	})

	t.Run("up with steps", func(t *testing.T) {
		got := plan(up, map[string]bool{}, "up", 1)
		assert.Equal(t, []string{"0001_transfers"}, versions(got))
	})

	t.Run("down runs newest applied first", func(t *testing.T) {
		got := plan(down, map[string]bool{"0001_transfers": true, "0002_index": true}, "down", 0)
		assert.Equal(t, []string{"0002_index", "0001_transfers"}, versions(got))
	})

	t.Run("nothing to do", func(t *testing.T) {
		assert.Empty(t, plan(up, map[string]bool{"0001_transfers": true, "0002_index": true, "0003_more": true}, "up", 0))
	})
}

func TestMigrationsDir(t *testing.T) {
	assert.Equal(t, "/custom", migrationsDir("/custom"))
}
