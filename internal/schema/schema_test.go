package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestDefault(t *testing.T) {
	ctx := Default()
	require.True(t, gjson.Valid(ctx))

	for _, table := range []string{"sale_order", "sale_order_line", "res_partner", "account_move", "stock_picking", "hr_employee"} {
		assert.True(t, gjson.Get(ctx, "tables."+table).Exists(), table)
	}
	assert.NotEmpty(t, gjson.Get(ctx, "relationships").Array())
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses default", func(t *testing.T) {
		ctx, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), ctx)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "schema.txt")
		require.NoError(t, os.WriteFile(path, []byte("\n  orders(id, total)\n"), 0o600))

		ctx, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "orders(id, total)", ctx)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "schema.json")
		require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}
