package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = '?' AND c = ?"
	assert.Equal(t, q, Rebind(SQLite, q))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = '?' AND c = $2", Rebind(Postgres, q))
}

func TestUpsert(t *testing.T) {
	cols := []string{"id", "name", "price"}
	key := []string{"id"}
	upd := []string{"name", "price"}

	assert.Equal(t,
		"INSERT INTO p (id, name, price) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name), price = VALUES(price)",
		Upsert(MySQL, "p", cols, key, upd))
	assert.Equal(t,
		"INSERT INTO p (id, name, price) VALUES (?, ?, ?) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price",
		Upsert(Postgres, "p", cols, key, upd))
	assert.Equal(t,
		"INSERT INTO p (id, name, price) VALUES (?, ?, ?) ON CONFLICT (id) DO UPDATE SET name = excluded.name, price = excluded.price",
		Upsert(SQLite, "p", cols, key, upd))
}

func TestNormalizeDialect(t *testing.T) {
	d, err := NormalizeDialect("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = NormalizeDialect("oracle")
	assert.Error(t, err)
}
