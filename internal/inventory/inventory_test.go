package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

func pool(program, account string) alert.PoolInfo {
	return alert.PoolInfo{Dex: alert.OrcaWhirlpools, Id: alert.PoolId{Program: program, Account: account}}
}

func TestUpsert_ReportsNewVsExisting(t *testing.T) {
	inv := New()

	isNew := inv.Upsert(pool("p1", "a1"))
	assert.True(t, isNew)

	isNew = inv.Upsert(pool("p1", "a1"))
	assert.False(t, isNew)

	assert.Equal(t, 1, inv.Count("p1"))
}

func TestRemove(t *testing.T) {
	inv := New()
	inv.Upsert(pool("p1", "a1"))
	inv.Upsert(pool("p1", "a2"))

	inv.Remove(alert.PoolId{Program: "p1", Account: "a1"})
	assert.Equal(t, 1, inv.Count("p1"))

	inv.Remove(alert.PoolId{Program: "p1", Account: "a2"})
	assert.Equal(t, 0, inv.Count("p1"))

	_, ok := inv.Get(alert.PoolId{Program: "p1", Account: "a1"})
	assert.False(t, ok)
}

func TestCount_TotalAcrossPrograms(t *testing.T) {
	inv := New()
	inv.Upsert(pool("p1", "a1"))
	inv.Upsert(pool("p2", "a1"))
	inv.Upsert(pool("p2", "a2"))

	assert.Equal(t, 3, inv.Count(""))
	assert.Equal(t, 1, inv.Count("p1"))
	assert.Equal(t, 2, inv.Count("p2"))
}

func TestReplaceProgram_DropsStalePools(t *testing.T) {
	inv := New()
	inv.Upsert(pool("p1", "a1"))
	inv.Upsert(pool("p1", "a2"))

	inv.ReplaceProgram("p1", []alert.PoolInfo{pool("p1", "a2"), pool("p1", "a3")})

	assert.Equal(t, 2, inv.Count("p1"))
	_, ok := inv.Get(alert.PoolId{Program: "p1", Account: "a1"})
	assert.False(t, ok)
	_, ok = inv.Get(alert.PoolId{Program: "p1", Account: "a3"})
	assert.True(t, ok)
}

func TestSnapshot_ReturnsCopy(t *testing.T) {
	inv := New()
	inv.Upsert(pool("p1", "a1"))

	snap := inv.Snapshot("p1")
	assert.Len(t, snap, 1)

	inv.Upsert(pool("p1", "a2"))
	assert.Len(t, snap, 1, "snapshot must not observe later mutations")
}
