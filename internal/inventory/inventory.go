// Package inventory tracks the set of pools currently known to the
// watcher, keyed by (program, account), so that late-arriving updates can
// be merged into a pool's decoded metadata and so the enrichment stage can
// look up a pool's current PoolInfo without re-fetching it.
package inventory

import (
	"sync"

	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

// Inventory is a concurrent nested map: program -> account -> PoolInfo.
// Nesting by program lets Count and the per-program Snapshot avoid
// scanning pools from other programs, mirroring how the teacher's
// PoolRegistry is itself partitioned per swap-pool config file.
type Inventory struct {
	mu    sync.RWMutex
	pools map[string]map[string]alert.PoolInfo
}

// New constructs an empty Inventory.
func New() *Inventory {
	return &Inventory{pools: make(map[string]map[string]alert.PoolInfo)}
}

// Upsert inserts or replaces a pool's decoded info and reports whether the
// account was new to the inventory.
func (inv *Inventory) Upsert(info alert.PoolInfo) (isNew bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	byAccount, ok := inv.pools[info.Id.Program]
	if !ok {
		byAccount = make(map[string]alert.PoolInfo)
		inv.pools[info.Id.Program] = byAccount
	}

	_, existed := byAccount[info.Id.Account]
	byAccount[info.Id.Account] = info
	return !existed
}

// Remove drops a pool from the inventory. It is a no-op if absent.
func (inv *Inventory) Remove(id alert.PoolId) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	byAccount, ok := inv.pools[id.Program]
	if !ok {
		return
	}
	delete(byAccount, id.Account)
	if len(byAccount) == 0 {
		delete(inv.pools, id.Program)
	}
}

// Get returns a pool's current info, if known.
func (inv *Inventory) Get(id alert.PoolId) (alert.PoolInfo, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	byAccount, ok := inv.pools[id.Program]
	if !ok {
		return alert.PoolInfo{}, false
	}
	info, ok := byAccount[id.Account]
	return info, ok
}

// Count returns the number of pools tracked under program, or the total
// across all programs if program is empty.
func (inv *Inventory) Count(program string) int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	if program != "" {
		return len(inv.pools[program])
	}
	total := 0
	for _, byAccount := range inv.pools {
		total += len(byAccount)
	}
	return total
}

// Snapshot returns a shallow copy of every pool currently tracked under
// program. The returned slice is safe to range over without holding a lock.
func (inv *Inventory) Snapshot(program string) []alert.PoolInfo {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	byAccount := inv.pools[program]
	out := make([]alert.PoolInfo, 0, len(byAccount))
	for _, info := range byAccount {
		out = append(out, info)
	}
	return out
}

// ReplaceProgram atomically swaps the entire pool set for program, used by
// the watcher's periodic resync to discard pools that disappeared on-chain
// without ever emitting an explicit AccountDeleted event for them.
func (inv *Inventory) ReplaceProgram(program string, infos []alert.PoolInfo) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	byAccount := make(map[string]alert.PoolInfo, len(infos))
	for _, info := range infos {
		byAccount[info.Id.Account] = info
	}
	inv.pools[program] = byAccount
}
