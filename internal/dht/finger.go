package dht

import (
	"context"
	"math/big"
	"sort"
)

// FingerLookup returns the URL of the next hop when this node is not
// responsible for h (spec §4.2).
func (n *Node) FingerLookup(h *big.Int) string {
	n.topoMu.RLock()
	defer n.topoMu.RUnlock()

	if inArcExclusiveStart(n.id, n.succ.ID, h) {
		return n.succ.URL
	}
	for i := 0; i < IDBits; i++ {
		f := n.fingerTable[i]
		if f == nil {
			continue
		}
		if inArcExclusiveStart(n.id, f.ID, h) {
			for j := i - 1; j >= 0; j-- {
				if n.fingerTable[j] != nil {
					return n.fingerTable[j].URL
				}
			}
			return n.succ.URL
		}
	}
	for i := IDBits - 1; i >= 0; i-- {
		if n.fingerTable[i] != nil {
			return n.fingerTable[i].URL
		}
	}
	return n.succ.URL
}

// rebuildFingerTableEntries implements the two-phase-walk finger
// table construction of spec §4.2: given the full set of live node
// URLs, sort by id, rotate so the successor of selfID leads, derive
// each member's arc-inclusive range from that rotation, then for
// every j assign finger[j] to the member whose range covers
// (selfID + 2^j) mod 2^160.
func rebuildFingerTableEntries(selfID *big.Int, urls []string) [IDBits]*RemoteNode {
	var table [IDBits]*RemoteNode

	seen := make(map[string]bool, len(urls))
	members := make([]*RemoteNode, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		members = append(members, newRemoteNode(u))
	}
	if len(members) == 0 {
		return table
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID.Cmp(members[j].ID) < 0 })

	count := len(members)
	startIdx := 0
	for i, m := range members {
		if m.ID.Cmp(selfID) > 0 {
			startIdx = i
			break
		}
	}
	rotated := make([]*RemoteNode, count)
	for i := 0; i < count; i++ {
		rotated[i] = members[(startIdx+i)%count]
	}
	starts := make([]*big.Int, count)
	for i := 0; i < count; i++ {
		prev := rotated[(i-1+count)%count]
		starts[i] = succID(prev.ID)
	}

	for j := 0; j < IDBits; j++ {
		target := idPlusPow2(selfID, j)
		assigned := rotated[count-1]
		for i := 0; i < count; i++ {
			if InRange(starts[i], rotated[i].ID, target) {
				assigned = rotated[i]
				break
			}
		}
		table[j] = assigned
	}
	return table
}

func (n *Node) applyFingerTable(urls []string) {
	table := rebuildFingerTableEntries(n.id, urls)
	n.topoMu.Lock()
	n.fingerTable = table
	n.topoMu.Unlock()
}

// InitiateFingerTableRebuild starts the two-phase ring walk. It is
// invoked by a node after its own join completes, and by a depart's
// successor after it absorbs the departed node's range.
func (n *Node) InitiateFingerTableRebuild(ctx context.Context) {
	succ := n.successorURL()
	msg := FingerPhase1Msg{InitiatorURL: n.url, URLs: []string{n.url}}
	if err := n.peer.UpdateFingerTablePhase1(ctx, succ, msg); err != nil {
		n.log.Error("finger rebuild: phase 1 send failed", "err", err)
	}
}

// HandleFingerTablePhase1 is the inbound entry point for phase 1: it
// appends this node's URL and forwards, unless the walk has come back
// to its initiator, in which case phase 2 begins.
func (n *Node) HandleFingerTablePhase1(ctx context.Context, msg FingerPhase1Msg) {
	if n.hasDeparted() {
		return
	}
	if msg.InitiatorURL == n.url {
		n.startFingerTablePhase2(ctx, msg.URLs)
		return
	}
	urls := append(append([]string{}, msg.URLs...), n.url)
	succ := n.successorURL()
	fwd := FingerPhase1Msg{InitiatorURL: msg.InitiatorURL, URLs: urls}
	if err := n.peer.UpdateFingerTablePhase1(ctx, succ, fwd); err != nil {
		n.log.Error("finger rebuild: phase 1 forward failed", "err", err)
	}
}

func (n *Node) startFingerTablePhase2(ctx context.Context, urls []string) {
	n.applyFingerTable(urls)
	succ := n.successorURL()
	msg := FingerPhase2Msg{InitiatorURL: n.url, URLs: urls}
	if err := n.peer.UpdateFingerTablePhase2(ctx, succ, msg); err != nil {
		n.log.Error("finger rebuild: phase 2 send failed", "err", err)
	}
}

// HandleFingerTablePhase2 is the inbound entry point for phase 2:
// every node locally rebuilds its 160 finger entries from the now
// complete URL list and forwards it on, until it returns to the
// initiator.
func (n *Node) HandleFingerTablePhase2(ctx context.Context, msg FingerPhase2Msg) {
	if n.hasDeparted() {
		return
	}
	if msg.InitiatorURL == n.url {
		return
	}
	n.applyFingerTable(msg.URLs)
	succ := n.successorURL()
	if err := n.peer.UpdateFingerTablePhase2(ctx, succ, msg); err != nil {
		n.log.Error("finger rebuild: phase 2 forward failed", "err", err)
	}
}
