package dht

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/andreasstamos/chordify/pkg/errors"
)

// Join drives the joining node N's side of the membership protocol
// (spec §4.6 Join): send join to the bootstrap, block for joinResponse,
// apply it, then trigger a finger-table rebuild.
func (n *Node) Join(ctx context.Context, bootstrapURL string) error {
	if err := n.peer.Join(ctx, bootstrapURL, JoinMsg{NewNodeURL: n.url}); err != nil {
		return fmt.Errorf("join: send to bootstrap failed: %w", err)
	}

	select {
	case <-n.joinResult:
	case <-ctx.Done():
		return ctx.Err()
	}

	n.InitiateFingerTableRebuild(ctx)
	return nil
}

// HandleJoin is the inbound entry point for join: forward toward the
// node responsible for hash(new_node_url) (using the primary range),
// or execute new_pred if this node is responsible.
func (n *Node) HandleJoin(ctx context.Context, msg JoinMsg) {
	if n.hasDeparted() {
		return
	}
	h := HashID(msg.NewNodeURL)
	if n.IsResponsible(h) {
		n.newPred(ctx, msg.NewNodeURL)
		return
	}
	next := n.FingerLookup(h)
	if err := n.peer.Join(ctx, next, msg); err != nil {
		n.log.Error("join: forward failed", "to", next, "err", err)
	}
}

// newPred is P's handling of a join it is responsible for (spec §4.6
// step 3): computes N's hand-off set and initial replica stack, tells N
// and P's old predecessor, updates P's own pred/range, and propagates
// either inc_replication_factor (growing) or shift_up_replicas
// (steady-state r == K).
func (n *Node) newPred(ctx context.Context, newNodeURL string) {
	hashU := HashID(newNodeURL)

	n.topoMu.Lock()
	oldKeysStart := new(big.Int).Set(n.keysStart)
	oldPred := n.pred
	r := len(n.replicas)
	k := n.maxReplicationFactor

	handOff := make(map[string]string)
	for key, v := range n.replicas[0] {
		if InRange(oldKeysStart, hashU, HashID(key)) {
			handOff[key] = v
		}
	}

	growing := r < k
	newR := r
	if growing {
		newR = r + 1
	}
	newReplicas := make([]map[string]string, newR)
	newReplicas[0] = handOff
	for i := 1; i < r; i++ {
		cp := make(map[string]string, len(n.replicas[i]))
		for key, v := range n.replicas[i] {
			cp[key] = v
		}
		newReplicas[i] = cp
	}
	if growing {
		extra := make(map[string]string)
		for key, v := range n.replicas[0] {
			if _, handed := handOff[key]; !handed {
				extra[key] = v
			}
		}
		newReplicas[newR-1] = extra
	}
	n.topoMu.Unlock()

	resp := JoinResponseMsg{
		Pred:                 oldPred.URL,
		Succ:                 n.url,
		KeysStart:            bigToStr(oldKeysStart),
		KeysEnd:              bigToStr(hashU),
		ReplicationFactor:    newR,
		MaxReplicationFactor: k,
		ConsistencyModel:     n.consistency,
		NewReplicas:          newReplicas,
	}
	if err := n.peer.JoinResponse(ctx, newNodeURL, resp); err != nil {
		n.log.Error("join: joinResponse send failed", "to", newNodeURL, "err", err)
		return
	}

	if err := n.peer.UpdateSuccInfo(ctx, oldPred.URL, UpdateSuccInfoMsg{NewNodeURL: newNodeURL}); err != nil {
		n.log.Error("join: update_succ_info send failed", "to", oldPred.URL, "err", err)
	}

	n.topoMu.Lock()
	n.keysStart = succID(hashU)
	n.pred = newRemoteNode(newNodeURL)
	n.topoMu.Unlock()
	n.resetInboundSequencer()

	newKeysStart := succID(hashU)
	n.topoMu.RLock()
	newKeysEnd := new(big.Int).Set(n.keysEnd)
	n.topoMu.RUnlock()

	if growing {
		n.InitiateIncReplicationFactor(ctx, 1, oldKeysStart, hashU, newNodeURL)
	} else {
		n.InitiateShiftUpReplicas(ctx, newKeysStart, newKeysEnd)
	}
}

// HandleJoinResponse is the inbound entry point for joinResponse. It
// applies the new state before unblocking the waiting Join call, not
// after: P's next steps (update_succ_info, inc_replication_factor or
// shift_up_replicas) can reach N again before N's own Join call resumes
// running, and N must already have a valid pred/succ/replicas by then.
func (n *Node) HandleJoinResponse(msg JoinResponseMsg) {
	n.applyJoinResponse(msg)
	select {
	case n.joinResult <- msg:
	default:
	}
}

func (n *Node) applyJoinResponse(msg JoinResponseMsg) {
	n.topoMu.Lock()
	defer n.topoMu.Unlock()

	n.pred = newRemoteNode(msg.Pred)
	n.succ = newRemoteNode(msg.Succ)
	n.keysStart = bigFromStr(msg.KeysStart)
	n.keysEnd = bigFromStr(msg.KeysEnd)
	n.replicationFactor = msg.ReplicationFactor
	n.maxReplicationFactor = msg.MaxReplicationFactor
	n.consistency = msg.ConsistencyModel
	n.replicas = msg.NewReplicas
}

// HandleUpdateSuccInfo is the inbound entry point for update_succ_info:
// the receiver's successor identity changed.
func (n *Node) HandleUpdateSuccInfo(msg UpdateSuccInfoMsg) {
	if n.hasDeparted() {
		return
	}
	n.topoMu.Lock()
	n.succ = newRemoteNode(msg.NewNodeURL)
	n.topoMu.Unlock()
	n.resetOutboundSequencer()
}

// Depart drives a non-bootstrap node's graceful exit (spec §4.6
// Depart). The caller is expected to stop accepting client requests
// once this returns.
func (n *Node) Depart(ctx context.Context) error {
	if n.isBootstrap {
		return errors.Forbidden("Bootstrap node cannot depart.", nil)
	}

	if err := n.lock.Acquire(ctx); err != nil {
		return fmt.Errorf("depart: lock acquire failed: %w", err)
	}
	defer func() {
		if err := n.lock.Release(ctx); err != nil {
			n.log.Error("depart: lock release failed", "err", err)
		}
	}()

	for !n.reorderBufferEmpty() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}

	n.topoMu.RLock()
	predURL := n.pred.URL
	succURL := n.succ.URL
	keysStart := bigToStr(n.keysStart)
	r := len(n.replicas)
	var tail map[string]string
	if r > 0 {
		tail = n.replicas[r-1]
	}
	n.topoMu.RUnlock()

	if err := n.peer.UpdateSuccInfo(ctx, predURL, UpdateSuccInfoMsg{NewNodeURL: succURL}); err != nil {
		return fmt.Errorf("depart: update_succ_info failed: %w", err)
	}

	msg := DepartPredMsg{KeysStart: keysStart, PredecessorURL: predURL, MaxdistReplica: tail}
	if err := n.peer.DepartPred(ctx, succURL, msg); err != nil {
		return fmt.Errorf("depart: departPred failed: %w", err)
	}

	n.topoMu.Lock()
	n.pred = nil
	n.succ = nil
	n.topoMu.Unlock()
	n.departed.Store(true)
	return nil
}

// HandleDepartPred is the inbound entry point for departPred on a
// departed node's successor S (spec §4.6): S absorbs D's range,
// rebuilds its finger table, and starts shift_down_replicas.
func (n *Node) HandleDepartPred(ctx context.Context, msg DepartPredMsg) {
	n.topoMu.Lock()
	n.keysStart = bigFromStr(msg.KeysStart)
	n.pred = newRemoteNode(msg.PredecessorURL)
	if len(n.replicas) > 1 {
		// replicas[1] already held D's primary data, one chain hop
		// downstream of D. The imminent shift_down_replicas walk is
		// about to move every level one step closer to the primary
		// (replicas[0] ← replicas[1] ← replicas[2] ← ...), so this
		// node's own primary data must move into replicas[1] now, not
		// replicas[0] — otherwise the shift overwrites replicas[0] and
		// this node's own keys are lost instead of landing back at
		// level 0 alongside D's.
		if n.replicas[1] == nil {
			n.replicas[1] = make(map[string]string)
		}
		for key, v := range n.replicas[0] {
			n.replicas[1][key] = v
		}
	}
	n.topoMu.Unlock()
	n.resetInboundSequencer()

	n.InitiateFingerTableRebuild(ctx)
	n.InitiateShiftDownReplicas(ctx, msg.MaxdistReplica)
}
