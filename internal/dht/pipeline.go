package dht

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Modify is the client-facing entry point for insert/delete (spec
// §4.5/§6.1). It blocks until the operation's chain replication
// completes and operation_resp fires, or ctx is done.
func (n *Node) Modify(ctx context.Context, op Op, key, value string) (any, error) {
	return n.operationDriver(ctx, func(uid uuid.UUID) {
		n.dispatchModify(ctx, ModifyMsg{UID: uid, OriginURL: n.url, Op: op, Key: key, Value: value})
	})
}

// HandleModify is the inbound entry point for the routing-entry modify
// RPC (spec §4.5): begin a replication chain if responsible, else
// forward toward the owner via finger_lookup.
func (n *Node) HandleModify(ctx context.Context, msg ModifyMsg) {
	if n.hasDeparted() {
		return
	}
	n.dispatchModify(ctx, msg)
}

func (n *Node) dispatchModify(ctx context.Context, msg ModifyMsg) {
	h := HashID(msg.Key)
	if n.IsResponsible(h) {
		rep := ReplicateModifyMsg{UID: msg.UID, OriginURL: msg.OriginURL, Op: msg.Op, Key: msg.Key, Value: msg.Value, Distance: 0, Seq: nil}
		n.HandleReplicateModify(rep)
		return
	}
	next := n.FingerLookup(h)
	if err := n.peer.Modify(ctx, next, msg); err != nil {
		n.log.Error("modify: forward failed", "to", next, "err", err)
	}
}

// Query is the client-facing entry point for a single-key read (spec
// §4.5/§6.1). key is always treated as a literal key, "*" included;
// the full dump is QueryStar.
func (n *Node) Query(ctx context.Context, key string) (any, error) {
	return n.operationDriver(ctx, func(uid uuid.UUID) {
		n.dispatchQuery(ctx, QueryMsg{UID: uid, OriginURL: n.url, Key: key})
	})
}

// HandleQuery is the inbound entry point for the routing-entry query
// RPC.
func (n *Node) HandleQuery(ctx context.Context, msg QueryMsg) {
	if n.hasDeparted() {
		return
	}
	n.dispatchQuery(ctx, msg)
}

func (n *Node) dispatchQuery(ctx context.Context, msg QueryMsg) {
	h := HashID(msg.Key)

	if n.consistency == Linearizable {
		if n.IsResponsible(h) {
			rep := ReplicateQueryMsg{UID: msg.UID, OriginURL: msg.OriginURL, Key: msg.Key, Distance: 0, Seq: nil}
			n.HandleReplicateQuery(rep)
			return
		}
		next := n.FingerLookup(h)
		if err := n.peer.Query(ctx, next, msg); err != nil {
			n.log.Error("query: forward failed", "to", next, "err", err)
		}
		return
	}

	// EVENTUAL: answer locally if responsible, else scan the local
	// replica stack tail-to-head for the first hit, else forward.
	if n.IsResponsible(h) {
		n.topoMu.RLock()
		v, ok := n.replicas[0][msg.Key]
		n.topoMu.RUnlock()
		var resp any
		if ok {
			resp = v
		}
		if err := n.peer.OperationResp(ctx, msg.OriginURL, OperationRespMsg{UID: msg.UID, Response: resp}); err != nil {
			n.log.Error("query: operation_resp failed", "to", msg.OriginURL, "err", err)
		}
		return
	}

	n.topoMu.RLock()
	var hit any
	found := false
	for i := len(n.replicas) - 1; i >= 0; i-- {
		if v, ok := n.replicas[i][msg.Key]; ok {
			hit = v
			found = true
			break
		}
	}
	n.topoMu.RUnlock()
	if found {
		if err := n.peer.OperationResp(ctx, msg.OriginURL, OperationRespMsg{UID: msg.UID, Response: hit}); err != nil {
			n.log.Error("query: operation_resp failed", "to", msg.OriginURL, "err", err)
		}
		return
	}

	next := n.FingerLookup(h)
	if err := n.peer.Query(ctx, next, msg); err != nil {
		n.log.Error("query: forward failed", "to", next, "err", err)
	}
}

// QueryStar is the client-facing entry point for a full dump (spec
// §4.5, key == "*").
func (n *Node) QueryStar(ctx context.Context) (any, error) {
	return n.operationDriver(ctx, func(uid uuid.UUID) {
		n.dispatchQueryStar(ctx, QueryStarMsg{UID: uid, OriginURL: n.url, Accumulator: nil})
	})
}

// HandleQueryStar is the inbound entry point for query_star: it
// accumulates this node's tail replica set and forwards, replying to
// the origin once the walk returns.
func (n *Node) HandleQueryStar(ctx context.Context, msg QueryStarMsg) {
	if n.hasDeparted() {
		return
	}
	n.dispatchQueryStar(ctx, msg)
}

func (n *Node) dispatchQueryStar(ctx context.Context, msg QueryStarMsg) {
	if msg.Accumulator != nil && msg.OriginURL == n.url {
		if err := n.peer.OperationResp(ctx, msg.OriginURL, OperationRespMsg{UID: msg.UID, Response: msg.Accumulator}); err != nil {
			n.log.Error("query_star: operation_resp failed", "to", msg.OriginURL, "err", err)
		}
		return
	}

	acc := make(map[string]string, len(msg.Accumulator))
	for k, v := range msg.Accumulator {
		acc[k] = v
	}
	n.topoMu.RLock()
	r := len(n.replicas)
	if r > 0 {
		for k, v := range n.replicas[r-1] {
			acc[k] = v
		}
	}
	succURL := n.succ.URL
	n.topoMu.RUnlock()

	fwd := QueryStarMsg{UID: msg.UID, OriginURL: msg.OriginURL, Accumulator: acc}
	if err := n.peer.QueryStar(ctx, succURL, fwd); err != nil {
		n.log.Error("query_star: forward failed", "to", succURL, "err", err)
	}
}

// Overlay is the client-facing entry point for ring introspection
// (spec §4.5/§6.1).
func (n *Node) Overlay(ctx context.Context) ([]NodeInfo, error) {
	return n.walkOverlay(ctx)
}

// walkOverlay drives the overlay ring walk and blocks for its result,
// shared by the client-facing Overlay call and internal callers (e.g.
// the dec_replication_factor trigger's ring-size count).
func (n *Node) walkOverlay(ctx context.Context) ([]NodeInfo, error) {
	resp, err := n.operationDriver(ctx, func(uid uuid.UUID) {
		n.dispatchOverlay(ctx, OverlayMsg{UID: uid, OriginURL: n.url, Accumulator: []NodeInfo{}})
	})
	if err != nil {
		return nil, err
	}
	nodes, ok := resp.([]NodeInfo)
	if !ok {
		return nil, fmt.Errorf("overlay: unexpected response type %T", resp)
	}
	return nodes, nil
}

// HandleOverlay is the inbound entry point for overlay: it appends its
// own snapshot and forwards, replying to the origin once the walk
// returns.
func (n *Node) HandleOverlay(ctx context.Context, msg OverlayMsg) {
	if n.hasDeparted() {
		return
	}
	n.dispatchOverlay(ctx, msg)
}

func (n *Node) dispatchOverlay(ctx context.Context, msg OverlayMsg) {
	if len(msg.Accumulator) > 0 && msg.OriginURL == n.url {
		if err := n.peer.OperationResp(ctx, msg.OriginURL, OperationRespMsg{UID: msg.UID, Response: msg.Accumulator}); err != nil {
			n.log.Error("overlay: operation_resp failed", "to", msg.OriginURL, "err", err)
		}
		return
	}
	acc := append(append([]NodeInfo{}, msg.Accumulator...), n.Snapshot())
	succURL := n.successorURL()

	fwd := OverlayMsg{UID: msg.UID, OriginURL: msg.OriginURL, Accumulator: acc}
	if err := n.peer.Overlay(ctx, succURL, fwd); err != nil {
		n.log.Error("overlay: forward failed", "to", succURL, "err", err)
	}
}
