package dht

import (
	"context"
)

// HandleReplicateModify is the inbound entry point for a chain-replication
// write hop (spec §4.4 "Modify chain step"). It is also what a local
// modify() call uses to apply distance 0 on the primary itself.
func (n *Node) HandleReplicateModify(msg ReplicateModifyMsg) {
	if n.hasDeparted() {
		return
	}
	n.gateChain(msg.Seq, func() { n.applyModifyStep(msg) })
}

// HandleReplicateQuery is the inbound entry point for a linearizable tail-read
// chain hop.
func (n *Node) HandleReplicateQuery(msg ReplicateQueryMsg) {
	if n.hasDeparted() {
		return
	}
	n.gateChain(msg.Seq, func() { n.applyQueryStep(msg) })
}

func (n *Node) applyModifyStep(msg ReplicateModifyMsg) {
	n.topoMu.Lock()
	if msg.Distance < 0 || msg.Distance >= len(n.replicas) {
		n.topoMu.Unlock()
		n.log.Error("modify: distance out of range", "distance", msg.Distance, "r", len(n.replicas))
		return
	}
	level := n.replicas[msg.Distance]
	switch msg.Op {
	case OpInsert:
		level[msg.Key] = level[msg.Key] + msg.Value
	case OpDelete:
		delete(level, msg.Key)
	}
	r := n.replicationFactor
	succURL := n.succ.URL
	n.topoMu.Unlock()

	ctx := context.Background()
	if msg.Distance < r-1 {
		fwd := msg
		fwd.Distance++
		seq := n.nextSeqToSucc()
		fwd.Seq = &seq
		if err := n.peer.ReplicateModify(ctx, succURL, fwd); err != nil {
			n.log.Error("modify: chain forward failed", "to", succURL, "err", err)
		}
		return
	}
	resp := OperationRespMsg{UID: msg.UID, Response: map[string]any{"status": "ok"}}
	if err := n.peer.OperationResp(ctx, msg.OriginURL, resp); err != nil {
		n.log.Error("modify: operation_resp failed", "to", msg.OriginURL, "err", err)
	}
}

func (n *Node) applyQueryStep(msg ReplicateQueryMsg) {
	n.topoMu.Lock()
	r := n.replicationFactor
	succURL := n.succ.URL
	var value any
	if msg.Distance == r-1 {
		if v, ok := n.replicas[r-1][msg.Key]; ok {
			value = v
		}
	}
	n.topoMu.Unlock()

	ctx := context.Background()
	if msg.Distance < r-1 {
		fwd := msg
		fwd.Distance++
		seq := n.nextSeqToSucc()
		fwd.Seq = &seq
		if err := n.peer.ReplicateQuery(ctx, succURL, fwd); err != nil {
			n.log.Error("query: chain forward failed", "to", succURL, "err", err)
		}
		return
	}
	if err := n.peer.OperationResp(ctx, msg.OriginURL, OperationRespMsg{UID: msg.UID, Response: value}); err != nil {
		n.log.Error("query: operation_resp failed", "to", msg.OriginURL, "err", err)
	}
}

// gateChain implements the FIFO-over-non-FIFO emulation of spec §4.4.
// A nil seq marks a locally originated message (the primary itself,
// starting the chain) and bypasses gating entirely, since it is the
// source of the sequence rather than a link in it.
func (n *Node) gateChain(seq *uint64, apply func()) {
	if seq == nil {
		apply()
		return
	}
	n.seqMu.Lock()
	s := *seq
	switch {
	case s == n.seqFromPrev:
		n.seqFromPrev++
		n.seqMu.Unlock()
		apply()
		n.drainReorderBuffer()
	case s > n.seqFromPrev:
		n.reorderBuffer[s] = reorderEntry{apply: apply}
		n.seqMu.Unlock()
	default:
		n.seqMu.Unlock()
		n.log.Error("sequencer: seq below expected, treating as a programming error",
			"seq", s, "expected", n.seqFromPrev)
	}
}

// drainReorderBuffer applies any parked messages that are now next in
// line, in order, stopping at the first gap.
func (n *Node) drainReorderBuffer() {
	for {
		n.seqMu.Lock()
		next := n.seqFromPrev
		entry, ok := n.reorderBuffer[next]
		if !ok {
			n.seqMu.Unlock()
			return
		}
		delete(n.reorderBuffer, next)
		n.seqFromPrev++
		n.seqMu.Unlock()
		entry.apply()
	}
}

// nextSeqToSucc allocates the next outbound sequence number for a
// message to this node's successor.
func (n *Node) nextSeqToSucc() uint64 {
	n.seqMu.Lock()
	defer n.seqMu.Unlock()
	s := n.seqToSucc
	n.seqToSucc++
	return s
}

// resetInboundSequencer clears seqFromPrev and the reorder buffer. It
// must be called whenever this node's predecessor identity changes
// (new predecessor arrives, or this node itself departs).
func (n *Node) resetInboundSequencer() {
	n.seqMu.Lock()
	defer n.seqMu.Unlock()
	n.seqFromPrev = 0
	n.reorderBuffer = make(map[uint64]reorderEntry)
}

// resetOutboundSequencer clears seqToSucc. It must be called whenever
// this node's successor identity changes (successor departed, this
// node's own depart retargets its successor chain, or a new successor
// is adopted).
func (n *Node) resetOutboundSequencer() {
	n.seqMu.Lock()
	defer n.seqMu.Unlock()
	n.seqToSucc = 0
}

// reorderBufferEmpty reports whether the inbound reorder buffer holds
// no parked messages. Depart busy-waits on this before proceeding
// (spec §4.6 step 2).
func (n *Node) reorderBufferEmpty() bool {
	n.seqMu.Lock()
	defer n.seqMu.Unlock()
	return len(n.reorderBuffer) == 0
}
