package dht

import (
	"context"

	"github.com/google/uuid"

	"github.com/andreasstamos/chordify/pkg/concurrency"
)

// correlator ties an originator's blocking call to the asynchronous
// operation_resp that eventually arrives after the request has
// traversed the ring (spec §4.5). Waiters are keyed by request id and
// live for a few hops' worth of round-trip latency, making them a good
// fit for concurrency.ShardedMapString's per-shard locking: concurrent
// client operations register/deliver on independent shards instead of
// contending on one mutex for the whole node.
type correlator struct {
	waiters *concurrency.ShardedMapString[chan any]
}

func newCorrelator() *correlator {
	return &correlator{
		waiters: concurrency.NewShardedMapString[chan any](),
	}
}

func (c *correlator) register(uid uuid.UUID) chan any {
	ch := make(chan any, 1)
	c.waiters.Set(uid.String(), ch)
	return ch
}

func (c *correlator) forget(uid uuid.UUID) {
	c.waiters.Delete(uid.String())
}

// deliver fires the waiter for uid with resp, if one is still
// registered. A second delivery for the same uid is silently
// dropped: spec §4.5 only requires idempotence "to the extent of
// delivering the first response and ignoring later ones", since
// reliable single replies are assumed.
func (c *correlator) deliver(uid uuid.UUID, resp any) {
	key := uid.String()
	ch, ok := c.waiters.Get(key)
	if !ok {
		return
	}
	c.waiters.Delete(key)
	select {
	case ch <- resp:
	default:
	}
}

// operationDriver allocates a request id, registers a wait handle,
// invokes start (which is expected to kick off the operation,
// eventually causing an operation_resp to be delivered for uid), and
// blocks until that reply arrives or ctx is done.
func (n *Node) operationDriver(ctx context.Context, start func(uid uuid.UUID)) (any, error) {
	uid := uuid.New()
	ch := n.pending.register(uid)
	start(uid)
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		n.pending.forget(uid)
		return nil, ctx.Err()
	}
}

// HandleOperationResp is the inbound entry point for operation_resp
// (spec §6.2): it fires the originator's waiting call, if any.
func (n *Node) HandleOperationResp(msg OperationRespMsg) {
	n.pending.deliver(msg.UID, msg.Response)
}
