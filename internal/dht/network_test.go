package dht_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/andreasstamos/chordify/internal/dht"
	"github.com/andreasstamos/chordify/internal/lockservice"
)

// fakeNetwork is an in-process stand-in for internal/transport: it
// dispatches dht.Peer calls straight into the target node's exported
// Handle* methods instead of over HTTP, so multi-node join/depart/
// chain-replication scenarios run synchronously and deterministically
// under go test.
type fakeNetwork struct {
	mu    sync.Mutex
	nodes map[string]*dht.Node
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{nodes: make(map[string]*dht.Node)}
}

func (fn *fakeNetwork) register(n *dht.Node) {
	fn.mu.Lock()
	defer fn.mu.Unlock()
	fn.nodes[n.URL()] = n
}

func (fn *fakeNetwork) get(url string) (*dht.Node, error) {
	fn.mu.Lock()
	defer fn.mu.Unlock()
	n, ok := fn.nodes[url]
	if !ok {
		return nil, fmt.Errorf("fakeNetwork: no node registered for %q", url)
	}
	return n, nil
}

type fakePeer struct {
	net *fakeNetwork
}

func (p *fakePeer) Modify(ctx context.Context, url string, msg dht.ModifyMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleModify(ctx, msg)
	return nil
}

func (p *fakePeer) Query(ctx context.Context, url string, msg dht.QueryMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleQuery(ctx, msg)
	return nil
}

func (p *fakePeer) ReplicateModify(ctx context.Context, url string, msg dht.ReplicateModifyMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleReplicateModify(msg)
	return nil
}

func (p *fakePeer) ReplicateQuery(ctx context.Context, url string, msg dht.ReplicateQueryMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleReplicateQuery(msg)
	return nil
}

func (p *fakePeer) QueryStar(ctx context.Context, url string, msg dht.QueryStarMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleQueryStar(ctx, msg)
	return nil
}

func (p *fakePeer) OperationResp(ctx context.Context, url string, msg dht.OperationRespMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleOperationResp(msg)
	return nil
}

func (p *fakePeer) Join(ctx context.Context, url string, msg dht.JoinMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleJoin(ctx, msg)
	return nil
}

func (p *fakePeer) JoinResponse(ctx context.Context, url string, msg dht.JoinResponseMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleJoinResponse(msg)
	return nil
}

func (p *fakePeer) UpdateSuccInfo(ctx context.Context, url string, msg dht.UpdateSuccInfoMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleUpdateSuccInfo(msg)
	return nil
}

func (p *fakePeer) DepartPred(ctx context.Context, url string, msg dht.DepartPredMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleDepartPred(ctx, msg)
	return nil
}

func (p *fakePeer) ShiftUpReplicas(ctx context.Context, url string, msg dht.ShiftUpReplicasMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleShiftUpReplicas(ctx, msg)
	return nil
}

func (p *fakePeer) ShiftDownReplicas(ctx context.Context, url string, msg dht.ShiftDownReplicasMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleShiftDownReplicas(ctx, msg)
	return nil
}

func (p *fakePeer) IncReplicationFactor(ctx context.Context, url string, msg dht.IncReplicationFactorMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleIncReplicationFactor(ctx, msg)
	return nil
}

func (p *fakePeer) DecReplicationFactor(ctx context.Context, url string, msg dht.DecReplicationFactorMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleDecReplicationFactor(ctx, msg)
	return nil
}

func (p *fakePeer) Overlay(ctx context.Context, url string, msg dht.OverlayMsg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleOverlay(ctx, msg)
	return nil
}

func (p *fakePeer) UpdateFingerTablePhase1(ctx context.Context, url string, msg dht.FingerPhase1Msg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleFingerTablePhase1(ctx, msg)
	return nil
}

func (p *fakePeer) UpdateFingerTablePhase2(ctx context.Context, url string, msg dht.FingerPhase2Msg) error {
	n, err := p.net.get(url)
	if err != nil {
		return err
	}
	n.HandleFingerTablePhase2(ctx, msg)
	return nil
}

var _ dht.Peer = (*fakePeer)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testRing bootstraps a single node and joins count-1 further nodes
// onto it in sequence, sharing one fakeNetwork and one cluster-wide
// lock (internal/lockservice.Service, used in-process exactly as
// cmd/node wires it over HTTP). Every node's URL is "http://node-<i>".
type testRing struct {
	net   *fakeNetwork
	lock  *lockservice.Service
	nodes []*dht.Node
}

func newTestRing(ctx context.Context, count, k int, consistency dht.ConsistencyMode) (*testRing, error) {
	net := newFakeNetwork()
	peer := &fakePeer{net: net}
	lock := lockservice.New(discardLogger())

	tr := &testRing{net: net, lock: lock}

	boot := dht.NewBootstrap(dht.Config{
		URL:                  "http://node-0",
		MaxReplicationFactor: k,
		ConsistencyModel:     consistency,
		IsBootstrap:          true,
	}, peer, lock, discardLogger())
	net.register(boot)
	tr.nodes = append(tr.nodes, boot)

	for i := 1; i < count; i++ {
		url := fmt.Sprintf("http://node-%d", i)
		n := dht.NewJoining(dht.Config{
			URL:                  url,
			MaxReplicationFactor: k,
			ConsistencyModel:     consistency,
			IsBootstrap:          false,
		}, peer, lock, discardLogger())
		net.register(n)
		if err := n.Join(ctx, "http://node-0"); err != nil {
			return nil, fmt.Errorf("node %d join failed: %w", i, err)
		}
		tr.nodes = append(tr.nodes, n)
	}
	return tr, nil
}

func (tr *testRing) node(i int) *dht.Node { return tr.nodes[i] }
