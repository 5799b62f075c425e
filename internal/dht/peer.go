package dht

import "context"

// Peer is the outbound half of the peer-to-peer RPC surface (spec
// §6.2): everything a node needs to say to another node. The DHT core
// depends only on this interface; internal/transport supplies the
// concrete JSON-over-HTTP implementation, so the membership and
// chain-replication logic in this package can be unit-tested against
// an in-memory fake.
//
// Data-plane calls (Modify, Query, QueryStar, OperationResp) are
// best-effort: callers log a returned error and move on, matching
// §7's "data-plane forwards are best-effort". Membership calls are
// synchronous and their errors are treated as fatal to the operation
// in progress, per §4.6/§7.
type Peer interface {
	Modify(ctx context.Context, url string, msg ModifyMsg) error
	Query(ctx context.Context, url string, msg QueryMsg) error
	ReplicateModify(ctx context.Context, url string, msg ReplicateModifyMsg) error
	ReplicateQuery(ctx context.Context, url string, msg ReplicateQueryMsg) error
	QueryStar(ctx context.Context, url string, msg QueryStarMsg) error
	OperationResp(ctx context.Context, url string, msg OperationRespMsg) error

	Join(ctx context.Context, url string, msg JoinMsg) error
	JoinResponse(ctx context.Context, url string, msg JoinResponseMsg) error
	UpdateSuccInfo(ctx context.Context, url string, msg UpdateSuccInfoMsg) error
	DepartPred(ctx context.Context, url string, msg DepartPredMsg) error
	ShiftUpReplicas(ctx context.Context, url string, msg ShiftUpReplicasMsg) error
	ShiftDownReplicas(ctx context.Context, url string, msg ShiftDownReplicasMsg) error
	IncReplicationFactor(ctx context.Context, url string, msg IncReplicationFactorMsg) error
	DecReplicationFactor(ctx context.Context, url string, msg DecReplicationFactorMsg) error
	Overlay(ctx context.Context, url string, msg OverlayMsg) error
	UpdateFingerTablePhase1(ctx context.Context, url string, msg FingerPhase1Msg) error
	UpdateFingerTablePhase2(ctx context.Context, url string, msg FingerPhase2Msg) error
}

// Locker is the cluster-wide topology mutual exclusion primitive of
// §5/§6.3. Depart acquires it around its entire sequence so that
// concurrent joins/departs are serialised ring-wide.
type Locker interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}
