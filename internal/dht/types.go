package dht

import (
	"math/big"

	"github.com/google/uuid"
)

// ConsistencyMode selects whether linearizable (tail-read chain
// replication) or eventual (first-replica-wins) semantics govern
// queries. It does not affect writes: writes always chain head to
// tail.
type ConsistencyMode string

const (
	Linearizable ConsistencyMode = "LINEARIZABLE"
	Eventual     ConsistencyMode = "EVENTUAL"
)

// Op names the two mutating operations modify() dispatches on.
type Op string

const (
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// RemoteNode is a logical reference to a peer: its network identity
// and the identifier derived from it. Chord never keeps live
// in-process pointers across the ring — every neighbour reference is
// a (URL, ID) pair resolved back to a live connection by the
// transport layer on each call.
type RemoteNode struct {
	URL string
	ID  *big.Int
}

func newRemoteNode(url string) *RemoteNode {
	if url == "" {
		return nil
	}
	return &RemoteNode{URL: url, ID: HashID(url)}
}

// NodeInfo is the introspection record returned by overlay: one entry
// per live node, used both by the /api/overlay response and by the
// testable-properties suite (ring closure, range tiling).
type NodeInfo struct {
	URL       string `json:"url"`
	Pred      string `json:"predecessor_url"`
	Succ      string `json:"successor_url"`
	KeysStart string `json:"keys_start"`
	KeysEnd   string `json:"keys_end"`
}

// ModifyMsg is the routing-entry point of the operation pipeline
// (spec §4.5 modify(uid, origin_url, op, key, value)): sent to
// whichever node the client (or a forwarding finger hop) believes may
// be responsible for the key. The receiving node either begins a
// replicateModify chain at distance 0, or forwards this same message
// on via finger_lookup.
type ModifyMsg struct {
	UID       uuid.UUID `json:"uid"`
	OriginURL string    `json:"origin_url"`
	Op        Op        `json:"operation"`
	Key       string    `json:"key"`
	Value     string    `json:"value,omitempty"`
}

// ReplicateModifyMsg carries one hop of the chain-replication write
// (insert/delete) once a chain has begun at the primary. Seq is nil
// for a locally originated message (the primary itself beginning the
// chain); such messages bypass reorder gating, since they are the
// source of the sequence rather than a link in it.
type ReplicateModifyMsg struct {
	UID       uuid.UUID `json:"uid"`
	OriginURL string    `json:"origin_url"`
	Op        Op        `json:"operation"`
	Key       string    `json:"key"`
	Value     string    `json:"value,omitempty"`
	Distance  int       `json:"distance"`
	Seq       *uint64   `json:"seq,omitempty"`
}

// QueryMsg is the routing-entry point for query(uid, origin_url, key)
// (spec §4.5). Under EVENTUAL consistency the receiving node answers
// from its own replica stack if it holds the key anywhere, or
// forwards this same message via finger_lookup. Under LINEARIZABLE
// consistency, the receiving node begins a replicateQuery chain at
// distance 0 if responsible, else forwards via finger_lookup.
type QueryMsg struct {
	UID       uuid.UUID `json:"uid"`
	OriginURL string    `json:"origin_url"`
	Key       string    `json:"key"`
}

// ReplicateQueryMsg carries one hop of the linearizable tail-read
// chain once it has begun at the primary.
type ReplicateQueryMsg struct {
	UID       uuid.UUID `json:"uid"`
	OriginURL string    `json:"origin_url"`
	Key       string    `json:"key"`
	Distance  int       `json:"distance"`
	Seq       *uint64   `json:"seq,omitempty"`
}

// QueryStarMsg carries the accumulator around the ring for a full
// dump (query key == "*").
type QueryStarMsg struct {
	UID         uuid.UUID         `json:"uid"`
	OriginURL   string            `json:"origin_url"`
	Accumulator map[string]string `json:"accumulator"`
}

// OperationRespMsg is the asynchronous reply delivered back to the
// request originator once a chain operation completes at the tail.
type OperationRespMsg struct {
	UID      uuid.UUID `json:"uid"`
	Response any       `json:"response"`
}

// JoinMsg is the initial request a joining node sends to the
// bootstrap (or any node, which forwards it on).
type JoinMsg struct {
	NewNodeURL string `json:"new_node_url"`
}

// JoinResponseMsg is P's reply to the joining node N, handing over N's
// initial state.
type JoinResponseMsg struct {
	Pred                 string              `json:"pred"`
	Succ                 string              `json:"succ"`
	KeysStart            string              `json:"keys_start"`
	KeysEnd              string              `json:"keys_end"`
	ReplicationFactor    int                 `json:"replication_factor"`
	MaxReplicationFactor int                 `json:"max_replication_factor"`
	ConsistencyModel     ConsistencyMode     `json:"consistency_model"`
	NewReplicas          []map[string]string `json:"new_replicas"`
}

// UpdateSuccInfoMsg tells the receiver its successor changed.
type UpdateSuccInfoMsg struct {
	NewNodeURL string `json:"new_node_url"`
}

// DepartPredMsg is sent by a departing node D to its successor S,
// handing S the keys D owned and D's old predecessor.
type DepartPredMsg struct {
	KeysStart      string            `json:"keys_start"`
	PredecessorURL string            `json:"predecessor_url"`
	MaxdistReplica map[string]string `json:"maxdist_replica"`
}

// ShiftUpReplicasMsg propagates a replica re-indexing caused by a join
// that did not grow the replication factor.
type ShiftUpReplicasMsg struct {
	Distance     int    `json:"distance"`
	ExcludeStart string `json:"exclude_start"`
	ExcludeEnd   string `json:"exclude_end"`
}

// ShiftDownReplicasMsg propagates a replica re-indexing caused by a
// depart.
type ShiftDownReplicasMsg struct {
	OriginURL      string            `json:"origin_url"`
	Distance       int               `json:"distance"`
	MaxdistReplica map[string]string `json:"maxdist_replica"`
}

// IncReplicationFactorMsg grows every node's replica stack by one
// level when the ring has grown enough to support a higher r (up to
// the configured K). NewNodeURL identifies the joining node N: the
// walk's forward path runs from P all the way around to P again, which
// passes through N as an intermediate hop (N's successor is P), so
// every recipient must recognize N and pass it through without
// re-applying the generic growth step, since applyJoinResponse already
// built N's replica stack in full.
type IncReplicationFactorMsg struct {
	InitiatorURL string `json:"initiator_url"`
	NewNodeURL   string `json:"new_node_url"`
	Distance     int    `json:"distance"`
	NewNodeStart string `json:"new_node_start"`
	NewNodeEnd   string `json:"new_node_end"`
}

// DecReplicationFactorMsg shrinks every node's replica stack by one
// level when the ring has shrunk below the configured K.
type DecReplicationFactorMsg struct {
	InitiatorURL string `json:"initiator_url"`
}

// OverlayMsg accumulates ring topology as it is walked once around.
type OverlayMsg struct {
	UID         uuid.UUID  `json:"uid"`
	OriginURL   string     `json:"origin_url"`
	Accumulator []NodeInfo `json:"accumulator"`
}

// FingerPhase1Msg accumulates URLs on the first pass around the ring
// after a membership change.
type FingerPhase1Msg struct {
	InitiatorURL string   `json:"initiator_url"`
	URLs         []string `json:"urls"`
}

// FingerPhase2Msg carries the completed URL list on the second pass,
// so every node can locally rebuild its finger table.
type FingerPhase2Msg struct {
	InitiatorURL string   `json:"initiator_url"`
	URLs         []string `json:"urls"`
}

func bigToStr(x *big.Int) string { return x.Text(10) }

func bigFromStr(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}
