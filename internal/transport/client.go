// Package transport implements the dht.Peer outbound interface over
// JSON-over-HTTP POST, and the matching inbound echo server that
// unmarshals requests and calls into internal/dht.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/andreasstamos/chordify/internal/dht"
)

// ClientConfig tunes the two outbound client pools (spec §4.6/§7:
// membership RPCs retry transient transport errors; data-plane chain
// hops are best-effort and do not retry).
type ClientConfig struct {
	DataTimeout     time.Duration `env:"PEER_DATA_TIMEOUT" env-default:"2s"`
	ControlTimeout  time.Duration `env:"PEER_CONTROL_TIMEOUT" env-default:"10s"`
	ControlRetryMax int           `env:"PEER_CONTROL_RETRIES" env-default:"3"`
}

// Client is the outbound half of the peer-to-peer RPC surface,
// implementing dht.Peer. It keeps two distinct pools: a best-effort
// client for data-plane chain hops, and a retrying client for
// membership RPCs whose ordering correctness depends on eventually
// landing (spec §4.6's "mandates retries of transient transport errors
// at least at the transport layer").
type Client struct {
	data    *http.Client
	control *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = cfg.ControlRetryMax
	retry.HTTPClient.Timeout = cfg.ControlTimeout
	retry.Logger = nil

	return &Client{
		data:    &http.Client{Timeout: cfg.DataTimeout},
		control: retry.StandardClient(),
	}
}

func postJSON(ctx context.Context, client *http.Client, url, path string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s to %s failed: %w", path, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s to %s returned status %d", path, url, resp.StatusCode)
	}
	return nil
}

func (c *Client) Modify(ctx context.Context, url string, msg dht.ModifyMsg) error {
	return postJSON(ctx, c.data, url, "/rpc/modify", msg)
}

func (c *Client) Query(ctx context.Context, url string, msg dht.QueryMsg) error {
	return postJSON(ctx, c.data, url, "/rpc/query", msg)
}

func (c *Client) ReplicateModify(ctx context.Context, url string, msg dht.ReplicateModifyMsg) error {
	return postJSON(ctx, c.data, url, "/rpc/replicateModify", msg)
}

func (c *Client) ReplicateQuery(ctx context.Context, url string, msg dht.ReplicateQueryMsg) error {
	return postJSON(ctx, c.data, url, "/rpc/replicateQuery", msg)
}

func (c *Client) QueryStar(ctx context.Context, url string, msg dht.QueryStarMsg) error {
	return postJSON(ctx, c.data, url, "/rpc/query_star", msg)
}

func (c *Client) OperationResp(ctx context.Context, url string, msg dht.OperationRespMsg) error {
	return postJSON(ctx, c.data, url, "/rpc/operation_resp", msg)
}

func (c *Client) Join(ctx context.Context, url string, msg dht.JoinMsg) error {
	return postJSON(ctx, c.control, url, "/rpc/join", msg)
}

func (c *Client) JoinResponse(ctx context.Context, url string, msg dht.JoinResponseMsg) error {
	return postJSON(ctx, c.control, url, "/rpc/joinResponse", msg)
}

func (c *Client) UpdateSuccInfo(ctx context.Context, url string, msg dht.UpdateSuccInfoMsg) error {
	return postJSON(ctx, c.control, url, "/rpc/update_succ_info", msg)
}

func (c *Client) DepartPred(ctx context.Context, url string, msg dht.DepartPredMsg) error {
	return postJSON(ctx, c.control, url, "/rpc/departPred", msg)
}

func (c *Client) ShiftUpReplicas(ctx context.Context, url string, msg dht.ShiftUpReplicasMsg) error {
	return postJSON(ctx, c.control, url, "/rpc/shiftUpReplicas", msg)
}

func (c *Client) ShiftDownReplicas(ctx context.Context, url string, msg dht.ShiftDownReplicasMsg) error {
	return postJSON(ctx, c.control, url, "/rpc/shiftDownReplicas", msg)
}

func (c *Client) IncReplicationFactor(ctx context.Context, url string, msg dht.IncReplicationFactorMsg) error {
	return postJSON(ctx, c.control, url, "/rpc/incReplicationFactor", msg)
}

func (c *Client) DecReplicationFactor(ctx context.Context, url string, msg dht.DecReplicationFactorMsg) error {
	return postJSON(ctx, c.control, url, "/rpc/decReplicationFactor", msg)
}

func (c *Client) Overlay(ctx context.Context, url string, msg dht.OverlayMsg) error {
	return postJSON(ctx, c.control, url, "/rpc/overlay", msg)
}

func (c *Client) UpdateFingerTablePhase1(ctx context.Context, url string, msg dht.FingerPhase1Msg) error {
	return postJSON(ctx, c.control, url, "/rpc/updateFingerTablePhase1", msg)
}

func (c *Client) UpdateFingerTablePhase2(ctx context.Context, url string, msg dht.FingerPhase2Msg) error {
	return postJSON(ctx, c.control, url, "/rpc/updateFingerTablePhase2", msg)
}

var _ dht.Peer = (*Client)(nil)
