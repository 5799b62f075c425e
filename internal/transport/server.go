package transport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/andreasstamos/chordify/internal/dht"
	apperrors "github.com/andreasstamos/chordify/pkg/errors"
)

// Handler wires the client API (spec §6.1) and the peer-to-peer RPC
// surface (spec §6.2) to a dht.Node. Data-plane RPCs are dispatched in
// a background goroutine and acknowledged immediately (spec §5:
// "fire-and-forget for data-plane chain hops"); membership RPCs block
// the HTTP response until they complete, matching their synchronous
// ordering requirement.
type Handler struct {
	node *dht.Node
	log  *slog.Logger
}

func NewHandler(node *dht.Node, log *slog.Logger) *Handler {
	return &Handler{node: node, log: log}
}

// Register binds every route this node serves onto e.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/api/modify", h.apiModify)
	e.POST("/api/query", h.apiQuery)
	e.POST("/api/overlay", h.apiOverlay)
	e.POST("/api/depart", h.apiDepart)

	e.POST("/rpc/modify", h.rpcModify)
	e.POST("/rpc/query", h.rpcQuery)
	e.POST("/rpc/replicateModify", h.rpcReplicateModify)
	e.POST("/rpc/replicateQuery", h.rpcReplicateQuery)
	e.POST("/rpc/query_star", h.rpcQueryStar)
	e.POST("/rpc/operation_resp", h.rpcOperationResp)
	e.POST("/rpc/join", h.rpcJoin)
	e.POST("/rpc/joinResponse", h.rpcJoinResponse)
	e.POST("/rpc/update_succ_info", h.rpcUpdateSuccInfo)
	e.POST("/rpc/departPred", h.rpcDepartPred)
	e.POST("/rpc/shiftUpReplicas", h.rpcShiftUpReplicas)
	e.POST("/rpc/shiftDownReplicas", h.rpcShiftDownReplicas)
	e.POST("/rpc/incReplicationFactor", h.rpcIncReplicationFactor)
	e.POST("/rpc/decReplicationFactor", h.rpcDecReplicationFactor)
	e.POST("/rpc/overlay", h.rpcOverlay)
	e.POST("/rpc/updateFingerTablePhase1", h.rpcUpdateFingerTablePhase1)
	e.POST("/rpc/updateFingerTablePhase2", h.rpcUpdateFingerTablePhase2)
}

// --- client API (spec §6.1) ---

type modifyRequest struct {
	Operation dht.Op `json:"operation"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

func (h *Handler) apiModify(c echo.Context) error {
	var req modifyRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed modify request", err))
	}
	if req.Operation != dht.OpInsert && req.Operation != dht.OpDelete {
		return respondErr(c, apperrors.InvalidArgument("operation must be insert or delete", nil))
	}
	if req.Operation == dht.OpInsert && req.Value == "" {
		return respondErr(c, apperrors.InvalidArgument("value required for insert", nil))
	}

	resp, err := h.node.Modify(c.Request().Context(), req.Operation, req.Key, req.Value)
	if err != nil {
		return respondErr(c, apperrors.Internal("modify failed", err))
	}
	return c.JSON(http.StatusOK, map[string]any{"response": resp})
}

type queryRequest struct {
	Key string `json:"key"`
}

func (h *Handler) apiQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed query request", err))
	}

	var (
		resp any
		err  error
	)
	if req.Key == "*" {
		resp, err = h.node.QueryStar(c.Request().Context())
	} else {
		resp, err = h.node.Query(c.Request().Context(), req.Key)
	}
	if err != nil {
		return respondErr(c, apperrors.Internal("query failed", err))
	}
	return c.JSON(http.StatusOK, map[string]any{"response": resp})
}

func (h *Handler) apiOverlay(c echo.Context) error {
	nodes, err := h.node.Overlay(c.Request().Context())
	if err != nil {
		return respondErr(c, apperrors.Internal("overlay failed", err))
	}
	return c.JSON(http.StatusOK, nodes)
}

func (h *Handler) apiDepart(c echo.Context) error {
	if err := h.node.Depart(c.Request().Context()); err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			return respondErr(c, appErr)
		}
		return respondErr(c, apperrors.Internal("depart failed", err))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "departed"})
}

func respondErr(c echo.Context, err error) error {
	return c.JSON(apperrors.HTTPStatus(err), map[string]string{"error": err.Error()})
}

// --- peer RPCs (spec §6.2) ---
//
// Data-plane RPCs dispatch into a background goroutine with a fresh
// context, since the chain hop they trigger may itself block on a
// further outbound RPC and the caller does not wait for it.

func (h *Handler) rpcModify(c echo.Context) error {
	var msg dht.ModifyMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed modify rpc", err))
	}
	go h.node.HandleModify(context.Background(), msg)
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) rpcQuery(c echo.Context) error {
	var msg dht.QueryMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed query rpc", err))
	}
	go h.node.HandleQuery(context.Background(), msg)
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) rpcReplicateModify(c echo.Context) error {
	var msg dht.ReplicateModifyMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed replicateModify rpc", err))
	}
	go h.node.HandleReplicateModify(msg)
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) rpcReplicateQuery(c echo.Context) error {
	var msg dht.ReplicateQueryMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed replicateQuery rpc", err))
	}
	go h.node.HandleReplicateQuery(msg)
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) rpcQueryStar(c echo.Context) error {
	var msg dht.QueryStarMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed query_star rpc", err))
	}
	go h.node.HandleQueryStar(context.Background(), msg)
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) rpcOperationResp(c echo.Context) error {
	var msg dht.OperationRespMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed operation_resp rpc", err))
	}
	h.node.HandleOperationResp(msg)
	return c.NoContent(http.StatusOK)
}

// --- membership RPCs: synchronous, block until complete ---

func (h *Handler) rpcJoin(c echo.Context) error {
	var msg dht.JoinMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed join rpc", err))
	}
	h.node.HandleJoin(c.Request().Context(), msg)
	return c.NoContent(http.StatusOK)
}

func (h *Handler) rpcJoinResponse(c echo.Context) error {
	var msg dht.JoinResponseMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed joinResponse rpc", err))
	}
	h.node.HandleJoinResponse(msg)
	return c.NoContent(http.StatusOK)
}

func (h *Handler) rpcUpdateSuccInfo(c echo.Context) error {
	var msg dht.UpdateSuccInfoMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed update_succ_info rpc", err))
	}
	h.node.HandleUpdateSuccInfo(msg)
	return c.NoContent(http.StatusOK)
}

func (h *Handler) rpcDepartPred(c echo.Context) error {
	var msg dht.DepartPredMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed departPred rpc", err))
	}
	h.node.HandleDepartPred(c.Request().Context(), msg)
	return c.NoContent(http.StatusOK)
}

func (h *Handler) rpcShiftUpReplicas(c echo.Context) error {
	var msg dht.ShiftUpReplicasMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed shiftUpReplicas rpc", err))
	}
	h.node.HandleShiftUpReplicas(c.Request().Context(), msg)
	return c.NoContent(http.StatusOK)
}

func (h *Handler) rpcShiftDownReplicas(c echo.Context) error {
	var msg dht.ShiftDownReplicasMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed shiftDownReplicas rpc", err))
	}
	h.node.HandleShiftDownReplicas(c.Request().Context(), msg)
	return c.NoContent(http.StatusOK)
}

func (h *Handler) rpcIncReplicationFactor(c echo.Context) error {
	var msg dht.IncReplicationFactorMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed incReplicationFactor rpc", err))
	}
	h.node.HandleIncReplicationFactor(c.Request().Context(), msg)
	return c.NoContent(http.StatusOK)
}

func (h *Handler) rpcDecReplicationFactor(c echo.Context) error {
	var msg dht.DecReplicationFactorMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed decReplicationFactor rpc", err))
	}
	h.node.HandleDecReplicationFactor(c.Request().Context(), msg)
	return c.NoContent(http.StatusOK)
}

func (h *Handler) rpcOverlay(c echo.Context) error {
	var msg dht.OverlayMsg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed overlay rpc", err))
	}
	go h.node.HandleOverlay(context.Background(), msg)
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) rpcUpdateFingerTablePhase1(c echo.Context) error {
	var msg dht.FingerPhase1Msg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed updateFingerTablePhase1 rpc", err))
	}
	h.node.HandleFingerTablePhase1(c.Request().Context(), msg)
	return c.NoContent(http.StatusOK)
}

func (h *Handler) rpcUpdateFingerTablePhase2(c echo.Context) error {
	var msg dht.FingerPhase2Msg
	if err := c.Bind(&msg); err != nil {
		return respondErr(c, apperrors.InvalidArgument("malformed updateFingerTablePhase2 rpc", err))
	}
	h.node.HandleFingerTablePhase2(c.Request().Context(), msg)
	return c.NoContent(http.StatusOK)
}
