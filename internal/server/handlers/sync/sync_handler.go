package sync

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mirrorlab/codesync/internal/sdk"
	"github.com/mirrorlab/codesync/internal/server/handlers/api"
	"github.com/mirrorlab/codesync/internal/server/index"
)

type SyncHandler struct {
	svc *index.Service
}

func New(svc *index.Service) *SyncHandler {
	return &SyncHandler{
		svc: svc,
	}
}

func (h *SyncHandler) Register(ctx *gin.Context) {
	var req sdk.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}
	if req.ProjectID == "" {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("projectId is required"))
		return
	}

	name := req.Name
	if name == "" {
		name = req.ProjectID
	}
	project, err := h.svc.Register(req.ProjectID, name)
	if err != nil {
		abortServiceError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, sdk.RegisterResponse{
		ProjectID:    project.ProjectID,
		RegisteredAt: project.RegisteredAt.Format(time.RFC3339),
	})
}

func (h *SyncHandler) Probe(ctx *gin.Context) {
	var req sdk.ProbeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	rootHash, _, err := h.svc.Probe(req.ProjectID)
	if err != nil {
		abortServiceError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, sdk.ProbeResponse{
		UpToDate: rootHash == req.RootHash,
	})
}

func (h *SyncHandler) Negotiate(ctx *gin.Context) {
	var req sdk.NegotiateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	leaves, err := sdk.LeavesToMap(req.Leaves)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidSnapshot, err)
		return
	}

	changes, err := h.svc.Negotiate(req.ProjectID, leaves)
	if err != nil {
		abortServiceError(ctx, err)
		return
	}

	changed := make([]string, 0, len(changes.Added)+len(changes.Modified))
	changed = append(changed, changes.Added...)
	changed = append(changed, changes.Modified...)

	ctx.PureJSON(http.StatusOK, sdk.NegotiateResponse{
		ChangedPaths: changed,
		RemovedPaths: changes.Removed,
	})
}

func (h *SyncHandler) PushChanges(ctx *gin.Context) {
	var req sdk.PushChangesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	changes := make([]index.FileChange, 0, len(req.Files))
	for _, f := range req.Files {
		changes = append(changes, index.FileChange{
			Path:        f.Path,
			Content:     f.Content,
			ClaimedHash: f.ClaimedHash,
		})
	}

	result, err := h.svc.ApplyChanges(ctx.Request.Context(), req.ProjectID, changes)
	if err != nil {
		abortServiceError(ctx, err)
		return
	}

	rejected := make([]sdk.RejectedPath, 0, len(result.Rejected))
	for _, r := range result.Rejected {
		rejected = append(rejected, sdk.RejectedPath{Path: r.Path, Reason: r.Reason})
	}

	ctx.PureJSON(http.StatusOK, sdk.PushChangesResponse{
		Accepted: result.Accepted,
		Rejected: rejected,
	})
}

func (h *SyncHandler) PushRemovals(ctx *gin.Context) {
	var req sdk.PushRemovalsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	if _, err := h.svc.ApplyRemovals(ctx.Request.Context(), req.ProjectID, req.Paths); err != nil {
		abortServiceError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, sdk.PushRemovalsResponse{
		Ack: true,
	})
}

func (h *SyncHandler) ListProjects(ctx *gin.Context) {
	projects, counts, err := h.svc.ListProjects()
	if err != nil {
		abortServiceError(ctx, err)
		return
	}

	infos := make([]sdk.ProjectInfo, 0, len(projects))
	for i, p := range projects {
		infos = append(infos, sdk.ProjectInfo{
			ProjectID: p.ProjectID,
			Name:      p.Name,
			RootHash:  p.RootHash,
			FileCount: counts[i],
			LastSync:  p.LastSync.Format(time.RFC3339),
		})
	}

	ctx.PureJSON(http.StatusOK, sdk.ProjectsResponse{
		Count:    len(infos),
		Projects: infos,
	})
}

func abortServiceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, index.ErrProjectNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeProjectNotFound, err)
	case errors.Is(err, index.ErrSyncInProgress):
		api.AbortWithError(ctx, http.StatusConflict, api.CodeSyncInProgress, err)
	case errors.Is(err, index.ErrInvalidSnapshot):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidSnapshot, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
	}
}
