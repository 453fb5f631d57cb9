package sdk

import (
	"context"

	"github.com/imroc/req/v3"
)

const (
	v1Register     = "/api/v1/sync/register"
	v1Probe        = "/api/v1/sync/probe"
	v1Negotiate    = "/api/v1/sync/negotiate"
	v1PushChanges  = "/api/v1/sync/push"
	v1PushRemovals = "/api/v1/sync/removals"
	v1Projects     = "/api/v1/sync/projects"
)

// SyncAPI carries the sync protocol operations.
type SyncAPI struct {
	client *req.Client
}

func newSyncAPI(client *req.Client) *SyncAPI {
	return &SyncAPI{client: client}
}

// Register creates server-side state for a project before its first sync.
func (s *SyncAPI) Register(ctx context.Context, params *RegisterRequest) (out *RegisterResponse, err error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&out).
		Post(v1Register)

	if err := handleAPIError(resp, err, "sync register"); err != nil {
		return nil, err
	}
	return out, nil
}

// Probe is the cheap per-cycle root-hash comparison. When the server's
// acknowledged root hash matches, the cycle ends with no further exchange.
func (s *SyncAPI) Probe(ctx context.Context, params *ProbeRequest) (out *ProbeResponse, err error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&out).
		Post(v1Probe)

	if err := handleAPIError(resp, err, "sync probe"); err != nil {
		return nil, err
	}
	return out, nil
}

// Negotiate submits the full current snapshot; the server computes the
// canonical diff and returns the paths that need retransmission or eviction.
func (s *SyncAPI) Negotiate(ctx context.Context, params *NegotiateRequest) (out *NegotiateResponse, err error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&out).
		Post(v1Negotiate)

	if err := handleAPIError(resp, err, "sync negotiate"); err != nil {
		return nil, err
	}
	return out, nil
}

// PushChanges uploads changed file contents with their claimed hashes.
func (s *SyncAPI) PushChanges(ctx context.Context, params *PushChangesRequest) (out *PushChangesResponse, err error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&out).
		Post(v1PushChanges)

	if err := handleAPIError(resp, err, "sync push changes"); err != nil {
		return nil, err
	}
	return out, nil
}

// PushRemovals tells the server to evict index state for removed paths.
func (s *SyncAPI) PushRemovals(ctx context.Context, params *PushRemovalsRequest) (out *PushRemovalsResponse, err error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&out).
		Post(v1PushRemovals)

	if err := handleAPIError(resp, err, "sync push removals"); err != nil {
		return nil, err
	}
	return out, nil
}

// Projects lists registered projects.
func (s *SyncAPI) Projects(ctx context.Context) (out *ProjectsResponse, err error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetSuccessResult(&out).
		Get(v1Projects)

	if err := handleAPIError(resp, err, "sync projects"); err != nil {
		return nil, err
	}
	return out, nil
}

// Health checks server liveness.
func (s *SyncAPI) Health(ctx context.Context) (out *HealthResponse, err error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetSuccessResult(&out).
		Get("/healthz")

	if err := handleAPIError(resp, err, "health"); err != nil {
		return nil, err
	}
	return out, nil
}
