package sdk

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/mirrorlab/codesync/internal/merkle"
	"github.com/mirrorlab/codesync/internal/version"
)

const (
	HeaderUserAgent       = "User-Agent"
	HeaderCodeSyncVersion = "X-CodeSync-Version"
)

var UserAgent = fmt.Sprintf("CodeSync/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// TreeLeaf is one file leaf of a snapshot on the wire.
type TreeLeaf struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// RegisterRequest registers a project before its first sync.
type RegisterRequest struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name,omitempty"`
}

type RegisterResponse struct {
	ProjectID    string `json:"projectId"`
	RegisteredAt string `json:"registeredAt"`
}

// ProbeRequest is the cheap root-hash comparison that opens every cycle.
type ProbeRequest struct {
	ProjectID string `json:"projectId"`
	RootHash  string `json:"rootHash"`
}

type ProbeResponse struct {
	UpToDate bool `json:"upToDate"`
}

// NegotiateRequest submits the client's full current snapshot so the server
// can compute the canonical diff against its acknowledged snapshot.
type NegotiateRequest struct {
	ProjectID string     `json:"projectId"`
	RootHash  string     `json:"rootHash"`
	Leaves    []TreeLeaf `json:"leaves"`
}

type NegotiateResponse struct {
	ChangedPaths []string `json:"changedPaths"`
	RemovedPaths []string `json:"removedPaths"`
}

// FileUpload is one changed file's content plus its claimed hash. The server
// re-hashes the content before accepting it.
type FileUpload struct {
	Path        string `json:"path"`
	Content     []byte `json:"content"`
	ClaimedHash string `json:"claimedHash"`
}

type PushChangesRequest struct {
	ProjectID string       `json:"projectId"`
	Files     []FileUpload `json:"files"`
}

// RejectedPath names a path the server refused, with the reason.
type RejectedPath struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type PushChangesResponse struct {
	Accepted []string       `json:"accepted"`
	Rejected []RejectedPath `json:"rejected"`
}

type PushRemovalsRequest struct {
	ProjectID string   `json:"projectId"`
	Paths     []string `json:"paths"`
}

type PushRemovalsResponse struct {
	Ack bool `json:"ack"`
}

type ProjectInfo struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	RootHash  string `json:"rootHash"`
	FileCount int    `json:"fileCount"`
	LastSync  string `json:"lastSync"`
}

type ProjectsResponse struct {
	Count    int           `json:"count"`
	Projects []ProjectInfo `json:"projects"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Projects int    `json:"projects"`
	Uptime   string `json:"uptime"`
}

// LeavesFromMap converts a path→hash map to a sorted wire snapshot.
func LeavesFromMap(leaves map[string]string) []TreeLeaf {
	out := make([]TreeLeaf, 0, len(leaves))
	for p, h := range leaves {
		out = append(out, TreeLeaf{Path: p, Hash: h})
	}
	sortLeaves(out)
	return out
}

// LeavesToMap converts a wire snapshot back to a map, validating hashes.
func LeavesToMap(leaves []TreeLeaf) (map[string]string, error) {
	out := make(map[string]string, len(leaves))
	for _, l := range leaves {
		if !merkle.ValidHash(l.Hash) {
			return nil, fmt.Errorf("leaf %q: %w", l.Path, merkle.ErrInvalidHash)
		}
		out[l.Path] = l.Hash
	}
	return out, nil
}

func sortLeaves(leaves []TreeLeaf) {
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Path < leaves[j].Path })
}
