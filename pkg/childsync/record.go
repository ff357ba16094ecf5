// Package childsync keeps child records of a parent entity editable before the
// parent exists, and reconciles them with a remote store once it does.
//
// A Cache holds the ordered rows of one category. Rows entered locally start
// pending; a Coordinator creates them remotely as soon as the shared Parent
// has an id, and a Fetcher merges the server's confirmed rows back in without
// disturbing rows that are still pending. An Editor bundles the three for one
// category and exposes the add/edit/remove handlers a form needs.
package childsync

import "context"

// Record is one child row as seen by the form.
//
// Pending is true exactly when ServerID is empty. LocalKey never changes for
// the lifetime of the row, including across the pending to confirmed transition.
type Record[F any] struct {
	LocalKey string `json:"local_key"`
	ServerID string `json:"server_id,omitempty"`
	Pending  bool   `json:"pending"`
	Fields   F      `json:"fields"`
}

// ServerRecord is a row as returned by the remote store.
type ServerRecord[F any] struct {
	ID     string
	Fields F
}

// Remote is the per-category contract of the remote store.
//
// Implementations map transport failures to ErrRemoteUnavailable and unknown
// server ids to ErrNotFound. Calls may complete in any order.
type Remote[F any] interface {
	List(ctx context.Context, parentID string) ([]ServerRecord[F], error)
	Create(ctx context.Context, parentID string, fields F) (ServerRecord[F], error)
	Update(ctx context.Context, serverID string, fields F) (ServerRecord[F], error)
	Delete(ctx context.Context, serverID string) error
}

// SyncStats summarizes one coordinator pass.
type SyncStats struct {
	Attempted int `json:"attempted"`
	Created   int `json:"created"`
	Failed    int `json:"failed"`
	InFlight  int `json:"in_flight"`
	Orphaned  int `json:"orphaned"`
}

// Add accumulates other into s.
func (s *SyncStats) Add(other SyncStats) {
	s.Attempted += other.Attempted
	s.Created += other.Created
	s.Failed += other.Failed
	s.InFlight += other.InFlight
	s.Orphaned += other.Orphaned
}
