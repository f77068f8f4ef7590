package models

import (
	"encoding/json"
	"fmt"
	"slices"

	srvErrors "github.com/riotkit-org/backup-e2e/pkg/errors"
)

// ActionKind is the operation requested by a RequestedBackupAction.
type ActionKind string

const (
	ActionBackup  ActionKind = "backup"
	ActionRestore ActionKind = "restore"
)

// ActionStatus is a snapshot of a RequestedBackupAction status.
// It is fetched fresh on every poll attempt and never mutated.
type ActionStatus struct {
	Healthy bool
	// ChildrenRunning holds one flag per child resource (Job, Pod), in the
	// order the controller created them.
	ChildrenRunning []bool
}

// Converged is true when the action finished and ended healthy.
// An empty children list yields Healthy.
func (s ActionStatus) Converged() bool {
	return s.Healthy && !slices.Contains(s.ChildrenRunning, true)
}

// Started reports whether the controller created at least one child resource.
func (s ActionStatus) Started() bool {
	return len(s.ChildrenRunning) > 0
}

func (s ActionStatus) String() string {
	return fmt.Sprintf("healthy=%t children=%v converged=%t", s.Healthy, s.ChildrenRunning, s.Converged())
}

type actionRecord struct {
	Status *struct {
		Healthy                 *bool `json:"healthy"`
		ChildrenResourcesHealth *[]struct {
			Running *bool `json:"running"`
		} `json:"childrenResourcesHealth"`
	} `json:"status"`
}

// ParseActionStatus decodes a serialized RequestedBackupAction (as returned by
// "kubectl get -o json" or the API server). Missing fields are reported as
// MalformedStatusError, never as a non-converged status.
func ParseActionStatus(raw []byte) (ActionStatus, error) {
	var rec actionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ActionStatus{}, srvErrors.NewMalformedStatusError("", err.Error())
	}
	if rec.Status == nil {
		return ActionStatus{}, srvErrors.NewMalformedStatusError("status", "is missing")
	}
	if rec.Status.Healthy == nil {
		return ActionStatus{}, srvErrors.NewMalformedStatusError("status.healthy", "is missing")
	}
	if rec.Status.ChildrenResourcesHealth == nil {
		return ActionStatus{}, srvErrors.NewMalformedStatusError("status.childrenResourcesHealth", "is missing")
	}

	children := *rec.Status.ChildrenResourcesHealth
	status := ActionStatus{
		Healthy:         *rec.Status.Healthy,
		ChildrenRunning: make([]bool, 0, len(children)),
	}
	for i, child := range children {
		if child.Running == nil {
			return ActionStatus{}, srvErrors.NewMalformedStatusError(
				fmt.Sprintf("status.childrenResourcesHealth[%d].running", i), "is missing")
		}
		status.ChildrenRunning = append(status.ChildrenRunning, *child.Running)
	}
	return status, nil
}
