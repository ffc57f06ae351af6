package client

import (
	"encoding/json"
	"strings"
)

// InspectionStatus is the server-side inspection state of a repository.
// Values outside the declared set are kept verbatim and report Known() == false.
type InspectionStatus string

const (
	InspectionPending    InspectionStatus = "pending"
	InspectionInspecting InspectionStatus = "inspecting"
	InspectionReady      InspectionStatus = "ready"
	InspectionFailed     InspectionStatus = "failed"
	InspectionPrepared   InspectionStatus = "prepared"
)

// Known reports whether s is one of the declared inspection states.
func (s InspectionStatus) Known() bool {
	switch s {
	case InspectionPending, InspectionInspecting, InspectionReady, InspectionFailed, InspectionPrepared:
		return true
	}
	return false
}

// AllowsPrepare reports whether a repository in this state may be prepared.
func (s InspectionStatus) AllowsPrepare() bool {
	switch s {
	case InspectionReady, InspectionPrepared:
		return true
	case InspectionPending, InspectionInspecting, InspectionFailed:
		return false
	}
	return false
}

func (s *InspectionStatus) UnmarshalJSON(data []byte) error {
	raw, err := unmarshalStatus(data)
	if err != nil {
		return err
	}
	if raw == "" {
		raw = string(InspectionPending)
	}
	*s = InspectionStatus(raw)
	return nil
}

// AppStatus is the server-driven lifecycle state of an application.
type AppStatus string

const (
	AppIdle      AppStatus = "idle"
	AppQueued    AppStatus = "queued"
	AppDeploying AppStatus = "deploying"
	AppRunning   AppStatus = "running"
	AppFailed    AppStatus = "failed"
)

// Known reports whether s is one of the declared application states.
func (s AppStatus) Known() bool {
	switch s {
	case AppIdle, AppQueued, AppDeploying, AppRunning, AppFailed:
		return true
	}
	return false
}

// Transitional reports whether the state is expected to change without
// further operator action.
func (s AppStatus) Transitional() bool {
	switch s {
	case AppQueued, AppDeploying:
		return true
	case AppIdle, AppRunning, AppFailed:
		return false
	}
	return false
}

func (s *AppStatus) UnmarshalJSON(data []byte) error {
	raw, err := unmarshalStatus(data)
	if err != nil {
		return err
	}
	if raw == "" {
		raw = string(AppIdle)
	}
	*s = AppStatus(raw)
	return nil
}

// DeploymentType names the deploy-class actions.
type DeploymentType string

const (
	DeployFresh    DeploymentType = "deploy"
	DeployUpdate   DeploymentType = "update"
	DeployRollback DeploymentType = "rollback"
)

// Valid reports whether t is a declared deployment type.
func (t DeploymentType) Valid() bool {
	switch t {
	case DeployFresh, DeployUpdate, DeployRollback:
		return true
	}
	return false
}

// DeploymentStatus is the state of a single deployment record.
type DeploymentStatus string

const (
	DeploymentQueued  DeploymentStatus = "queued"
	DeploymentRunning DeploymentStatus = "running"
	DeploymentSuccess DeploymentStatus = "success"
	DeploymentFailed  DeploymentStatus = "failed"
)

func (s *DeploymentStatus) UnmarshalJSON(data []byte) error {
	raw, err := unmarshalStatus(data)
	if err != nil {
		return err
	}
	*s = DeploymentStatus(raw)
	return nil
}

func unmarshalStatus(data []byte) (string, error) {
	if string(data) == "null" {
		return "", nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(raw)), nil
}
