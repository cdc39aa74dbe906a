// Package v1 defines the wire-facing types shared by the CLI, the dump
// writers, and the sweep/routing core: node and link states, engine
// names, and the notice records emitted to internal/notice.
package v1

import (
	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// NodeType identifies the kind of a discovered subnet node.
type NodeType int

const (
	NodeTypeUnknown NodeType = iota
	NodeTypeCA
	NodeTypeRouter
	NodeTypeSwitch
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeCA:
		return "CA"
	case NodeTypeRouter:
		return "Router"
	case NodeTypeSwitch:
		return "Switch"
	default:
		return "Unknown"
	}
}

// LinkState is the physical port state a directed-route SMP advances
// through: DOWN -> INIT -> ARMED -> ACTIVE.
type LinkState int

const (
	LinkStateDown LinkState = iota
	LinkStateInit
	LinkStateArmed
	LinkStateActive
)

func (s LinkState) String() string {
	switch s {
	case LinkStateDown:
		return "DOWN"
	case LinkStateInit:
		return "INIT"
	case LinkStateArmed:
		return "ARMED"
	case LinkStateActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// EngineName identifies a registered routing engine.
type EngineName string

const (
	EngineMinHop  EngineName = "minhop"
	EngineFatTree EngineName = "ftree"
	EngineTorus   EngineName = "torus"
	EngineNue     EngineName = "nue"
)

// NoticeKind distinguishes the kinds of entries the notice log records.
type NoticeKind string

const (
	NoticeKindTrap64      NoticeKind = "trap64_new_endport"
	NoticeKindSubnetUp    NoticeKind = "subnet_up"
	NoticeKindErrorBanner NoticeKind = "errors_during_initialization"
)

// Notice is one row of the sqlite-backed notice/trap log internal/notice
// maintains: Trap 64 for new endports, the SUBNET_UP marker, and the
// error banner emitted when a sweep fails to reach a fully routed state.
type Notice struct {
	ID        uuid.UUID   `json:"id"`
	Kind      NoticeKind  `json:"kind"`
	GUID      uint64      `json:"guid,omitempty"`
	LID       uint16      `json:"lid,omitempty"`
	Timestamp metav1.Time `json:"timestamp"`
	Message   string      `json:"message,omitempty"`
}

// NewNotice stamps a fresh notice with a random ID.
func NewNotice(kind NoticeKind, guid uint64, lid uint16, message string, ts metav1.Time) Notice {
	return Notice{
		ID:        uuid.New(),
		Kind:      kind,
		GUID:      guid,
		LID:       lid,
		Timestamp: ts,
		Message:   message,
	}
}
