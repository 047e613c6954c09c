// Package backend defines the backend-agnostic cluster-management capability
// set. Concrete backends (OCHAMI today, others later) implement these
// interfaces; callers dispatch through them and never build HTTP requests
// themselves.
//
// Host selectors passed to set operations may mix plain host names with
// hostlist range expressions (for example "nid[001-004],nid010"); backends
// expand them in order with duplicates removed. Operations that fan out per
// host report outcomes per host (HostResults), never as a single collapsed
// error for the whole set.
package backend

import (
	"context"
	"encoding/json"

	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

// ComponentManager exposes node inventory lookup and maintenance.
type ComponentManager interface {
	// ListComponents returns components matching the filter.
	ListComponents(ctx context.Context, filter types.ComponentFilter) ([]types.Component, error)
	// GetComponent returns one component by xname.
	GetComponent(ctx context.Context, xname string) (*types.Component, error)
	// CreateComponents registers components in the state manager.
	CreateComponents(ctx context.Context, components types.ComponentPostArray) error
	// DeleteComponent removes one component by xname.
	DeleteComponent(ctx context.Context, xname string) error
	// NIDToXName resolves user NID input (comma list, hostlist expression,
	// or comma-separated regexes when isRegex is set) to xnames.
	NIDToXName(ctx context.Context, input string, isRegex bool) ([]string, error)
}

// GroupManager exposes SMD group CRUD and membership maintenance.
type GroupManager interface {
	ListGroups(ctx context.Context, filter types.GroupFilter) ([]types.Group, error)
	GetGroup(ctx context.Context, label string) (*types.Group, error)
	AddGroup(ctx context.Context, group types.Group) (*types.Group, error)
	DeleteGroup(ctx context.Context, label string) error

	// GroupMembers returns the member xnames of one group.
	GroupMembers(ctx context.Context, label string) ([]string, error)
	// GroupMembersOf returns the members of several groups at once, keyed by
	// group label.
	GroupMembersOf(ctx context.Context, labels []string) (map[string][]string, error)
	AddGroupMembers(ctx context.Context, label string, xnames []string) ([]string, error)
	DeleteGroupMember(ctx context.Context, label, xname string) error
	// UpdateGroupMembers applies removals then additions against one group.
	UpdateGroupMembers(ctx context.Context, label string, add, remove []string) error
	// MigrateGroupMembers moves xnames from one group into another and
	// returns the resulting membership of target and parent.
	MigrateGroupMembers(ctx context.Context, target, parent string, xnames []string) (targetMembers, parentMembers []string, err error)
}

// PowerManager exposes power state and power transitions over host sets.
// Selectors may contain hostlist expressions; results are per host in
// expanded order.
type PowerManager interface {
	PowerStatus(ctx context.Context, hosts []string) (HostResults[types.PowerStatus], error)
	PowerOn(ctx context.Context, hosts []string) (HostResults[types.Transition], error)
	PowerOff(ctx context.Context, hosts []string, force bool) (HostResults[types.Transition], error)
	PowerReset(ctx context.Context, hosts []string, force bool) (HostResults[types.Transition], error)
}

// BootManager exposes BSS boot parameter maintenance.
type BootManager interface {
	// GetBootParameters returns the boot parameter records covering the
	// given hosts; an empty selector returns every record.
	GetBootParameters(ctx context.Context, hosts []string) ([]types.BootParameters, error)
	AddBootParameters(ctx context.Context, params types.BootParameters) error
	UpdateBootParameters(ctx context.Context, params types.BootParameters) error
	DeleteBootParameters(ctx context.Context, params types.BootParameters) error
}

// InventoryManager exposes hardware and interface inventory lookups.
type InventoryManager interface {
	// HardwareInventory returns the raw hardware inventory, optionally
	// scoped to one xname.
	HardwareInventory(ctx context.Context, xname string) (json.RawMessage, error)
	// HardwareInventoryQuery runs the hierarchical inventory query for one
	// xname.
	HardwareInventoryQuery(ctx context.Context, xname string, query types.HardwareInventoryQuery) (json.RawMessage, error)

	ListRedfishEndpoints(ctx context.Context, filter types.RedfishEndpointFilter) ([]types.RedfishEndpoint, error)
	AddRedfishEndpoint(ctx context.Context, endpoint types.RedfishEndpoint) error
	UpdateRedfishEndpoint(ctx context.Context, endpoint types.RedfishEndpoint) error
	DeleteRedfishEndpoint(ctx context.Context, id string) error

	ListEthernetInterfaces(ctx context.Context, filter types.EthernetInterfaceFilter) ([]types.EthernetInterface, error)
}

// Dispatcher is the full capability set a cluster backend provides.
type Dispatcher interface {
	ComponentManager
	GroupManager
	PowerManager
	BootManager
	InventoryManager
}
