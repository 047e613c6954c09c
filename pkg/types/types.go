// Package types defines the wire payloads exchanged with OCHAMI's SMD, BSS
// and PCS services. Field names and casing follow the upstream OpenAPI
// definitions, which is why SMD payloads use PascalCase JSON keys while group
// and power payloads use camelCase.
package types

import "encoding/json"

// Component is one SMD state component (a node, BMC, chassis, ...).
type Component struct {
	ID             string `json:"ID,omitempty"`
	Type           string `json:"Type,omitempty"`
	State          string `json:"State,omitempty"`
	Flag           string `json:"Flag,omitempty"`
	Enabled        *bool  `json:"Enabled,omitempty"`
	SoftwareStatus string `json:"SoftwareStatus,omitempty"`
	Role           string `json:"Role,omitempty"`
	SubRole        string `json:"SubRole,omitempty"`
	NID            *int64 `json:"NID,omitempty"`
	Subtype        string `json:"Subtype,omitempty"`
	NetType        string `json:"NetType,omitempty"`
	Arch           string `json:"Arch,omitempty"`
	Class          string `json:"Class,omitempty"`
}

// ComponentArray is the envelope SMD uses for component collections.
type ComponentArray struct {
	Components []Component `json:"Components"`
}

// ComponentPostArray is the body for POST /hsm/v2/State/Components.
type ComponentPostArray struct {
	Components []Component `json:"Components"`
	Force      *bool       `json:"Force,omitempty"`
}

// ComponentFilter holds the query parameters accepted by the SMD components
// collection. Zero-valued fields are omitted from the query string.
type ComponentFilter struct {
	ID             string
	Type           string
	State          string
	Flag           string
	Role           string
	SubRole        string
	Enabled        string
	SoftwareStatus string
	Subtype        string
	Arch           string
	Class          string
	NID            string
	NIDStart       string
	NIDEnd         string
	Partition      string
	Group          string

	StateOnly bool
	FlagOnly  bool
	RoleOnly  bool
	NIDOnly   bool
}

// Group is one SMD group.
type Group struct {
	Label          string   `json:"label"`
	Description    string   `json:"description,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	ExclusiveGroup string   `json:"exclusiveGroup,omitempty"`
	Members        *Members `json:"members,omitempty"`
}

// Members is the membership list nested in a group.
type Members struct {
	IDs []string `json:"ids,omitempty"`
}

// GroupFilter holds query parameters for the SMD groups collection.
type GroupFilter struct {
	Group     string
	Tag       string
	Partition string
}

// BootParameters is one BSS boot parameter record. A record applies to every
// host, MAC or NID it lists.
type BootParameters struct {
	Hosts     []string        `json:"hosts,omitempty"`
	Macs      []string        `json:"macs,omitempty"`
	Nids      []int64         `json:"nids,omitempty"`
	Params    string          `json:"params,omitempty"`
	Kernel    string          `json:"kernel,omitempty"`
	Initrd    string          `json:"initrd,omitempty"`
	CloudInit json.RawMessage `json:"cloud-init,omitempty"`
}

// PowerStatus is one node's entry from GET /power-control/v1/power-status.
type PowerStatus struct {
	XName                     string   `json:"xname"`
	PowerState                string   `json:"powerState"`
	ManagementState           string   `json:"managementState,omitempty"`
	Error                     string   `json:"error,omitempty"`
	SupportedPowerTransitions []string `json:"supportedPowerTransitions,omitempty"`
	LastUpdated               string   `json:"lastUpdated,omitempty"`
}

// PowerStatusEnvelope is the collection wrapper returned by PCS.
type PowerStatusEnvelope struct {
	Status []PowerStatus `json:"status"`
}

// PCS transition operations.
const (
	PowerOpOn          = "On"
	PowerOpSoftOff     = "Soft-Off"
	PowerOpForceOff    = "Force-Off"
	PowerOpSoftRestart = "Soft-Restart"
	PowerOpHardRestart = "Hard-Restart"
	PowerOpInit        = "Init"
)

// TransitionCreate is the body for POST /power-control/v1/transitions.
type TransitionCreate struct {
	Operation           string               `json:"operation"`
	TaskDeadlineMinutes *int                 `json:"taskDeadlineMinutes,omitempty"`
	Location            []TransitionLocation `json:"location"`
}

// TransitionLocation targets one xname within a transition.
type TransitionLocation struct {
	Xname     string `json:"xname"`
	DeputyKey string `json:"deputyKey,omitempty"`
}

// Transition is the PCS record for one submitted power transition.
type Transition struct {
	TransitionID string           `json:"transitionID"`
	Operation    string           `json:"operation"`
	CreateTime   string           `json:"createTime,omitempty"`
	Status       string           `json:"transitionStatus,omitempty"`
	Tasks        []TransitionTask `json:"tasks,omitempty"`
}

// TransitionTask is one per-xname task within a transition.
type TransitionTask struct {
	Xname                 string `json:"xname"`
	TaskStatus            string `json:"taskStatus"`
	TaskStatusDescription string `json:"taskStatusDescription,omitempty"`
}

// RedfishEndpoint is one SMD inventory redfish endpoint.
type RedfishEndpoint struct {
	ID                 string         `json:"ID"`
	Type               string         `json:"Type,omitempty"`
	Name               string         `json:"Name,omitempty"`
	Hostname           string         `json:"Hostname,omitempty"`
	Domain             string         `json:"Domain,omitempty"`
	FQDN               string         `json:"FQDN,omitempty"`
	Enabled            *bool          `json:"Enabled,omitempty"`
	UUID               string         `json:"UUID,omitempty"`
	User               string         `json:"User,omitempty"`
	Password           string         `json:"Password,omitempty"`
	MACAddr            string         `json:"MACAddr,omitempty"`
	IPAddress          string         `json:"IPAddress,omitempty"`
	RediscoverOnUpdate *bool          `json:"RediscoverOnUpdate,omitempty"`
	DiscoveryInfo      *DiscoveryInfo `json:"DiscoveryInfo,omitempty"`
}

// DiscoveryInfo records the last discovery attempt for a redfish endpoint.
type DiscoveryInfo struct {
	LastAttempt    string `json:"LastDiscoveryAttempt,omitempty"`
	LastStatus     string `json:"LastDiscoveryStatus,omitempty"`
	RedfishVersion string `json:"RedfishVersion,omitempty"`
}

// RedfishEndpointArray is the envelope for redfish endpoint collections.
type RedfishEndpointArray struct {
	RedfishEndpoints []RedfishEndpoint `json:"RedfishEndpoints"`
}

// RedfishEndpointFilter holds query parameters for the redfish endpoint
// collection.
type RedfishEndpointFilter struct {
	ID         string
	FQDN       string
	Type       string
	UUID       string
	MACAddr    string
	IPAddress  string
	LastStatus string
}

// EthernetInterface is one SMD inventory ethernet interface.
type EthernetInterface struct {
	ID          string             `json:"ID,omitempty"`
	Description string             `json:"Description,omitempty"`
	MACAddress  string             `json:"MACAddress"`
	IPAddresses []IPAddressMapping `json:"IPAddresses,omitempty"`
	LastUpdate  string             `json:"LastUpdate,omitempty"`
	ComponentID string             `json:"ComponentID,omitempty"`
	Type        string             `json:"Type,omitempty"`
}

// IPAddressMapping pairs an address with the network it belongs to.
type IPAddressMapping struct {
	IPAddress string `json:"IPAddress"`
	Network   string `json:"Network,omitempty"`
}

// EthernetInterfaceFilter holds query parameters for the ethernet interface
// collection.
type EthernetInterfaceFilter struct {
	MACAddress  string
	IPAddress   string
	Network     string
	ComponentID string
	Type        string
}

// HardwareInventoryQuery holds query parameters for
// GET /hsm/v2/Inventory/Hardware/Query/{xname}.
type HardwareInventoryQuery struct {
	Type      string
	Children  *bool
	Parents   *bool
	Partition string
	Format    string
}
