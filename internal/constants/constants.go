package constants

// CiviCRM API v4 entities used by the bridge
const (
	EntityContact      = "Contact"
	EntityActivity     = "Activity"
	EntityContribution = "Contribution"
	EntityEvent        = "Event"
	EntityParticipant  = "Participant"
	EntityMembership   = "Membership"
	EntityGroup        = "Group"
	EntityGroupContact = "GroupContact"
	EntityTag          = "Tag"
	EntityEntityTag    = "EntityTag"
	EntityRelationship = "Relationship"
	EntityCustomField  = "CustomField"
)

// Contact types; custom groups may extend any of them as well as "Contact"
const (
	ContactTypeIndividual   = "Individual"
	ContactTypeHousehold    = "Household"
	ContactTypeOrganization = "Organization"
)

// ContactTypes lists the contact types accepted by contact tools
var ContactTypes = []string{ContactTypeIndividual, ContactTypeHousehold, ContactTypeOrganization}

// API v4 actions
const (
	ActionGet    = "get"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// API v4 where operators
const (
	OpEquals    = "="
	OpLike      = "LIKE"
	OpContains  = "CONTAINS"
	OpGTE       = ">="
	OpLTE       = "<="
	OpIsNull    = "IS NULL"
	OpIsNotNull = "IS NOT NULL"
	OpOr        = "OR"
)

// HTTP headers
const (
	ContentType     = "Content-Type"
	Accept          = "Accept"
	Authorization   = "Authorization"
	UserAgent       = "User-Agent"
	CiviAuthHeader  = "X-Civi-Auth"
	CiviKeyHeader   = "X-Civi-Key"
	RequestedWith   = "X-Requested-With"
	XMLHttpRequest  = "XMLHttpRequest"
	BearerPrefix    = "Bearer "
	ParamsFormField = "params"
)

// Content types
const (
	ContentTypeJSON    = "application/json"
	ContentTypeFormURL = "application/x-www-form-urlencoded"
)

// Tool operation types
const (
	OpSearch = "search"
	OpGet    = "get"
	OpList   = "list"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpInfo   = "info"
)

// Error messages
const (
	ErrInvalidBaseURL = "invalid base URL"
	ErrRequestFailed  = "HTTP request failed"
	ErrResponseParse  = "response parsing failed"
)

// Default values
const (
	DefaultUserAgent = "CiviCRM-MCP-Bridge/1.0 (Go)"
	DefaultAPIPath   = "civicrm/ajax/api4"
	DefaultTimeout   = 30 // seconds
	DefaultLimit     = 25
	MaxLimit         = 500
	DefaultHTTPAddr  = "127.0.0.1:8080"
)

// MCP-specific constants
const (
	MCPProtocolVersion = "2024-11-05"
	MCPServerName      = "civicrm-mcp-bridge"
	MCPServerVersion   = "1.0.0"
)
