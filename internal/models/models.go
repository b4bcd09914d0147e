package models

import "github.com/zmcp/civicrm-mcp/internal/constants"

// CustomField describes one custom field defined on the CiviCRM site
type CustomField struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`       // machine name within its group
	Label     string `json:"label"`      // human label, not unique across groups
	GroupName string `json:"group_name"` // owning custom group machine name
	Extends   string `json:"extends"`    // entity the group extends (Contact, Individual, Activity, ...)
	DataType  string `json:"data_type"`
	HTMLType  string `json:"html_type"`
}

// APIName returns the composite identifier the API accepts in select, where and values
func (f *CustomField) APIName() string {
	return f.GroupName + "." + f.Name
}

// Condition is one API v4 where clause: [field, operator, value] or ["OR", [...]]
type Condition []interface{}

// Eq builds an equality condition
func Eq(field string, value interface{}) Condition {
	return Condition{field, constants.OpEquals, value}
}

// Like builds a substring match condition; the value is wrapped in % wildcards
func Like(field, substring string) Condition {
	return Condition{field, constants.OpLike, "%" + substring + "%"}
}

// Contains matches multi-valued fields holding the value
func Contains(field string, value interface{}) Condition {
	return Condition{field, constants.OpContains, value}
}

// Gte builds a greater-or-equal condition
func Gte(field string, value interface{}) Condition {
	return Condition{field, constants.OpGTE, value}
}

// Lte builds a less-or-equal condition
func Lte(field string, value interface{}) Condition {
	return Condition{field, constants.OpLTE, value}
}

// Present builds an IS NOT NULL (present=true) or IS NULL (present=false) condition
func Present(field string, present bool) Condition {
	if present {
		return Condition{field, constants.OpIsNotNull}
	}
	return Condition{field, constants.OpIsNull}
}

// Or groups conditions so that any of them may match
func Or(conditions ...Condition) Condition {
	return Condition{constants.OpOr, conditions}
}

// APIParams is the parameter object sent with every API v4 call
type APIParams struct {
	Select  []string               `json:"select,omitempty"`
	Where   []Condition            `json:"where,omitempty"`
	Values  map[string]interface{} `json:"values,omitempty"`
	OrderBy map[string]string      `json:"orderBy,omitempty"`
	Limit   int                    `json:"limit,omitempty"`
}

// APIResult is the decoded API v4 response
type APIResult struct {
	Values []map[string]interface{} `json:"values"`
	Count  int                      `json:"count"`
}

// First returns the first record or nil
func (r *APIResult) First() map[string]interface{} {
	if r == nil || len(r.Values) == 0 {
		return nil
	}
	return r.Values[0]
}

// APIError is the error body returned by the API v4 ajax endpoint
type APIError struct {
	Code    interface{} `json:"error_code,omitempty"`
	Message string      `json:"error_message"`
	Status  string      `json:"status,omitempty"`
}

// ToolInfo represents information about a registered MCP tool
type ToolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Entity      string   `json:"entity,omitempty"`
	Operation   string   `json:"operation,omitempty"`
	Modifying   bool     `json:"modifying"`
	Degrades    bool     `json:"degrades_on_error,omitempty"`
	Required    []string `json:"required,omitempty"`
}

// TraceInfo represents comprehensive information for trace mode
type TraceInfo struct {
	BaseURL         string     `json:"base_url"`
	APIPath         string     `json:"api_path"`
	MCPName         string     `json:"mcp_name"`
	Authentication  string     `json:"authentication"`
	ReadOnly        bool       `json:"read_only"`
	ToolFilter      []string   `json:"tool_filter,omitempty"`
	SortTools       bool       `json:"sort_tools"`
	CustomFields    int        `json:"custom_fields_loaded"`
	RegisteredTools []ToolInfo `json:"registered_tools"`
	TotalTools      int        `json:"total_tools"`
}
