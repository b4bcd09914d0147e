package bridge

import (
	"context"

	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/mcp"
	"github.com/zmcp/civicrm-mcp/internal/models"
	"github.com/zmcp/civicrm-mcp/internal/schema"
)

// Tool names
const (
	ToolSearchContacts      = "search_contacts"
	ToolGetContact          = "get_contact"
	ToolCreateContact       = "create_contact"
	ToolUpdateContact       = "update_contact"
	ToolGetActivities       = "get_activities"
	ToolCreateActivity      = "create_activity"
	ToolDeleteActivity      = "delete_activity"
	ToolGetContributions    = "get_contributions"
	ToolCreateContribution  = "create_contribution"
	ToolSearchEvents        = "search_events"
	ToolRegisterParticipant = "register_participant"
	ToolGetMemberships      = "get_memberships"
	ToolCreateMembership    = "create_membership"
	ToolListGroups          = "list_groups"
	ToolAddContactToGroup   = "add_contact_to_group"
	ToolListTags            = "list_tags"
	ToolTagContact          = "tag_contact"
	ToolGetRelationships    = "get_relationships"
	ToolCreateRelationship  = "create_relationship"
	ToolGetCustomFields     = "get_custom_fields"
	ToolServerInfo          = "crm_server_info"
)

// toolDef is one row of the static tool table
type toolDef struct {
	info    models.ToolInfo
	schema  map[string]interface{}
	handler mcp.ToolHandler
}

// degrading marks a tool whose remote failures are reported as text
func (d *toolDef) degrading() *toolDef {
	d.info.Degrades = true
	return d
}

// tool builds a table row whose input schema is reflected from T and whose
// handler receives the decoded arguments plus any keys T does not declare
func tool[T any](name, entity, operation string, modifying bool, description string,
	run func(ctx context.Context, args *T, extra map[string]interface{}) (string, error)) *toolDef {

	required := schema.Required[T]()
	return &toolDef{
		info: models.ToolInfo{
			Name:        name,
			Description: description,
			Entity:      entity,
			Operation:   operation,
			Modifying:   modifying,
			Required:    required,
		},
		schema: schema.Generate[T](),
		handler: func(ctx context.Context, raw map[string]interface{}) (interface{}, error) {
			var args T
			extra, err := decodeArgs(raw, &args, required)
			if err != nil {
				return nil, err
			}
			return run(ctx, &args, extra)
		},
	}
}

// toolDefinitions returns the tool table in registration order
func (b *CiviMCPBridge) toolDefinitions() []*toolDef {
	return []*toolDef{
		// Contacts
		tool(ToolSearchContacts, constants.EntityContact, constants.OpSearch, false,
			"Search contacts by name, email or type. Custom fields may be used as filters by label.",
			b.searchContacts),
		tool(ToolGetContact, constants.EntityContact, constants.OpGet, false,
			"Get full details for one contact, including custom field values.",
			b.getContact),
		tool(ToolCreateContact, constants.EntityContact, constants.OpCreate, true,
			"Create an Individual, Household or Organization. Custom fields can be set by label in custom_fields.",
			b.createContact),
		tool(ToolUpdateContact, constants.EntityContact, constants.OpUpdate, true,
			"Update standard or custom fields of an existing contact.",
			b.updateContact),

		// Activities
		tool(ToolGetActivities, constants.EntityActivity, constants.OpSearch, false,
			"List activities, optionally for one contact, type, status or date range. Newest first.",
			b.getActivities),
		tool(ToolCreateActivity, constants.EntityActivity, constants.OpCreate, true,
			"Record an activity such as a Meeting, Phone Call or Email against a contact.",
			b.createActivity),
		tool(ToolDeleteActivity, constants.EntityActivity, constants.OpDelete, true,
			"Delete an activity by ID.",
			b.deleteActivity),

		// Contributions
		tool(ToolGetContributions, constants.EntityContribution, constants.OpSearch, false,
			"List contributions (donations, payments) with totals per currency.",
			b.getContributions),
		tool(ToolCreateContribution, constants.EntityContribution, constants.OpCreate, true,
			"Record a contribution for a contact.",
			b.createContribution),

		// Events (CiviEvent)
		tool(ToolSearchEvents, constants.EntityEvent, constants.OpSearch, false,
			"Search events by title, type or date. Requires the CiviEvent component.",
			b.searchEvents).degrading(),
		tool(ToolRegisterParticipant, constants.EntityParticipant, constants.OpCreate, true,
			"Register a contact for an event. Requires the CiviEvent component.",
			b.registerParticipant).degrading(),

		// Memberships (CiviMember)
		tool(ToolGetMemberships, constants.EntityMembership, constants.OpSearch, false,
			"List memberships, optionally for one contact or membership type. Requires the CiviMember component.",
			b.getMemberships).degrading(),
		tool(ToolCreateMembership, constants.EntityMembership, constants.OpCreate, true,
			"Create a membership for a contact. Requires the CiviMember component.",
			b.createMembership).degrading(),

		// Groups and tags
		tool(ToolListGroups, constants.EntityGroup, constants.OpList, false,
			"List contact groups.",
			b.listGroups),
		tool(ToolAddContactToGroup, constants.EntityGroupContact, constants.OpCreate, true,
			"Add a contact to a group.",
			b.addContactToGroup),
		tool(ToolListTags, constants.EntityTag, constants.OpList, false,
			"List tags.",
			b.listTags),
		tool(ToolTagContact, constants.EntityEntityTag, constants.OpCreate, true,
			"Apply a tag to a contact, by tag ID or tag name.",
			b.tagContact),

		// Relationships
		tool(ToolGetRelationships, constants.EntityRelationship, constants.OpSearch, false,
			"List relationships where the contact is on either side.",
			b.getRelationships),
		tool(ToolCreateRelationship, constants.EntityRelationship, constants.OpCreate, true,
			"Create a relationship between two contacts, e.g. \"Employee of\".",
			b.createRelationship),

		// Metadata
		tool(ToolGetCustomFields, constants.EntityCustomField, constants.OpList, false,
			"List the custom fields defined on the site, with the labels accepted in custom_fields.",
			b.getCustomFields),
		tool(ToolServerInfo, "", constants.OpInfo, false,
			"Show bridge configuration, enabled tools and custom field cache status.",
			b.serverInfo),
	}
}
