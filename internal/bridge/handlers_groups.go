package bridge

import (
	"context"
	"fmt"

	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/mcp"
	"github.com/zmcp/civicrm-mcp/internal/models"
	"github.com/zmcp/civicrm-mcp/internal/utils"
)

var groupFields = []field{
	col("id", "ID"),
	col("title", "Title"),
	col("name", "Name"),
	col("description", "Description"),
	col("group_type:label", "Type"),
	col("is_active", "Active"),
}

// ListGroupsArgs are the arguments of list_groups
type ListGroupsArgs struct {
	Query           string `json:"query,omitempty" jsonschema_description:"Substring matched against the group title"`
	IncludeInactive bool   `json:"include_inactive,omitempty"`
	Limit           int    `json:"limit,omitempty" jsonschema:"default=25"`
}

func (b *CiviMCPBridge) listGroups(ctx context.Context, args *ListGroupsArgs, _ map[string]interface{}) (string, error) {
	where := []models.Condition{models.Eq("is_hidden", false)}
	if args.Query != "" {
		where = append(where, models.Like("title", args.Query))
	}
	if !args.IncludeInactive {
		where = append(where, models.Eq("is_active", true))
	}

	result, err := b.api.Call(ctx, constants.EntityGroup, constants.ActionGet, &models.APIParams{
		Select:  fieldKeys(groupFields),
		Where:   where,
		OrderBy: map[string]string{"title": "ASC"},
		Limit:   b.limit(args.Limit),
	})
	if err != nil {
		return "", fmt.Errorf("failed to list groups: %w", err)
	}

	rf := &recordFormatter{noun: "groups", fields: groupFields}
	return rf.format(result), nil
}

// AddContactToGroupArgs are the arguments of add_contact_to_group
type AddContactToGroupArgs struct {
	ContactID int `json:"contact_id" jsonschema:"required"`
	GroupID   int `json:"group_id" jsonschema:"required"`
}

func (b *CiviMCPBridge) addContactToGroup(ctx context.Context, args *AddContactToGroupArgs, _ map[string]interface{}) (string, error) {
	if err := requireID("contact_id", args.ContactID); err != nil {
		return "", err
	}
	if err := requireID("group_id", args.GroupID); err != nil {
		return "", err
	}

	_, err := b.api.Call(ctx, constants.EntityGroupContact, constants.ActionCreate, &models.APIParams{
		Values: map[string]interface{}{
			"contact_id": args.ContactID,
			"group_id":   args.GroupID,
			"status":     "Added",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to add contact %d to group %d: %w", args.ContactID, args.GroupID, err)
	}
	return fmt.Sprintf("Added contact %d to group %d.", args.ContactID, args.GroupID), nil
}

var tagFields = []field{
	col("id", "ID"),
	col("name", "Name"),
	col("label", "Label"),
	col("description", "Description"),
	col("parent_id.label", "Parent"),
}

// ListTagsArgs are the arguments of list_tags
type ListTagsArgs struct {
	Query string `json:"query,omitempty" jsonschema_description:"Substring matched against the tag name"`
	Limit int    `json:"limit,omitempty" jsonschema:"default=25"`
}

func (b *CiviMCPBridge) listTags(ctx context.Context, args *ListTagsArgs, _ map[string]interface{}) (string, error) {
	// Tag sets are containers, not tags
	where := []models.Condition{models.Eq("is_tagset", false)}
	if args.Query != "" {
		where = append(where, models.Like("name", args.Query))
	}

	result, err := b.api.Call(ctx, constants.EntityTag, constants.ActionGet, &models.APIParams{
		Select:  fieldKeys(tagFields),
		Where:   where,
		OrderBy: map[string]string{"name": "ASC"},
		Limit:   b.limit(args.Limit),
	})
	if err != nil {
		return "", fmt.Errorf("failed to list tags: %w", err)
	}

	rf := &recordFormatter{noun: "tags", fields: tagFields}
	return rf.format(result), nil
}

// TagContactArgs are the arguments of tag_contact
type TagContactArgs struct {
	ContactID int    `json:"contact_id" jsonschema:"required"`
	TagID     int    `json:"tag_id,omitempty" jsonschema_description:"Tag ID; either tag_id or tag_name is required"`
	TagName   string `json:"tag_name,omitempty" jsonschema_description:"Tag name; either tag_id or tag_name is required"`
}

func (b *CiviMCPBridge) tagContact(ctx context.Context, args *TagContactArgs, _ map[string]interface{}) (string, error) {
	if err := requireID("contact_id", args.ContactID); err != nil {
		return "", err
	}

	values := map[string]interface{}{
		"entity_table": "civicrm_contact",
		"entity_id":    args.ContactID,
	}
	tag := args.TagName
	switch {
	case args.TagID > 0:
		values["tag_id"] = args.TagID
		tag = fmt.Sprintf("%d", args.TagID)
	case args.TagName != "":
		values["tag_id:name"] = args.TagName
	default:
		return "", mcp.InvalidParams("either tag_id or tag_name is required")
	}

	_, err := b.api.Call(ctx, constants.EntityEntityTag, constants.ActionCreate, &models.APIParams{Values: values})
	if err != nil {
		return "", fmt.Errorf("failed to tag contact %d: %w", args.ContactID, err)
	}
	return fmt.Sprintf("Tagged contact %d with %s.", args.ContactID, tag), nil
}

var relationshipFields = []field{
	col("id", "ID"),
	col("contact_id_a.display_name", "Contact A"),
	col("relationship_type_id.label_a_b", "Relationship"),
	col("contact_id_b.display_name", "Contact B"),
	col("start_date", "Starts"),
	col("end_date", "Ends"),
	col("is_active", "Active"),
	col("description", "Description"),
}

// GetRelationshipsArgs are the arguments of get_relationships
type GetRelationshipsArgs struct {
	ContactID        int                    `json:"contact_id" jsonschema:"required" jsonschema_description:"Contact on either side of the relationship"`
	RelationshipType string                 `json:"relationship_type,omitempty" jsonschema_description:"Relationship type name (A to B), e.g. Employee of"`
	ActiveOnly       bool                   `json:"active_only,omitempty"`
	Limit            int                    `json:"limit,omitempty" jsonschema:"default=25"`
	CustomFields     map[string]interface{} `json:"custom_fields,omitempty" jsonschema_description:"Custom field filters keyed by label or name"`
}

func (b *CiviMCPBridge) getRelationships(ctx context.Context, args *GetRelationshipsArgs, extra map[string]interface{}) (string, error) {
	if err := requireID("contact_id", args.ContactID); err != nil {
		return "", err
	}
	where, customSelect, err := b.customFilters(ctx, args.CustomFields, extra)
	if err != nil {
		return "", err
	}

	where = append(where, models.Or(
		models.Eq("contact_id_a", args.ContactID),
		models.Eq("contact_id_b", args.ContactID),
	))
	if args.RelationshipType != "" {
		where = append(where, models.Eq("relationship_type_id.name_a_b", args.RelationshipType))
	}
	if args.ActiveOnly {
		where = append(where, models.Eq("is_active", true))
	}

	result, err := b.api.Call(ctx, constants.EntityRelationship, constants.ActionGet, &models.APIParams{
		Select: append(fieldKeys(relationshipFields), customSelect...),
		Where:  where,
		Limit:  b.limit(args.Limit),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get relationships for contact %d: %w", args.ContactID, err)
	}

	rf := &recordFormatter{noun: "relationships", fields: relationshipFields, resolver: b.resolver}
	return rf.format(result), nil
}

// CreateRelationshipArgs are the arguments of create_relationship
type CreateRelationshipArgs struct {
	ContactIDA       int                    `json:"contact_id_a" jsonschema:"required"`
	ContactIDB       int                    `json:"contact_id_b" jsonschema:"required"`
	RelationshipType string                 `json:"relationship_type" jsonschema:"required" jsonschema_description:"Relationship type name (A to B), e.g. Employee of"`
	StartDate        string                 `json:"start_date,omitempty"`
	EndDate          string                 `json:"end_date,omitempty"`
	Description      string                 `json:"description,omitempty"`
	CustomFields     map[string]interface{} `json:"custom_fields,omitempty" jsonschema_description:"Custom field values keyed by label or name"`
}

func (b *CiviMCPBridge) createRelationship(ctx context.Context, args *CreateRelationshipArgs, extra map[string]interface{}) (string, error) {
	if err := requireID("contact_id_a", args.ContactIDA); err != nil {
		return "", err
	}
	if err := requireID("contact_id_b", args.ContactIDB); err != nil {
		return "", err
	}
	if args.ContactIDA == args.ContactIDB {
		return "", mcp.InvalidParams("a contact cannot have a relationship with itself")
	}
	start, err := b.date("start_date", args.StartDate)
	if err != nil {
		return "", err
	}
	end, err := b.date("end_date", args.EndDate)
	if err != nil {
		return "", err
	}

	values := map[string]interface{}{
		"contact_id_a":              args.ContactIDA,
		"contact_id_b":              args.ContactIDB,
		"relationship_type_id:name": args.RelationshipType,
	}
	setIf(values, "start_date", start)
	setIf(values, "end_date", end)
	setIf(values, "description", args.Description)

	standard, custom, err := b.customValues(ctx, args.CustomFields, extra)
	if err != nil {
		return "", err
	}
	mergeValues(values, standard, custom)

	result, err := b.api.Call(ctx, constants.EntityRelationship, constants.ActionCreate, &models.APIParams{Values: values})
	if err != nil {
		return "", fmt.Errorf("failed to create relationship: %w", err)
	}
	return fmt.Sprintf("Created relationship %q between contacts %d and %d (ID %s).",
		args.RelationshipType, args.ContactIDA, args.ContactIDB, utils.ToString(result.First()["id"])), nil
}
