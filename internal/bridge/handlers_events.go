package bridge

import (
	"context"
	"fmt"

	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/models"
	"github.com/zmcp/civicrm-mcp/internal/utils"
)

var eventFields = []field{
	col("id", "ID"),
	col("title", "Title"),
	col("event_type_id:label", "Type"),
	col("start_date", "Starts"),
	col("end_date", "Ends"),
	col("loc_block_id.address_id.city", "City"),
	col("max_participants", "Capacity"),
	col("is_online_registration", "Online registration"),
	col("is_active", "Active"),
}

// SearchEventsArgs are the arguments of search_events
type SearchEventsArgs struct {
	Query           string                 `json:"query,omitempty" jsonschema_description:"Substring matched against the event title"`
	EventType       string                 `json:"event_type,omitempty" jsonschema_description:"Event type name, e.g. Conference or Fundraiser"`
	Upcoming        bool                   `json:"upcoming,omitempty" jsonschema_description:"Only events starting today or later"`
	DateFrom        string                 `json:"date_from,omitempty"`
	DateTo          string                 `json:"date_to,omitempty"`
	IncludeInactive bool                   `json:"include_inactive,omitempty"`
	Limit           int                    `json:"limit,omitempty" jsonschema:"default=25"`
	CustomFields    map[string]interface{} `json:"custom_fields,omitempty" jsonschema_description:"Custom field filters keyed by label or name"`
}

func (b *CiviMCPBridge) searchEvents(ctx context.Context, args *SearchEventsArgs, extra map[string]interface{}) (string, error) {
	where, customSelect, err := b.customFilters(ctx, args.CustomFields, extra)
	if err != nil {
		return "", err
	}

	if args.Query != "" {
		where = append(where, models.Like("title", args.Query))
	}
	if args.EventType != "" {
		where = append(where, models.Eq("event_type_id:name", args.EventType))
	}

	from := args.DateFrom
	if args.Upcoming && from == "" {
		from = "today"
	}
	start, err := b.dateTime("date_from", from)
	if err != nil {
		return "", err
	}
	if start != "" {
		where = append(where, models.Gte("start_date", start))
	}
	end, err := b.dateTime("date_to", args.DateTo)
	if err != nil {
		return "", err
	}
	if end != "" {
		where = append(where, models.Lte("start_date", end))
	}
	if !args.IncludeInactive {
		where = append(where, models.Eq("is_active", true))
	}
	where = append(where, models.Eq("is_template", false))

	result, err := b.api.Call(ctx, constants.EntityEvent, constants.ActionGet, &models.APIParams{
		Select:  append(fieldKeys(eventFields), customSelect...),
		Where:   where,
		OrderBy: map[string]string{"start_date": "ASC"},
		Limit:   b.limit(args.Limit),
	})
	if err != nil {
		return "", fmt.Errorf("failed to search events: %w", err)
	}

	rf := &recordFormatter{noun: "events", fields: eventFields, resolver: b.resolver}
	return rf.format(result), nil
}

// RegisterParticipantArgs are the arguments of register_participant
type RegisterParticipantArgs struct {
	EventID      int                    `json:"event_id" jsonschema:"required"`
	ContactID    int                    `json:"contact_id" jsonschema:"required"`
	Role         string                 `json:"role,omitempty" jsonschema:"default=Attendee" jsonschema_description:"Participant role name"`
	Status       string                 `json:"status,omitempty" jsonschema:"default=Registered" jsonschema_description:"Participant status name"`
	RegisterDate string                 `json:"register_date,omitempty" jsonschema_description:"Defaults to now"`
	Source       string                 `json:"source,omitempty"`
	CustomFields map[string]interface{} `json:"custom_fields,omitempty" jsonschema_description:"Custom field values keyed by label or name"`
}

func (b *CiviMCPBridge) registerParticipant(ctx context.Context, args *RegisterParticipantArgs, extra map[string]interface{}) (string, error) {
	if err := requireID("event_id", args.EventID); err != nil {
		return "", err
	}
	if err := requireID("contact_id", args.ContactID); err != nil {
		return "", err
	}

	when := args.RegisterDate
	if when == "" {
		when = "now"
	}
	registerDate, err := b.dateTime("register_date", when)
	if err != nil {
		return "", err
	}
	role := args.Role
	if role == "" {
		role = "Attendee"
	}
	status := args.Status
	if status == "" {
		status = "Registered"
	}

	values := map[string]interface{}{
		"event_id":       args.EventID,
		"contact_id":     args.ContactID,
		"role_id:name":   []string{role},
		"status_id:name": status,
		"register_date":  registerDate,
	}
	setIf(values, "source", args.Source)

	standard, custom, err := b.customValues(ctx, args.CustomFields, extra)
	if err != nil {
		return "", err
	}
	mergeValues(values, standard, custom)

	result, err := b.api.Call(ctx, constants.EntityParticipant, constants.ActionCreate, &models.APIParams{Values: values})
	if err != nil {
		return "", fmt.Errorf("failed to register contact %d for event %d: %w", args.ContactID, args.EventID, err)
	}
	return fmt.Sprintf("Registered contact %d for event %d as %s (participant ID %s).",
		args.ContactID, args.EventID, role, utils.ToString(result.First()["id"])), nil
}

var membershipFields = []field{
	col("id", "ID"),
	col("contact_id.display_name", "Contact"),
	col("membership_type_id:label", "Type"),
	col("status_id:label", "Status"),
	col("join_date", "Member since"),
	col("start_date", "Starts"),
	col("end_date", "Ends"),
	col("source", "Source"),
}

// GetMembershipsArgs are the arguments of get_memberships
type GetMembershipsArgs struct {
	ContactID      int                    `json:"contact_id,omitempty"`
	MembershipType string                 `json:"membership_type,omitempty" jsonschema_description:"Membership type name, e.g. General or Student"`
	Status         string                 `json:"status,omitempty" jsonschema_description:"Membership status name, e.g. Current or Expired"`
	ActiveOnly     bool                   `json:"active_only,omitempty" jsonschema_description:"Only statuses that count as current membership"`
	Limit          int                    `json:"limit,omitempty" jsonschema:"default=25"`
	CustomFields   map[string]interface{} `json:"custom_fields,omitempty" jsonschema_description:"Custom field filters keyed by label or name"`
}

func (b *CiviMCPBridge) getMemberships(ctx context.Context, args *GetMembershipsArgs, extra map[string]interface{}) (string, error) {
	where, customSelect, err := b.customFilters(ctx, args.CustomFields, extra)
	if err != nil {
		return "", err
	}

	if args.ContactID > 0 {
		where = append(where, models.Eq("contact_id", args.ContactID))
	}
	if args.MembershipType != "" {
		where = append(where, models.Eq("membership_type_id:name", args.MembershipType))
	}
	if args.Status != "" {
		where = append(where, models.Eq("status_id:name", args.Status))
	}
	if args.ActiveOnly {
		where = append(where, models.Eq("status_id.is_current_member", true))
	}

	result, err := b.api.Call(ctx, constants.EntityMembership, constants.ActionGet, &models.APIParams{
		Select:  append(fieldKeys(membershipFields), customSelect...),
		Where:   where,
		OrderBy: map[string]string{"end_date": "DESC"},
		Limit:   b.limit(args.Limit),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get memberships: %w", err)
	}

	rf := &recordFormatter{noun: "memberships", fields: membershipFields, resolver: b.resolver}
	return rf.format(result), nil
}

// CreateMembershipArgs are the arguments of create_membership
type CreateMembershipArgs struct {
	ContactID      int                    `json:"contact_id" jsonschema:"required"`
	MembershipType string                 `json:"membership_type" jsonschema:"required" jsonschema_description:"Membership type name"`
	JoinDate       string                 `json:"join_date,omitempty" jsonschema_description:"Defaults to the start date"`
	StartDate      string                 `json:"start_date,omitempty" jsonschema_description:"Defaults to today"`
	EndDate        string                 `json:"end_date,omitempty" jsonschema_description:"Calculated from the membership type when empty"`
	Status         string                 `json:"status,omitempty" jsonschema_description:"Status name; when empty the status rules decide"`
	Source         string                 `json:"source,omitempty"`
	CustomFields   map[string]interface{} `json:"custom_fields,omitempty" jsonschema_description:"Custom field values keyed by label or name"`
}

func (b *CiviMCPBridge) createMembership(ctx context.Context, args *CreateMembershipArgs, extra map[string]interface{}) (string, error) {
	if err := requireID("contact_id", args.ContactID); err != nil {
		return "", err
	}

	startArg := args.StartDate
	if startArg == "" {
		startArg = "today"
	}
	start, err := b.date("start_date", startArg)
	if err != nil {
		return "", err
	}
	join, err := b.date("join_date", args.JoinDate)
	if err != nil {
		return "", err
	}
	if join == "" {
		join = start
	}
	end, err := b.date("end_date", args.EndDate)
	if err != nil {
		return "", err
	}

	values := map[string]interface{}{
		"contact_id":              args.ContactID,
		"membership_type_id:name": args.MembershipType,
		"join_date":               join,
		"start_date":              start,
	}
	setIf(values, "end_date", end)
	setIf(values, "source", args.Source)
	if args.Status != "" {
		values["status_id:name"] = args.Status
		values["is_override"] = true
	}

	standard, custom, err := b.customValues(ctx, args.CustomFields, extra)
	if err != nil {
		return "", err
	}
	mergeValues(values, standard, custom)

	result, err := b.api.Call(ctx, constants.EntityMembership, constants.ActionCreate, &models.APIParams{Values: values})
	if err != nil {
		return "", fmt.Errorf("failed to create membership: %w", err)
	}
	return formatCreated("Created", args.MembershipType+" membership", result), nil
}
