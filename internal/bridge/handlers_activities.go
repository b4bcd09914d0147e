package bridge

import (
	"context"
	"fmt"

	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/models"
	"github.com/zmcp/civicrm-mcp/internal/utils"
)

var activityFields = []field{
	col("id", "ID"),
	col("activity_type_id:label", "Type"),
	col("subject", "Subject"),
	col("activity_date_time", "Date"),
	col("status_id:label", "Status"),
	col("source_contact_id.display_name", "Added by"),
	col("duration", "Duration (min)"),
	col("details", "Details"),
}

// GetActivitiesArgs are the arguments of get_activities
type GetActivitiesArgs struct {
	ContactID    int                    `json:"contact_id,omitempty" jsonschema_description:"Only activities with this contact as source or target"`
	ActivityType string                 `json:"activity_type,omitempty" jsonschema_description:"Activity type name, e.g. Meeting or Phone Call"`
	Status       string                 `json:"status,omitempty" jsonschema_description:"Status name, e.g. Scheduled or Completed"`
	DateFrom     string                 `json:"date_from,omitempty" jsonschema_description:"Earliest activity date"`
	DateTo       string                 `json:"date_to,omitempty" jsonschema_description:"Latest activity date"`
	Limit        int                    `json:"limit,omitempty" jsonschema:"default=25"`
	CustomFields map[string]interface{} `json:"custom_fields,omitempty" jsonschema_description:"Custom field filters keyed by label or name"`
}

func (b *CiviMCPBridge) getActivities(ctx context.Context, args *GetActivitiesArgs, extra map[string]interface{}) (string, error) {
	where, customSelect, err := b.customFilters(ctx, args.CustomFields, extra)
	if err != nil {
		return "", err
	}

	if args.ContactID > 0 {
		where = append(where, models.Or(
			models.Eq("source_contact_id", args.ContactID),
			models.Contains("target_contact_id", args.ContactID),
		))
	}
	if args.ActivityType != "" {
		where = append(where, models.Eq("activity_type_id:name", args.ActivityType))
	}
	if args.Status != "" {
		where = append(where, models.Eq("status_id:name", args.Status))
	}
	from, err := b.dateTime("date_from", args.DateFrom)
	if err != nil {
		return "", err
	}
	if from != "" {
		where = append(where, models.Gte("activity_date_time", from))
	}
	to, err := b.dateTime("date_to", args.DateTo)
	if err != nil {
		return "", err
	}
	if to != "" {
		where = append(where, models.Lte("activity_date_time", to))
	}
	where = append(where, models.Eq("is_deleted", false))

	result, err := b.api.Call(ctx, constants.EntityActivity, constants.ActionGet, &models.APIParams{
		Select:  append(fieldKeys(activityFields), customSelect...),
		Where:   where,
		OrderBy: map[string]string{"activity_date_time": "DESC"},
		Limit:   b.limit(args.Limit),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get activities: %w", err)
	}

	rf := &recordFormatter{noun: "activities", fields: activityFields, resolver: b.resolver}
	return rf.format(result), nil
}

// CreateActivityArgs are the arguments of create_activity
type CreateActivityArgs struct {
	ActivityType     string                 `json:"activity_type" jsonschema:"required" jsonschema_description:"Activity type name, e.g. Meeting, Phone Call, Email"`
	ContactID        int                    `json:"contact_id" jsonschema:"required" jsonschema_description:"Target contact ID"`
	Subject          string                 `json:"subject,omitempty"`
	SourceContactID  int                    `json:"source_contact_id,omitempty" jsonschema_description:"Contact who performed the activity (defaults to the target)"`
	ActivityDateTime string                 `json:"activity_date_time,omitempty" jsonschema_description:"When it happened (defaults to now)"`
	Status           string                 `json:"status,omitempty" jsonschema:"default=Completed" jsonschema_description:"Status name, e.g. Scheduled or Completed"`
	Details          string                 `json:"details,omitempty"`
	Duration         int                    `json:"duration,omitempty" jsonschema_description:"Duration in minutes"`
	CustomFields     map[string]interface{} `json:"custom_fields,omitempty" jsonschema_description:"Custom field values keyed by label or name"`
}

func (b *CiviMCPBridge) createActivity(ctx context.Context, args *CreateActivityArgs, extra map[string]interface{}) (string, error) {
	if err := requireID("contact_id", args.ContactID); err != nil {
		return "", err
	}

	when := args.ActivityDateTime
	if when == "" {
		when = "now"
	}
	activityDate, err := b.dateTime("activity_date_time", when)
	if err != nil {
		return "", err
	}

	source := args.SourceContactID
	if source <= 0 {
		source = args.ContactID
	}
	status := args.Status
	if status == "" {
		status = "Completed"
	}

	values := map[string]interface{}{
		"activity_type_id:name": args.ActivityType,
		"target_contact_id":     []int{args.ContactID},
		"source_contact_id":     source,
		"activity_date_time":    activityDate,
		"status_id:name":        status,
	}
	setIf(values, "subject", args.Subject)
	setIf(values, "details", args.Details)
	setIfPositive(values, "duration", args.Duration)

	standard, custom, err := b.customValues(ctx, args.CustomFields, extra)
	if err != nil {
		return "", err
	}
	mergeValues(values, standard, custom)

	result, err := b.api.Call(ctx, constants.EntityActivity, constants.ActionCreate, &models.APIParams{Values: values})
	if err != nil {
		return "", fmt.Errorf("failed to create activity: %w", err)
	}
	return formatCreated("Created", args.ActivityType+" activity", result), nil
}

// DeleteActivityArgs are the arguments of delete_activity
type DeleteActivityArgs struct {
	ActivityID int `json:"activity_id" jsonschema:"required" jsonschema_description:"Activity ID"`
}

func (b *CiviMCPBridge) deleteActivity(ctx context.Context, args *DeleteActivityArgs, _ map[string]interface{}) (string, error) {
	if err := requireID("activity_id", args.ActivityID); err != nil {
		return "", err
	}

	result, err := b.api.Call(ctx, constants.EntityActivity, constants.ActionDelete, &models.APIParams{
		Where: []models.Condition{models.Eq("id", args.ActivityID)},
	})
	if err != nil {
		return "", fmt.Errorf("failed to delete activity %d: %w", args.ActivityID, err)
	}
	if len(result.Values) == 0 {
		return fmt.Sprintf("0 results: no activity with ID %d was deleted.", args.ActivityID), nil
	}
	return fmt.Sprintf("Deleted activity %s.", utils.ToString(result.First()["id"])), nil
}
