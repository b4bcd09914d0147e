package bridge

import (
	"context"
	"fmt"

	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/mcp"
	"github.com/zmcp/civicrm-mcp/internal/models"
)

// contactEntities are the "extends" values whose custom fields apply to contacts
var contactEntities = []string{
	constants.EntityContact,
	constants.ContactTypeIndividual,
	constants.ContactTypeHousehold,
	constants.ContactTypeOrganization,
}

var contactSearchFields = []field{
	col("id", "ID"),
	col("display_name", "Name"),
	col("contact_type", "Type"),
	col("email_primary.email", "Email"),
	col("phone_primary.phone", "Phone"),
	col("address_primary.city", "City"),
}

var contactDetailFields = []field{
	col("id", "ID"),
	col("display_name", "Name"),
	col("contact_type", "Type"),
	col("contact_sub_type", "Subtype"),
	col("first_name", "First name"),
	col("last_name", "Last name"),
	col("organization_name", "Organization"),
	col("household_name", "Household"),
	col("job_title", "Job title"),
	col("birth_date", "Birth date"),
	col("gender_id:label", "Gender"),
	col("email_primary.email", "Email"),
	col("phone_primary.phone", "Phone"),
	col("address_primary.street_address", "Street"),
	col("address_primary.city", "City"),
	col("address_primary.postal_code", "Postal code"),
	col("address_primary.country_id:label", "Country"),
	col("source", "Source"),
	col("created_date", "Created"),
	col("modified_date", "Modified"),
}

func fieldKeys(fields []field) []string {
	keys := make([]string, 0, len(fields))
	for _, fl := range fields {
		keys = append(keys, fl.key)
	}
	return keys
}

// SearchContactsArgs are the arguments of search_contacts
type SearchContactsArgs struct {
	Query          string                 `json:"query,omitempty" jsonschema_description:"Substring matched against display name and primary email"`
	ContactType    string                 `json:"contact_type,omitempty" jsonschema:"enum=Individual,enum=Household,enum=Organization"`
	Email          string                 `json:"email,omitempty" jsonschema_description:"Exact primary email address"`
	HasEmail       *bool                  `json:"has_email,omitempty" jsonschema_description:"Only contacts with (true) or without (false) a primary email"`
	IncludeDeleted bool                   `json:"include_deleted,omitempty" jsonschema_description:"Include contacts in the trash"`
	Limit          int                    `json:"limit,omitempty" jsonschema:"default=25" jsonschema_description:"Maximum number of contacts to return"`
	CustomFields   map[string]interface{} `json:"custom_fields,omitempty" jsonschema_description:"Custom field filters keyed by label or name"`
}

func (b *CiviMCPBridge) searchContacts(ctx context.Context, args *SearchContactsArgs, extra map[string]interface{}) (string, error) {
	where, customSelect, err := b.customFilters(ctx, args.CustomFields, extra)
	if err != nil {
		return "", err
	}

	if args.Query != "" {
		where = append(where, models.Or(
			models.Like("display_name", args.Query),
			models.Like("email_primary.email", args.Query),
		))
	}
	if args.ContactType != "" {
		where = append(where, models.Eq("contact_type", args.ContactType))
	}
	if args.Email != "" {
		where = append(where, models.Eq("email_primary.email", args.Email))
	}
	if args.HasEmail != nil {
		where = append(where, models.Present("email_primary.email", *args.HasEmail))
	}
	if !args.IncludeDeleted {
		where = append(where, models.Eq("is_deleted", false))
	}

	result, err := b.api.Call(ctx, constants.EntityContact, constants.ActionGet, &models.APIParams{
		Select:  append(fieldKeys(contactSearchFields), customSelect...),
		Where:   where,
		OrderBy: map[string]string{"sort_name": "ASC"},
		Limit:   b.limit(args.Limit),
	})
	if err != nil {
		return "", fmt.Errorf("failed to search contacts: %w", err)
	}

	rf := &recordFormatter{noun: "contacts", fields: contactSearchFields, resolver: b.resolver}
	return rf.format(result), nil
}

// GetContactArgs are the arguments of get_contact
type GetContactArgs struct {
	ContactID int `json:"contact_id" jsonschema:"required" jsonschema_description:"Contact ID"`
}

func (b *CiviMCPBridge) getContact(ctx context.Context, args *GetContactArgs, _ map[string]interface{}) (string, error) {
	if err := requireID("contact_id", args.ContactID); err != nil {
		return "", err
	}
	b.resolver.EnsureLoaded(ctx)

	selectFields := fieldKeys(contactDetailFields)
	for _, cf := range b.resolver.FieldsForEntities(contactEntities...) {
		selectFields = append(selectFields, cf.APIName())
	}

	result, err := b.api.Call(ctx, constants.EntityContact, constants.ActionGet, &models.APIParams{
		Select: selectFields,
		Where:  []models.Condition{models.Eq("id", args.ContactID)},
		Limit:  1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get contact %d: %w", args.ContactID, err)
	}

	rf := &recordFormatter{noun: fmt.Sprintf("contact with ID %d", args.ContactID), fields: contactDetailFields, resolver: b.resolver}
	return rf.format(result), nil
}

// ContactFields are the writable standard contact fields shared by create and update
type ContactFields struct {
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	OrganizationName string `json:"organization_name,omitempty" jsonschema_description:"Required for organizations"`
	HouseholdName    string `json:"household_name,omitempty" jsonschema_description:"Required for households"`
	Email            string `json:"email,omitempty" jsonschema_description:"Primary email address"`
	Phone            string `json:"phone,omitempty" jsonschema_description:"Primary phone number"`
	JobTitle         string `json:"job_title,omitempty"`
	BirthDate        string `json:"birth_date,omitempty" jsonschema_description:"YYYY-MM-DD"`
	Source           string `json:"source,omitempty"`
}

func (b *CiviMCPBridge) contactValues(cf *ContactFields) (map[string]interface{}, error) {
	birthDate, err := b.date("birth_date", cf.BirthDate)
	if err != nil {
		return nil, err
	}

	values := make(map[string]interface{})
	setIf(values, "first_name", cf.FirstName)
	setIf(values, "last_name", cf.LastName)
	setIf(values, "organization_name", cf.OrganizationName)
	setIf(values, "household_name", cf.HouseholdName)
	setIf(values, "email_primary.email", cf.Email)
	setIf(values, "phone_primary.phone", cf.Phone)
	setIf(values, "job_title", cf.JobTitle)
	setIf(values, "birth_date", birthDate)
	setIf(values, "source", cf.Source)
	return values, nil
}

// CreateContactArgs are the arguments of create_contact
type CreateContactArgs struct {
	ContactType string `json:"contact_type" jsonschema:"required,enum=Individual,enum=Household,enum=Organization"`
	ContactFields
	CustomFields map[string]interface{} `json:"custom_fields,omitempty" jsonschema_description:"Custom field values keyed by label or name"`
}

func (b *CiviMCPBridge) createContact(ctx context.Context, args *CreateContactArgs, extra map[string]interface{}) (string, error) {
	switch args.ContactType {
	case constants.ContactTypeIndividual:
		if args.FirstName == "" && args.LastName == "" && args.Email == "" {
			return "", mcp.InvalidParams("an Individual needs first_name, last_name or email")
		}
	case constants.ContactTypeOrganization:
		if args.OrganizationName == "" {
			return "", mcp.InvalidParams("an Organization needs organization_name")
		}
	case constants.ContactTypeHousehold:
		if args.HouseholdName == "" {
			return "", mcp.InvalidParams("a Household needs household_name")
		}
	default:
		return "", mcp.InvalidParams("contact_type must be one of %v", constants.ContactTypes)
	}

	values, err := b.contactValues(&args.ContactFields)
	if err != nil {
		return "", err
	}
	standard, custom, err := b.customValues(ctx, args.CustomFields, extra)
	if err != nil {
		return "", err
	}
	mergeValues(values, standard, custom)
	values["contact_type"] = args.ContactType

	result, err := b.api.Call(ctx, constants.EntityContact, constants.ActionCreate, &models.APIParams{Values: values})
	if err != nil {
		return "", fmt.Errorf("failed to create contact: %w", err)
	}
	return formatCreated("Created", args.ContactType, result), nil
}

// UpdateContactArgs are the arguments of update_contact
type UpdateContactArgs struct {
	ContactID int `json:"contact_id" jsonschema:"required" jsonschema_description:"Contact ID"`
	ContactFields
	CustomFields map[string]interface{} `json:"custom_fields,omitempty" jsonschema_description:"Custom field values keyed by label or name"`
}

func (b *CiviMCPBridge) updateContact(ctx context.Context, args *UpdateContactArgs, extra map[string]interface{}) (string, error) {
	if err := requireID("contact_id", args.ContactID); err != nil {
		return "", err
	}
	values, err := b.contactValues(&args.ContactFields)
	if err != nil {
		return "", err
	}
	standard, custom, err := b.customValues(ctx, args.CustomFields, extra)
	if err != nil {
		return "", err
	}
	mergeValues(values, standard, custom)
	if len(values) == 0 {
		return "", mcp.InvalidParams("no fields to update")
	}

	result, err := b.api.Call(ctx, constants.EntityContact, constants.ActionUpdate, &models.APIParams{
		Where:  []models.Condition{models.Eq("id", args.ContactID)},
		Values: values,
	})
	if err != nil {
		return "", fmt.Errorf("failed to update contact %d: %w", args.ContactID, err)
	}
	if len(result.Values) == 0 {
		return fmt.Sprintf("0 results: no contact with ID %d was updated.", args.ContactID), nil
	}
	return fmt.Sprintf("Updated contact %d (%d fields: %v).", args.ContactID, len(values), sortedKeys(values)), nil
}
