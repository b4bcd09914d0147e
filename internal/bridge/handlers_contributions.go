package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/mcp"
	"github.com/zmcp/civicrm-mcp/internal/models"
)

var contributionFields = []field{
	col("id", "ID"),
	col("contact_id.display_name", "Contact"),
	col("total_amount", "Amount"),
	col("currency", "Currency"),
	col("receive_date", "Received"),
	col("financial_type_id:label", "Financial type"),
	col("contribution_status_id:label", "Status"),
	col("payment_instrument_id:label", "Payment method"),
	col("source", "Source"),
}

// GetContributionsArgs are the arguments of get_contributions
type GetContributionsArgs struct {
	ContactID     int                    `json:"contact_id,omitempty"`
	FinancialType string                 `json:"financial_type,omitempty" jsonschema_description:"Financial type name, e.g. Donation"`
	Status        string                 `json:"status,omitempty" jsonschema_description:"Contribution status name, e.g. Completed or Pending"`
	DateFrom      string                 `json:"date_from,omitempty" jsonschema_description:"Earliest receive date"`
	DateTo        string                 `json:"date_to,omitempty" jsonschema_description:"Latest receive date"`
	MinAmount     string                 `json:"min_amount,omitempty" jsonschema_description:"Smallest total amount, e.g. 100.00"`
	Limit         int                    `json:"limit,omitempty" jsonschema:"default=25"`
	CustomFields  map[string]interface{} `json:"custom_fields,omitempty" jsonschema_description:"Custom field filters keyed by label or name"`
}

func (b *CiviMCPBridge) getContributions(ctx context.Context, args *GetContributionsArgs, extra map[string]interface{}) (string, error) {
	where, customSelect, err := b.customFilters(ctx, args.CustomFields, extra)
	if err != nil {
		return "", err
	}

	if args.ContactID > 0 {
		where = append(where, models.Eq("contact_id", args.ContactID))
	}
	if args.FinancialType != "" {
		where = append(where, models.Eq("financial_type_id:name", args.FinancialType))
	}
	if args.Status != "" {
		where = append(where, models.Eq("contribution_status_id:name", args.Status))
	}
	if args.MinAmount != "" {
		minAmount, err := parseAmount("min_amount", args.MinAmount, false)
		if err != nil {
			return "", err
		}
		where = append(where, models.Gte("total_amount", minAmount.StringFixed(2)))
	}
	from, err := b.dateTime("date_from", args.DateFrom)
	if err != nil {
		return "", err
	}
	if from != "" {
		where = append(where, models.Gte("receive_date", from))
	}
	to, err := b.dateTime("date_to", args.DateTo)
	if err != nil {
		return "", err
	}
	if to != "" {
		where = append(where, models.Lte("receive_date", to))
	}

	result, err := b.api.Call(ctx, constants.EntityContribution, constants.ActionGet, &models.APIParams{
		Select:  append(fieldKeys(contributionFields), customSelect...),
		Where:   where,
		OrderBy: map[string]string{"receive_date": "DESC"},
		Limit:   b.limit(args.Limit),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get contributions: %w", err)
	}

	rf := &recordFormatter{noun: "contributions", fields: contributionFields, resolver: b.resolver}
	text := rf.format(result)
	if totals := formatTotals(result.Values, "total_amount", "currency"); totals != "" {
		text += "\n\n" + totals
	}
	return text, nil
}

// CreateContributionArgs are the arguments of create_contribution
type CreateContributionArgs struct {
	ContactID         int                    `json:"contact_id" jsonschema:"required"`
	TotalAmount       string                 `json:"total_amount" jsonschema:"required" jsonschema_description:"Amount, e.g. 50.00"`
	FinancialType     string                 `json:"financial_type" jsonschema:"required" jsonschema_description:"Financial type name, e.g. Donation"`
	Currency          string                 `json:"currency,omitempty" jsonschema_description:"ISO currency code (site default when empty)"`
	ReceiveDate       string                 `json:"receive_date,omitempty" jsonschema_description:"Defaults to now"`
	Status            string                 `json:"status,omitempty" jsonschema:"default=Completed"`
	PaymentInstrument string                 `json:"payment_instrument,omitempty" jsonschema_description:"Payment method name, e.g. Check or Credit Card"`
	Source            string                 `json:"source,omitempty"`
	CustomFields      map[string]interface{} `json:"custom_fields,omitempty" jsonschema_description:"Custom field values keyed by label or name"`
}

func (b *CiviMCPBridge) createContribution(ctx context.Context, args *CreateContributionArgs, extra map[string]interface{}) (string, error) {
	if err := requireID("contact_id", args.ContactID); err != nil {
		return "", err
	}
	total, err := parseAmount("total_amount", args.TotalAmount, true)
	if err != nil {
		return "", err
	}

	when := args.ReceiveDate
	if when == "" {
		when = "now"
	}
	receiveDate, err := b.dateTime("receive_date", when)
	if err != nil {
		return "", err
	}
	status := args.Status
	if status == "" {
		status = "Completed"
	}

	values := map[string]interface{}{
		"contact_id":                  args.ContactID,
		"total_amount":                total.StringFixed(2),
		"financial_type_id:name":      args.FinancialType,
		"receive_date":                receiveDate,
		"contribution_status_id:name": status,
	}
	setIf(values, "currency", strings.ToUpper(args.Currency))
	setIf(values, "payment_instrument_id:name", args.PaymentInstrument)
	setIf(values, "source", args.Source)

	standard, custom, err := b.customValues(ctx, args.CustomFields, extra)
	if err != nil {
		return "", err
	}
	mergeValues(values, standard, custom)

	result, err := b.api.Call(ctx, constants.EntityContribution, constants.ActionCreate, &models.APIParams{Values: values})
	if err != nil {
		return "", fmt.Errorf("failed to create contribution: %w", err)
	}
	return formatCreated("Recorded", fmt.Sprintf("contribution of %s", total.StringFixed(2)), result), nil
}

// parseAmount reads a monetary argument; positive requires a value above zero
func parseAmount(name, raw string, positive bool) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, mcp.InvalidParams("%s: %q is not a number", name, raw)
	}
	if d.IsNegative() || (positive && d.IsZero()) {
		return decimal.Zero, mcp.InvalidParams("%s must be greater than zero", name)
	}
	return d, nil
}
