package bridge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"

	"github.com/zmcp/civicrm-mcp/internal/customfields"
	"github.com/zmcp/civicrm-mcp/internal/models"
	"github.com/zmcp/civicrm-mcp/internal/utils"
)

// field is one line of a record block: API key and display label
type field struct {
	key   string
	label string
}

func col(key, label string) field { return field{key: key, label: label} }

// recordFormatter renders result sets as text blocks, one per record
type recordFormatter struct {
	noun     string // plural, e.g. "contacts"
	fields   []field
	resolver *customfields.Resolver
}

// format emits "0 results" text for empty sets; otherwise one block per record
// with the fixed fields first and any remaining dotted keys appended
func (rf *recordFormatter) format(result *models.APIResult) string {
	if result == nil || len(result.Values) == 0 {
		return fmt.Sprintf("0 results: no %s found.", rf.noun)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d %s", len(result.Values), rf.noun)
	if result.Count > len(result.Values) {
		fmt.Fprintf(&sb, " (showing %d of %d)", len(result.Values), result.Count)
	}
	sb.WriteString(":\n")

	for i, rec := range result.Values {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "%d.\n", i+1)
		rf.writeRecord(&sb, rec)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (rf *recordFormatter) writeRecord(sb *strings.Builder, rec map[string]interface{}) {
	fixed := make(map[string]bool, len(rf.fields))
	for _, fl := range rf.fields {
		fixed[fl.key] = true
		if v, ok := rec[fl.key]; ok && !utils.IsEmpty(v) {
			fmt.Fprintf(sb, "   %s: %s\n", fl.label, utils.ToString(v))
		}
	}

	// Residual dotted keys are custom fields or joins not in the fixed list
	var extra []string
	for k, v := range rec {
		if fixed[k] || !strings.Contains(k, ".") || utils.IsEmpty(v) {
			continue
		}
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		fmt.Fprintf(sb, "   %s: %s\n", rf.label(k), utils.ToString(rec[k]))
	}
}

func (rf *recordFormatter) label(apiName string) string {
	if rf.resolver != nil {
		if cf, ok := rf.resolver.Field(apiName); ok && cf.Label != "" {
			return cf.Label
		}
	}
	return apiName
}

// formatCreated reports the id of a created or updated record
func formatCreated(verb, noun string, result *models.APIResult) string {
	rec := result.First()
	if rec == nil {
		return fmt.Sprintf("%s %s (no record returned).", verb, noun)
	}
	id := utils.ToString(rec["id"])
	if id == "" {
		return fmt.Sprintf("%s %s.", verb, noun)
	}
	return fmt.Sprintf("%s %s with ID %s.", verb, noun, id)
}

// amount parses a monetary value without float rounding
func amount(v interface{}) (decimal.Decimal, bool) {
	s := utils.ToString(v)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// formatTotals sums an amount column per currency
func formatTotals(records []map[string]interface{}, amountKey, currencyKey string) string {
	totals := make(map[string]decimal.Decimal)
	for _, rec := range records {
		d, ok := amount(rec[amountKey])
		if !ok {
			continue
		}
		currency := utils.ToString(rec[currencyKey])
		totals[currency] = totals[currency].Add(d)
	}
	if len(totals) == 0 {
		return ""
	}

	currencies := make([]string, 0, len(totals))
	for c := range totals {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	parts := make([]string, 0, len(currencies))
	for _, c := range currencies {
		parts = append(parts, strings.TrimSpace(totals[c].StringFixed(2)+" "+c))
	}
	return "Total: " + strings.Join(parts, ", ")
}

// newTable returns a table writer in the house style
func newTable(headers ...interface{}) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(headers)
	return t
}

// formatCustomFields renders descriptors as a table
func formatCustomFields(fields []*models.CustomField, scope string) string {
	if len(fields) == 0 {
		return fmt.Sprintf("0 results: no custom fields found%s.", scope)
	}

	t := newTable("Label", "Name", "API name", "Extends", "Type", "Input")
	for _, cf := range fields {
		t.AppendRow(table.Row{cf.Label, cf.Name, cf.APIName(), cf.Extends, cf.DataType, cf.HTMLType})
	}
	return fmt.Sprintf("Found %d custom fields%s:\n%s", len(fields), scope, t.Render())
}
