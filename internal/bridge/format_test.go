package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmcp/civicrm-mcp/internal/models"
)

func TestRecordFormatter_Empty(t *testing.T) {
	rf := &recordFormatter{noun: "contacts", fields: contactSearchFields}

	assert.Equal(t, "0 results: no contacts found.", rf.format(&models.APIResult{}))
	assert.Equal(t, "0 results: no contacts found.", rf.format(nil))
}

func TestRecordFormatter_FixedOrderThenResidual(t *testing.T) {
	b, _ := newTestBridge(t, nil)
	b.resolver.EnsureLoaded(context.Background())

	rf := &recordFormatter{
		noun:     "contacts",
		fields:   []field{col("id", "ID"), col("display_name", "Name"), col("email_primary.email", "Email")},
		resolver: b.resolver,
	}
	text := rf.format(&models.APIResult{
		Count: 40,
		Values: []map[string]interface{}{
			{
				"display_name":                 "Jane Doe",
				"id":                           float64(7),
				"email_primary.email":          "",
				"Volunteer_Info.Interest_Area": "Arts",
				"Unknown_Group.Field":          "x",
				"sort_name":                    "Doe, Jane",
			},
			{"id": float64(8), "display_name": "John Roe"},
		},
	})

	expected := "Found 2 contacts (showing 2 of 40):\n" +
		"\n1.\n" +
		"   ID: 7\n" +
		"   Name: Jane Doe\n" +
		"   Unknown_Group.Field: x\n" +
		"   Volunteer Interest: Arts\n" +
		"\n2.\n" +
		"   ID: 8\n" +
		"   Name: John Roe"
	assert.Equal(t, expected, text)
}

func TestFormatCreated(t *testing.T) {
	assert.Equal(t, "Created Individual with ID 12.",
		formatCreated("Created", "Individual", &models.APIResult{Values: []map[string]interface{}{{"id": float64(12)}}}))
	assert.Equal(t, "Created Individual (no record returned).",
		formatCreated("Created", "Individual", &models.APIResult{}))
	assert.Equal(t, "Created Individual.",
		formatCreated("Created", "Individual", &models.APIResult{Values: []map[string]interface{}{{"display_name": "x"}}}))
}

func TestFormatTotals(t *testing.T) {
	records := []map[string]interface{}{
		{"total_amount": "0.10", "currency": "USD"},
		{"total_amount": float64(0.2), "currency": "USD"},
		{"total_amount": "100", "currency": "EUR"},
		{"total_amount": "n/a", "currency": "EUR"},
		{"currency": "GBP"},
	}

	assert.Equal(t, "Total: 100.00 EUR, 0.30 USD", formatTotals(records, "total_amount", "currency"))
	assert.Empty(t, formatTotals(nil, "total_amount", "currency"))
}

func TestFormatCustomFields(t *testing.T) {
	assert.Equal(t, "0 results: no custom fields found for Event.", formatCustomFields(nil, " for Event"))

	text := formatCustomFields([]*models.CustomField{
		{ID: 1, Name: "Interest_Area", Label: "Volunteer Interest", GroupName: "Volunteer_Info", Extends: "Individual", DataType: "String", HTMLType: "Select"},
	}, "")
	require.Contains(t, text, "Found 1 custom fields:")
	assert.Contains(t, text, "Volunteer Interest")
	assert.Contains(t, text, "Volunteer_Info.Interest_Area")
	assert.Contains(t, text, "Individual")
}
