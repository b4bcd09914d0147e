package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/mcp"
	"github.com/zmcp/civicrm-mcp/internal/models"
)

func TestDecodeArgs(t *testing.T) {
	t.Run("loose numbers and residual keys", func(t *testing.T) {
		var args CreateActivityArgs
		extra, err := decodeArgs(map[string]interface{}{
			"activity_type":      "Meeting",
			"contact_id":         "42",
			"duration":           float64(30),
			"Volunteer Interest": "Arts",
		}, &args, []string{"activity_type", "contact_id"})
		require.NoError(t, err)

		assert.Equal(t, "Meeting", args.ActivityType)
		assert.Equal(t, 42, args.ContactID)
		assert.Equal(t, 30, args.Duration)
		assert.Equal(t, map[string]interface{}{"Volunteer Interest": "Arts"}, extra)
	})

	t.Run("embedded fields are squashed", func(t *testing.T) {
		var args CreateContactArgs
		extra, err := decodeArgs(map[string]interface{}{
			"contact_type": "Individual",
			"first_name":   "Jane",
			"email":        "jane@example.org",
		}, &args, nil)
		require.NoError(t, err)

		assert.Equal(t, "Jane", args.FirstName)
		assert.Equal(t, "jane@example.org", args.Email)
		assert.Empty(t, extra)
	})

	t.Run("missing required argument", func(t *testing.T) {
		var args GetContactArgs
		_, err := decodeArgs(map[string]interface{}{}, &args, []string{"contact_id"})
		require.Error(t, err)
		assert.ErrorIs(t, err, mcp.ErrInvalidParams)
		assert.Contains(t, err.Error(), `"contact_id"`)
	})

	t.Run("blank string counts as missing", func(t *testing.T) {
		var args CreateMembershipArgs
		_, err := decodeArgs(map[string]interface{}{"contact_id": 1, "membership_type": "  "}, &args,
			[]string{"contact_id", "membership_type"})
		assert.ErrorIs(t, err, mcp.ErrInvalidParams)
	})

	t.Run("wrong type", func(t *testing.T) {
		var args GetContactArgs
		_, err := decodeArgs(map[string]interface{}{"contact_id": "forty-two"}, &args, nil)
		assert.ErrorIs(t, err, mcp.ErrInvalidParams)
	})
}

func TestDecodeArgs_IntegerArguments(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		want    int
		wantErr bool
	}{
		{name: "whole float", value: float64(3), want: 3},
		{name: "int", value: 3, want: 3},
		{name: "decimal string", value: "3", want: 3},
		{name: "padded string", value: " 42 ", want: 42},
		{name: "bool", value: true, wantErr: true},
		{name: "fraction", value: 3.9, wantErr: true},
		{name: "fractional string", value: "3.5", wantErr: true},
		{name: "hex string", value: "0x3", wantErr: true},
		{name: "word", value: "three", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args DeleteActivityArgs
			_, err := decodeArgs(map[string]interface{}{"activity_id": tt.value}, &args, []string{"activity_id"})
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, mcp.ErrInvalidParams)
				assert.Contains(t, err.Error(), "activity_id")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, args.ActivityID)
		})
	}
}

func TestCustomValues(t *testing.T) {
	ctx := context.Background()

	t.Run("nested keys resolve by label or name", func(t *testing.T) {
		b, _ := newTestBridge(t, nil)
		standard, custom, err := b.customValues(ctx, map[string]interface{}{
			"volunteer interest": "Arts",
			"Donor_Level":        "Gold",
		}, nil)
		require.NoError(t, err)
		assert.Empty(t, standard)
		assert.Equal(t, map[string]interface{}{
			"Volunteer_Info.Interest_Area": "Arts",
			"Donor_Info.Donor_Level":       "Gold",
		}, custom)
	})

	t.Run("nested dotted key passes through", func(t *testing.T) {
		b, _ := newTestBridge(t, nil)
		_, custom, err := b.customValues(ctx, map[string]interface{}{"Other_Group.Field": 1}, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"Other_Group.Field": 1}, custom)
	})

	t.Run("nested unknown key is rejected", func(t *testing.T) {
		b, _ := newTestBridge(t, nil)
		_, _, err := b.customValues(ctx, map[string]interface{}{"Shoe Size": 44}, nil)
		assert.ErrorIs(t, err, mcp.ErrInvalidParams)
	})

	t.Run("flat keys split", func(t *testing.T) {
		b, _ := newTestBridge(t, nil)
		standard, custom, err := b.customValues(ctx, nil, map[string]interface{}{
			"Volunteer Interest": "Environmental",
			"nick_name":          "JJ",
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"nick_name": "JJ"}, standard)
		assert.Equal(t, map[string]interface{}{"Volunteer_Info.Interest_Area": "Environmental"}, custom)
	})

	t.Run("nested wins over flat", func(t *testing.T) {
		b, _ := newTestBridge(t, nil)
		_, custom, err := b.customValues(ctx,
			map[string]interface{}{"Interest_Area": "Nested"},
			map[string]interface{}{"Volunteer Interest": "Flat"})
		require.NoError(t, err)
		assert.Equal(t, "Nested", custom["Volunteer_Info.Interest_Area"])
	})

	t.Run("nothing to resolve skips the metadata load", func(t *testing.T) {
		b, api := newTestBridge(t, nil)
		_, _, err := b.customValues(ctx, nil, nil)
		require.NoError(t, err)
		assert.Zero(t, api.count(constants.EntityCustomField, constants.ActionGet))
	})

	t.Run("metadata failure degrades to standard fields", func(t *testing.T) {
		b, api := newTestBridge(t, nil)
		api.fail(constants.EntityCustomField, constants.ActionGet, assert.AnError)

		standard, custom, err := b.customValues(ctx, nil, map[string]interface{}{"Volunteer Interest": "Arts"})
		require.NoError(t, err)
		assert.Empty(t, custom)
		assert.Equal(t, map[string]interface{}{"Volunteer Interest": "Arts"}, standard)
	})
}

func TestCustomValues_MetadataUnavailable(t *testing.T) {
	b, api := newTestBridge(t, nil)
	api.fail(constants.EntityCustomField, constants.ActionGet, assert.AnError)

	_, _, err := b.customValues(context.Background(), map[string]interface{}{"Volunteer Interest": "Arts"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, mcp.ErrInvalidParams)
	assert.Contains(t, err.Error(), "custom field metadata is unavailable")
	assert.NotContains(t, err.Error(), "unknown custom field")

	_, custom, err := b.customValues(context.Background(), map[string]interface{}{"Volunteer_Info.Interest_Area": "Arts"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"Volunteer_Info.Interest_Area": "Arts"}, custom)
}

func TestCustomFilters(t *testing.T) {
	b, _ := newTestBridge(t, nil)

	where, selectNames, err := b.customFilters(context.Background(),
		map[string]interface{}{"Donor Level": "Gold"},
		map[string]interface{}{"source": "Web"})
	require.NoError(t, err)

	assert.Equal(t, []models.Condition{
		models.Eq("Donor_Info.Donor_Level", "Gold"),
		models.Eq("source", "Web"),
	}, where)
	assert.Equal(t, []string{"Donor_Info.Donor_Level"}, selectNames)
}

func TestLimit(t *testing.T) {
	b, _ := newTestBridge(t, nil)

	assert.Equal(t, constants.DefaultLimit, b.limit(0))
	assert.Equal(t, constants.DefaultLimit, b.limit(-3))
	assert.Equal(t, 10, b.limit(10))
	assert.Equal(t, constants.MaxLimit, b.limit(10000))
}

func TestDates(t *testing.T) {
	b, _ := newTestBridge(t, nil)

	v, err := b.dateTime("when", "")
	require.NoError(t, err)
	assert.Empty(t, v)

	v, err = b.dateTime("when", "now")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14 09:30:00", v)

	v, err = b.date("when", "2026-01-02T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02", v)

	_, err = b.date("birth_date", "last tuesday")
	assert.ErrorIs(t, err, mcp.ErrInvalidParams)
	assert.Contains(t, err.Error(), "birth_date")
}

func TestRequireID(t *testing.T) {
	assert.NoError(t, requireID("contact_id", 1))
	assert.ErrorIs(t, requireID("contact_id", 0), mcp.ErrInvalidParams)
	assert.ErrorIs(t, requireID("contact_id", -5), mcp.ErrInvalidParams)
}
