package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/debug"
	"github.com/zmcp/civicrm-mcp/internal/models"
)

// GetCustomFieldsArgs are the arguments of get_custom_fields
type GetCustomFieldsArgs struct {
	Entity string `json:"entity,omitempty" jsonschema_description:"Only fields extending this entity, e.g. Contact, Individual, Activity"`
}

func (b *CiviMCPBridge) getCustomFields(ctx context.Context, args *GetCustomFieldsArgs, _ map[string]interface{}) (string, error) {
	b.resolver.EnsureLoaded(ctx)

	var fields []*models.CustomField
	scope := ""
	switch {
	case args.Entity == "":
		fields = b.resolver.All()
	case strings.EqualFold(args.Entity, constants.EntityContact):
		// Contact lists the contact type specific groups as well
		fields = b.resolver.FieldsForEntities(contactEntities...)
		scope = " for " + constants.EntityContact
	default:
		fields = b.resolver.FieldsForEntity(args.Entity)
		scope = " for " + args.Entity
	}

	text := formatCustomFields(fields, scope)
	if !b.resolver.Loaded() {
		text += "\n\nCustom field metadata could not be loaded; check the server log."
	}
	return text, nil
}

// ServerInfoArgs are the arguments of crm_server_info
type ServerInfoArgs struct{}

func (b *CiviMCPBridge) serverInfo(_ context.Context, _ *ServerInfoArgs, _ map[string]interface{}) (string, error) {
	info, err := b.GetTraceInfo()
	if err != nil {
		return "", err
	}

	cache := "not loaded yet"
	if b.resolver.Loaded() {
		cache = fmt.Sprintf("%d fields", info.CustomFields)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Server", fmt.Sprintf("%s %s", constants.MCPServerName, constants.MCPServerVersion)},
		{"Protocol", constants.MCPProtocolVersion},
		{"CiviCRM", debug.MaskURL(info.BaseURL)},
		{"API path", info.APIPath},
		{"Authentication", info.Authentication},
		{"Read-only", info.ReadOnly},
		{"Custom fields", cache},
		{"Tools", info.TotalTools},
	})
	if len(info.ToolFilter) > 0 {
		t.AppendRow(table.Row{"Tool filter", strings.Join(info.ToolFilter, ", ")})
	}

	names := make([]string, 0, len(info.RegisteredTools))
	for _, ti := range info.RegisteredTools {
		names = append(names, ti.Name)
	}
	return t.Render() + "\n\nEnabled tools: " + strings.Join(names, ", "), nil
}

// component names the optional CiviCRM extension an entity belongs to
func component(entity string) string {
	switch entity {
	case constants.EntityEvent, constants.EntityParticipant:
		return "CiviEvent"
	case constants.EntityMembership:
		return "CiviMember"
	}
	return ""
}

// degradedMessage is the text result a degrading tool returns on remote failure
func degradedMessage(def *toolDef, err error) string {
	if c := component(def.info.Entity); c != "" {
		return fmt.Sprintf("%s is unavailable: the %s component may not be enabled on this site (%v).", def.info.Name, c, err)
	}
	return fmt.Sprintf("%s is unavailable (%v).", def.info.Name, err)
}
