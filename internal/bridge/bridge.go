package bridge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/zmcp/civicrm-mcp/internal/client"
	"github.com/zmcp/civicrm-mcp/internal/config"
	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/customfields"
	"github.com/zmcp/civicrm-mcp/internal/logging"
	"github.com/zmcp/civicrm-mcp/internal/mcp"
	"github.com/zmcp/civicrm-mcp/internal/models"
	"github.com/zmcp/civicrm-mcp/internal/transport"
)

// CiviMCPBridge connects a CiviCRM site to MCP
type CiviMCPBridge struct {
	config    *config.Config
	api       client.API
	resolver  *customfields.Resolver
	server    *mcp.Server
	tools     map[string]*models.ToolInfo
	toolOrder []string
	mu        sync.RWMutex
	running   bool
	now       func() time.Time
}

// NewCiviMCPBridge creates a bridge talking to the site named in cfg
func NewCiviMCPBridge(cfg *config.Config) (*CiviMCPBridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	civi := client.NewCiviClient(cfg.BaseURL, cfg.APIPath, cfg.Timeout)
	civi.SetAPIKey(cfg.APIKey)
	if cfg.HasSiteKey() {
		civi.SetSiteKey(cfg.SiteKey)
	}

	return New(cfg, civi), nil
}

// New creates a bridge over an existing API boundary and registers its tools.
// The custom field cache is filled lazily on the first tool call that needs it.
func New(cfg *config.Config, api client.API) *CiviMCPBridge {
	b := &CiviMCPBridge{
		config:   cfg,
		api:      api,
		resolver: customfields.New(api),
		server:   mcp.NewServer(constants.MCPServerName, constants.MCPServerVersion),
		tools:    make(map[string]*models.ToolInfo),
		now:      time.Now,
	}
	b.registerTools()
	return b
}

// registerTools adds every enabled tool to the MCP server
func (b *CiviMCPBridge) registerTools() {
	defs := b.toolDefinitions()
	if b.config.SortTools {
		sort.Slice(defs, func(i, j int) bool { return defs[i].info.Name < defs[j].info.Name })
	}

	for _, def := range defs {
		if b.config.ReadOnly && def.info.Modifying {
			logging.Debug("Bridge", "Skipping %s in read-only mode", def.info.Name)
			continue
		}
		if !b.shouldIncludeTool(def.info.Name) {
			logging.Debug("Bridge", "Skipping %s (not matched by --tools)", def.info.Name)
			continue
		}

		b.server.AddTool(&mcp.Tool{
			Name:        def.info.Name,
			Description: def.info.Description,
			InputSchema: def.schema,
		}, b.wrapHandler(def))

		info := def.info
		b.tools[info.Name] = &info
		b.toolOrder = append(b.toolOrder, info.Name)
	}

	logging.Debug("Bridge", "Registered %d tools", len(b.toolOrder))
}

// wrapHandler applies the per-tool failure policy. Degrading tools turn remote
// failures into a descriptive text result instead of an error.
func (b *CiviMCPBridge) wrapHandler(def *toolDef) mcp.ToolHandler {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		logging.Debug("Bridge", "Calling %s", def.info.Name)
		result, err := def.handler(ctx, args)
		if err == nil {
			return result, nil
		}
		if def.info.Degrades && !isInvalidParams(err) {
			logging.Warn("Bridge", "%s degraded: %v", def.info.Name, err)
			return degradedMessage(def, err), nil
		}
		return nil, err
	}
}

// shouldIncludeTool checks the tool name against the --tools glob patterns
func (b *CiviMCPBridge) shouldIncludeTool(name string) bool {
	if len(b.config.AllowedTools) == 0 {
		return true
	}

	for _, pattern := range b.config.AllowedTools {
		if b.matchesPattern(name, pattern) {
			return true
		}
	}
	return false
}

func (b *CiviMCPBridge) matchesPattern(name, pattern string) bool {
	if pattern == name {
		return true
	}
	matched, err := doublestar.Match(pattern, name)
	if err != nil {
		logging.Warn("Bridge", "Invalid tool pattern %q: %v", pattern, err)
		return false
	}
	return matched
}

// GetServer returns the MCP server instance
func (b *CiviMCPBridge) GetServer() *mcp.Server {
	return b.server
}

// SetTransport sets the transport for the MCP server
func (b *CiviMCPBridge) SetTransport(t transport.Transport) {
	b.server.SetTransport(t)
}

// HandleMessage delegates message handling to the MCP server
func (b *CiviMCPBridge) HandleMessage(ctx context.Context, msg *transport.Message) (*transport.Message, error) {
	return b.server.HandleMessage(ctx, msg)
}

// Run starts the MCP bridge
func (b *CiviMCPBridge) Run() error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("bridge is already running")
	}
	b.running = true
	b.mu.Unlock()

	return b.server.Run()
}

// Stop stops the MCP bridge
func (b *CiviMCPBridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}
	b.running = false
	b.server.Stop()
}

// GetTraceInfo returns the registered tool surface and configuration summary
func (b *CiviMCPBridge) GetTraceInfo() (*models.TraceInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tools := make([]models.ToolInfo, 0, len(b.toolOrder))
	for _, name := range b.toolOrder {
		tools = append(tools, *b.tools[name])
	}

	return &models.TraceInfo{
		BaseURL:         b.config.BaseURL,
		APIPath:         b.config.APIPath,
		MCPName:         constants.MCPServerName,
		Authentication:  b.config.AuthDescription(),
		ReadOnly:        b.config.ReadOnly,
		ToolFilter:      b.config.AllowedTools,
		SortTools:       b.config.SortTools,
		CustomFields:    b.resolver.Count(),
		RegisteredTools: tools,
		TotalTools:      len(tools),
	}, nil
}
