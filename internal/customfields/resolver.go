// Package customfields maps human custom-field labels and short names to the
// composite "<group>.<field>" identifiers the CiviCRM API accepts.
package customfields

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/zmcp/civicrm-mcp/internal/client"
	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/logging"
	"github.com/zmcp/civicrm-mcp/internal/models"
	"github.com/zmcp/civicrm-mcp/internal/utils"
)

const loadKey = "custom-fields"

// metadataSelect is the column list requested from CustomField.get
var metadataSelect = []string{
	"id",
	"name",
	"label",
	"custom_group_id.name",
	"custom_group_id.extends",
	"data_type",
	"html_type",
}

// Resolver owns the custom-field descriptor cache and its alias index.
// It is populated once, lazily, and held for the life of the process.
type Resolver struct {
	api client.API

	mu          sync.RWMutex
	fields      []*models.CustomField          // load order
	byComposite map[string]*models.CustomField // composite API name -> descriptor
	byAlias     map[string]string              // folded label or short name -> composite API name
	loaded      bool

	loadGroup singleflight.Group
}

// New creates an empty resolver backed by the given API boundary
func New(api client.API) *Resolver {
	return &Resolver{
		api:         api,
		byComposite: make(map[string]*models.CustomField),
		byAlias:     make(map[string]string),
	}
}

// EnsureLoaded populates the cache on first use. It is best effort: a failed
// metadata fetch is logged and the resolver stays empty, so lookups behave as
// if no custom fields exist. The next call tries again.
func (r *Resolver) EnsureLoaded(ctx context.Context) {
	if r.Loaded() {
		return
	}

	// Collapse concurrent first loads into one fetch
	_, err, _ := r.loadGroup.Do(loadKey, func() (interface{}, error) {
		// Double-check after acquiring the singleflight slot
		if r.Loaded() {
			return nil, nil
		}

		fields, err := r.load(ctx)
		if err != nil {
			return nil, err
		}
		r.install(fields)
		return nil, nil
	})

	if err != nil {
		logging.Warn("CustomFields", "Custom field metadata unavailable, continuing without custom fields: %v", err)
		return
	}
	logging.Debug("CustomFields", "Loaded %d custom field definitions", r.Count())
}

// load fetches every active custom field definition in one unbounded query
func (r *Resolver) load(ctx context.Context) ([]*models.CustomField, error) {
	params := &models.APIParams{
		Select: metadataSelect,
		Where: []models.Condition{
			models.Eq("is_active", true),
			models.Eq("custom_group_id.is_active", true),
		},
		Limit: 0,
	}

	result, err := r.api.Call(ctx, constants.EntityCustomField, constants.ActionGet, params)
	if err != nil {
		return nil, fmt.Errorf("failed to load custom fields: %w", err)
	}

	fields := make([]*models.CustomField, 0, len(result.Values))
	for _, rec := range result.Values {
		field := fieldFromRecord(rec)
		if field.Name == "" || field.GroupName == "" {
			logging.Debug("CustomFields", "Skipping custom field without name or group: %v", rec)
			continue
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func fieldFromRecord(rec map[string]interface{}) *models.CustomField {
	id, _ := utils.ToInt(rec["id"])
	return &models.CustomField{
		ID:        id,
		Name:      utils.ToString(rec["name"]),
		Label:     utils.ToString(rec["label"]),
		GroupName: utils.ToString(rec["custom_group_id.name"]),
		Extends:   utils.ToString(rec["custom_group_id.extends"]),
		DataType:  utils.ToString(rec["data_type"]),
		HTMLType:  utils.ToString(rec["html_type"]),
	}
}

// install replaces the cache with a freshly loaded set. Aliases are written in
// load order, so when two fields share a label the later one wins.
func (r *Resolver) install(fields []*models.CustomField) {
	byComposite := make(map[string]*models.CustomField, len(fields))
	byAlias := make(map[string]string, len(fields)*2)

	for _, f := range fields {
		apiName := f.APIName()
		byComposite[apiName] = f
		if key := foldAlias(f.Label); key != "" {
			byAlias[key] = apiName
		}
		if key := foldAlias(f.Name); key != "" {
			byAlias[key] = apiName
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields = fields
	r.byComposite = byComposite
	r.byAlias = byAlias
	r.loaded = true
}

func foldAlias(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Resolve returns the composite API name for a label or short name.
// Matching is case-insensitive. Unknown names report false.
func (r *Resolver) Resolve(name string) (string, bool) {
	key := foldAlias(name)
	if key == "" {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	apiName, ok := r.byAlias[key]
	return apiName, ok
}

// Field returns the descriptor for a composite API name
func (r *Resolver) Field(apiName string) (*models.CustomField, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byComposite[apiName]
	return f, ok
}

// FieldsForEntity returns descriptors whose group extends exactly the given
// entity type, in load order
func (r *Resolver) FieldsForEntity(entity string) []*models.CustomField {
	return r.FieldsForEntities(entity)
}

// FieldsForEntities returns descriptors extending any of the given entity types
func (r *Resolver) FieldsForEntities(entities ...string) []*models.CustomField {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*models.CustomField{}
	for _, f := range r.fields {
		for _, entity := range entities {
			if f.Extends == entity {
				result = append(result, f)
				break
			}
		}
	}
	return result
}

// All returns every loaded descriptor in load order
func (r *Resolver) All() []*models.CustomField {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.CustomField, len(r.fields))
	copy(result, r.fields)
	return result
}

// Split separates an attribute map into standard keys and resolved custom
// fields keyed by composite API name. Keys are visited in sorted order; if two
// keys resolve to the same field the later key's value is kept.
func (r *Resolver) Split(attrs map[string]interface{}) (standard, custom map[string]interface{}) {
	standard = make(map[string]interface{})
	custom = make(map[string]interface{})

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if apiName, ok := r.Resolve(k); ok {
			custom[apiName] = attrs[k]
			continue
		}
		standard[k] = attrs[k]
	}
	return standard, custom
}

// Count returns the number of loaded custom field descriptors
func (r *Resolver) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fields)
}

// Loaded reports whether a metadata load has completed successfully
func (r *Resolver) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}
