package bridge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/logging"
	"github.com/zmcp/civicrm-mcp/internal/mcp"
	"github.com/zmcp/civicrm-mcp/internal/models"
	"github.com/zmcp/civicrm-mcp/internal/utils"
)

// decodeArgs decodes raw tool arguments into out and returns the keys out
// does not declare. Numbers given as strings and similar loose input are accepted.
func decodeArgs(raw map[string]interface{}, out interface{}, required []string) (map[string]interface{}, error) {
	for _, name := range required {
		if utils.IsEmpty(raw[name]) {
			return nil, mcp.InvalidParams("missing required argument %q", name)
		}
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       wholeNumberHook,
		Squash:           true,
		TagName:          "json",
		Metadata:         &md,
		Result:           out,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create argument decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, mcp.InvalidParams("%v", err)
	}

	extra := make(map[string]interface{}, len(md.Unused))
	for _, key := range md.Unused {
		if v, ok := raw[key]; ok {
			extra[key] = v
		}
	}
	return extra, nil
}

// wholeNumberHook admits only whole numbers and base-10 digit strings into
// integer arguments
func wholeNumberHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return data, nil
	}

	switch v := data.(type) {
	case bool:
		return nil, fmt.Errorf("expected an integer, got %t", v)
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) || v != math.Trunc(v) {
			return nil, fmt.Errorf("expected an integer, got %v", v)
		}
		return int64(v), nil
	case float32:
		return wholeNumberHook(nil, to, float64(v))
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return data, nil
		}
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", v)
		}
		return n, nil
	}
	return data, nil
}

// customValues merges caller supplied custom fields into API names.
// The nested custom_fields object is the canonical shape: every key must
// resolve or already be a "<group>.<field>" name. Flat keys outside the
// declared arguments are accepted too; those that resolve become custom
// fields and the rest are forwarded unchanged as standard values.
// Nested values win over flat ones for the same field.
func (b *CiviMCPBridge) customValues(ctx context.Context, nested, flat map[string]interface{}) (standard, custom map[string]interface{}, err error) {
	standard = make(map[string]interface{})
	custom = make(map[string]interface{})
	if len(nested) == 0 && len(flat) == 0 {
		return standard, custom, nil
	}

	b.resolver.EnsureLoaded(ctx)

	if len(flat) > 0 {
		var resolved map[string]interface{}
		standard, resolved = b.resolver.Split(flat)
		for k, v := range resolved {
			custom[k] = v
		}
	}

	keys := make([]string, 0, len(nested))
	for k := range nested {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if apiName, ok := b.resolver.Resolve(key); ok {
			custom[apiName] = nested[key]
			continue
		}
		if strings.Contains(key, ".") {
			custom[key] = nested[key]
			continue
		}
		if !b.resolver.Loaded() {
			return nil, nil, mcp.InvalidParams("custom field %q cannot be resolved: custom field metadata is unavailable because it could not be loaded from CiviCRM (use the \"<group>.<field>\" API name instead)", key)
		}
		return nil, nil, mcp.InvalidParams("unknown custom field %q (use %s to list available fields)", key, ToolGetCustomFields)
	}

	if len(custom) > 0 {
		logging.Debug("Bridge", "Resolved custom fields: %v", sortedKeys(custom))
	}
	return standard, custom, nil
}

// customFilters turns custom and residual values into equality conditions
// and returns the custom API names to add to the select list
func (b *CiviMCPBridge) customFilters(ctx context.Context, nested, flat map[string]interface{}) ([]models.Condition, []string, error) {
	standard, custom, err := b.customValues(ctx, nested, flat)
	if err != nil {
		return nil, nil, err
	}

	var where []models.Condition
	var selectNames []string
	for _, k := range sortedKeys(custom) {
		where = append(where, models.Eq(k, custom[k]))
		selectNames = append(selectNames, k)
	}
	for _, k := range sortedKeys(standard) {
		where = append(where, models.Eq(k, standard[k]))
	}
	return where, selectNames, nil
}

// limit applies the configured default and the hard cap
func (b *CiviMCPBridge) limit(requested int) int {
	if requested <= 0 {
		return b.config.DefaultLimit
	}
	if requested > constants.MaxLimit {
		return constants.MaxLimit
	}
	return requested
}

// dateTime normalises an optional datetime argument; empty stays empty
func (b *CiviMCPBridge) dateTime(name, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	normalized, err := utils.NormalizeDateTime(value, b.now())
	if err != nil {
		return "", mcp.InvalidParams("%s: %v", name, err)
	}
	return normalized, nil
}

// date normalises an optional date argument; empty stays empty
func (b *CiviMCPBridge) date(name, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	normalized, err := utils.NormalizeDate(value, b.now())
	if err != nil {
		return "", mcp.InvalidParams("%s: %v", name, err)
	}
	return normalized, nil
}

// setIf adds a value when it is not empty
func setIf(values map[string]interface{}, key string, value interface{}) {
	if !utils.IsEmpty(value) {
		values[key] = value
	}
}

// setIfPositive adds an id when it is set
func setIfPositive(values map[string]interface{}, key string, value int) {
	if value > 0 {
		values[key] = value
	}
}

func mergeValues(dst map[string]interface{}, srcs ...map[string]interface{}) {
	for _, src := range srcs {
		for k, v := range src {
			dst[k] = v
		}
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isInvalidParams(err error) bool {
	return errors.Is(err, mcp.ErrInvalidParams)
}

// requireID rejects missing or non-positive record ids
func requireID(name string, id int) error {
	if id <= 0 {
		return mcp.InvalidParams("%s must be a positive integer", name)
	}
	return nil
}
