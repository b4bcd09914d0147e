package client

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/models"
	"github.com/zmcp/civicrm-mcp/internal/utils"
)

// parseAPIResponse decodes an API v4 body. The endpoint normally returns
// values as a list, but some actions return an object keyed by id.
func parseAPIResponse(body []byte, statusCode int) (*models.APIResult, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return &models.APIResult{}, nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", constants.ErrResponseParse, err)
	}

	// The ajax endpoint reports some failures with a 200 status
	if msg, ok := raw["error_message"].(string); ok && msg != "" {
		return nil, buildAPIError(&models.APIError{Message: msg, Code: raw["error_code"]}, statusCode)
	}

	result := &models.APIResult{Values: normalizeValues(raw["values"])}
	if count, ok := utils.ToInt(raw["count"]); ok {
		result.Count = count
	} else {
		result.Count = len(result.Values)
	}
	return result, nil
}

func normalizeValues(values interface{}) []map[string]interface{} {
	switch v := values.(type) {
	case []interface{}:
		records := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			switch rec := item.(type) {
			case map[string]interface{}:
				records = append(records, rec)
			default:
				// Scalar results (e.g. deleted ids) are wrapped so callers see records
				records = append(records, map[string]interface{}{"id": rec})
			}
		}
		return records
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, aok := utils.ToInt(keys[i])
			b, bok := utils.ToInt(keys[j])
			if aok && bok {
				return a < b
			}
			return keys[i] < keys[j]
		})
		records := make([]map[string]interface{}, 0, len(v))
		for _, k := range keys {
			if rec, ok := v[k].(map[string]interface{}); ok {
				records = append(records, rec)
			}
		}
		return records
	default:
		return []map[string]interface{}{}
	}
}

// maxErrorBodyRunes caps how much of a non-JSON error body is quoted
const maxErrorBodyRunes = 300

// parseErrorFromBody parses error from response body
func parseErrorFromBody(body []byte, statusCode int) error {
	var apiErr models.APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return buildAPIError(&apiErr, statusCode)
	}

	text := strings.TrimSpace(string(body))
	if runes := []rune(text); len(runes) > maxErrorBodyRunes {
		text = string(runes[:maxErrorBodyRunes]) + "..."
	}
	if text == "" {
		text = "empty response"
	}
	return fmt.Errorf("CiviCRM API error (HTTP %d): %s", statusCode, text)
}

func buildAPIError(apiErr *models.APIError, statusCode int) error {
	var errMsg strings.Builder
	errMsg.WriteString(fmt.Sprintf("CiviCRM API error (HTTP %d)", statusCode))
	if code := utils.ToString(apiErr.Code); code != "" {
		errMsg.WriteString(fmt.Sprintf(" [%s]", code))
	}
	errMsg.WriteString(": ")
	errMsg.WriteString(apiErr.Message)
	return fmt.Errorf("%s", errMsg.String())
}
