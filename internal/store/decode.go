package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/genie-dash/genie/pkg/dashboard"
)

// DecodeSnapshot parses a get_active_dashboard / get_dashboard /
// create_dashboard tool result into a normalized snapshot. The store emits
// two shapes for historical reasons (an analysis object and a
// create-response object); both are folded through
// dashboard.NormalizeResponse.
func DecodeSnapshot(raw json.RawMessage) (*dashboard.Snapshot, error) {
	var resp dashboard.ActiveDashboardResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode dashboard response: %w", err)
	}
	if resp.Analysis == nil && resp.ActiveLayoutID == "" && resp.Layout == nil {
		if looksLikeNotFound(raw) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("dashboard response carried no layout: %s", truncate(raw, 120))
	}
	return dashboard.NormalizeResponse(&resp), nil
}

// layoutListResponse is the list_dashboards result shape.
type layoutListResponse struct {
	Layouts []dashboard.Layout `json:"layouts"`
}

// DecodeLayoutList parses a list_dashboards tool result.
func DecodeLayoutList(raw json.RawMessage) ([]dashboard.Layout, error) {
	var resp layoutListResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode layout list: %w", err)
	}
	if resp.Layouts == nil {
		return []dashboard.Layout{}, nil
	}
	return resp.Layouts, nil
}

// looksLikeNotFound sniffs the store's textual "no active dashboard"
// replies, which arrive as plain messages rather than structured errors.
func looksLikeNotFound(raw json.RawMessage) bool {
	var probe struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	text := strings.ToLower(probe.Message + " " + probe.Error)
	return strings.Contains(text, "not found") || strings.Contains(text, "no active dashboard")
}

func truncate(raw json.RawMessage, n int) string {
	s := string(raw)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
