package dashboard

// Tool response payload shapes, as emitted by the dashboard MCP server.
// These arrive both inline in tool-call events and as tool results from the
// remote store; both paths funnel through NormalizeResponse so the rest of
// the system only ever sees canonical snapshots.

// CreateDashboardResponse is the response payload of a create_dashboard
// tool call. Widgets is optional: empty dashboards carry none.
type CreateDashboardResponse struct {
	Success        bool        `json:"success"`
	Operation      string      `json:"operation"`
	ActiveLayoutID string      `json:"activeLayoutId"`
	Message        string      `json:"message"`
	Timestamp      string      `json:"timestamp"`
	Widgets        []RawWidget `json:"widgets,omitempty"`
	TotalFound     int         `json:"totalFound,omitempty"`
	Layout         *Layout     `json:"layout,omitempty"`
}

// AddWidgetResponse is the response payload of an add_widget tool call.
type AddWidgetResponse struct {
	Success        bool        `json:"success"`
	Operation      string      `json:"operation"`
	ActiveLayoutID string      `json:"activeLayoutId"`
	Message        string      `json:"message"`
	Timestamp      string      `json:"timestamp"`
	Widgets        []RawWidget `json:"widgets"`
}

// ActiveDashboardResponse is the analysis object returned by the remote
// store's get_active_dashboard and get_dashboard tools. The same wire shape
// doubles as a create_dashboard response when Analysis is absent, which is
// why NormalizeResponse handles both variants.
type ActiveDashboardResponse struct {
	ActiveLayoutID string             `json:"activeLayoutId"`
	Analysis       *DashboardAnalysis `json:"analysis,omitempty"`

	// create_dashboard variant fields
	Message string      `json:"message,omitempty"`
	Layout  *Layout     `json:"layout,omitempty"`
	Widgets []RawWidget `json:"widgets,omitempty"`
}

// DashboardAnalysis describes one stored dashboard layout and its widgets.
type DashboardAnalysis struct {
	LayoutID    string      `json:"layoutId"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Widgets     []RawWidget `json:"widgets"`
}

// NormalizeResponse folds either store response variant into a canonical
// snapshot. The create_dashboard variant tolerates a missing layout object:
// the layout ID falls back to the active layout ID, the name to "Untitled
// Dashboard", and the description to the response message.
func NormalizeResponse(resp *ActiveDashboardResponse) *Snapshot {
	if resp == nil {
		return nil
	}

	if resp.Analysis != nil && resp.ActiveLayoutID != "" {
		return &Snapshot{
			ActiveLayoutID: resp.ActiveLayoutID,
			Layout: Layout{
				LayoutID:    resp.Analysis.LayoutID,
				Name:        resp.Analysis.Name,
				Description: resp.Analysis.Description,
			},
			Widgets: NormalizeWidgets(resp.Analysis.Widgets),
		}
	}

	return snapshotFromCreate(&CreateDashboardResponse{
		ActiveLayoutID: resp.ActiveLayoutID,
		Message:        resp.Message,
		Layout:         resp.Layout,
		Widgets:        resp.Widgets,
	})
}

// SnapshotFromCreate normalizes a create_dashboard response into a
// snapshot, applying the same fallbacks as NormalizeResponse.
func SnapshotFromCreate(resp *CreateDashboardResponse) *Snapshot {
	if resp == nil {
		return nil
	}
	return snapshotFromCreate(resp)
}

func snapshotFromCreate(resp *CreateDashboardResponse) *Snapshot {
	layout := Layout{
		LayoutID:    resp.ActiveLayoutID,
		Name:        "Untitled Dashboard",
		Description: resp.Message,
	}
	if resp.Layout != nil {
		if resp.Layout.LayoutID != "" {
			layout.LayoutID = resp.Layout.LayoutID
		}
		if resp.Layout.Name != "" {
			layout.Name = resp.Layout.Name
		}
		if resp.Layout.Description != "" {
			layout.Description = resp.Layout.Description
		}
		layout.ID = resp.Layout.ID
	}
	return &Snapshot{
		ActiveLayoutID: resp.ActiveLayoutID,
		Layout:         layout,
		Widgets:        NormalizeWidgets(resp.Widgets),
	}
}
