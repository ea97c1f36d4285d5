// Package toolstream defines the tool-call event boundary between the chat
// transport and the Genie session core: the envelope shape the agent's
// tool-use protocol emits, the classifier that turns opaque envelopes into
// typed events, and the Redis Pub/Sub client that carries envelopes between
// processes.
//
// The upstream stream is append-only, possibly out of order, and possibly
// duplicated: both the tool call and the tool result surface as separate
// notifications, and either can appear more than once while the stream
// catches up. Every event therefore carries a deterministic identity used
// by the session reducer for at-most-once application.
package toolstream

import (
	"encoding/json"
	"fmt"

	"github.com/genie-dash/genie/pkg/dashboard"
)

// Tool names recognized by the classifier. Unknown tool names are inert:
// they classify to nothing and never crash the reducer, so new tool types
// can ship upstream before this side learns about them.
const (
	ToolCreateDashboard  = "create_dashboard"
	ToolAddWidget        = "add_widget"
	ToolManipulateWidget = "manipulate_widget"
)

// EventTypeToolCall is the envelope event tag for tool-call notifications.
const EventTypeToolCall = "tool_call"

// RoleToolExecution is the message role carried by tool-call envelopes.
const RoleToolExecution = "tool_execution"

// Envelope is the opaque record the chat transport delivers. Data and the
// nested token are optional; envelopes without a usable token are not tool
// events and are skipped by the classifier.
type Envelope struct {
	Event string   `json:"event"`
	Data  *Message `json:"data,omitempty"`
}

// Message is the transport-level message wrapper inside an envelope.
// ID is the upstream message identifier and is part of the event identity.
type Message struct {
	ID    int64           `json:"id"`
	Role  string          `json:"role"`
	Token json.RawMessage `json:"token,omitempty"`
}

// Token is a tool invocation: either arguments-only (the call was issued,
// no result yet) or response-bearing (the call completed upstream).
type Token struct {
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
}

// Kind classifies a tool-call event by its effect on dashboard state.
type Kind string

const (
	// KindDashboardCreated replaces the whole widget map
	KindDashboardCreated Kind = "dashboard_created"

	// KindWidgetAdded upserts widgets into the existing map
	KindWidgetAdded Kind = "widget_added"

	// KindManipulationIntent is an arguments-only manipulate_widget call;
	// position deltas are applied to the widget map immediately because no
	// result event is guaranteed to follow
	KindManipulationIntent Kind = "manipulation_intent"

	// KindManipulationResult is a completed manipulate_widget call; it is
	// recorded and queued, and applied to the grid via the manipulation queue
	KindManipulationResult Kind = "manipulation_result"
)

// Validate checks if the Kind is a valid enum value.
func (k Kind) Validate() error {
	switch k {
	case KindDashboardCreated, KindWidgetAdded, KindManipulationIntent, KindManipulationResult:
		return nil
	default:
		return fmt.Errorf("unknown event kind: %q", k)
	}
}

// Variant discriminates the two deliveries of one tool call.
type Variant string

const (
	VariantArguments Variant = "arguments"
	VariantResponse  Variant = "response"
)

// Event is a classified tool-call event. Exactly one of the payload
// pointers is set, matching Kind.
type Event struct {
	Kind      Kind
	MessageID int64
	ToolName  string
	Variant   Variant

	CreateDashboard *dashboard.CreateDashboardResponse
	AddWidget       *dashboard.AddWidgetResponse
	Manipulation    *dashboard.Manipulation
	Intent          *ManipulationIntent
}

// Identity returns the deduplication key for this event: message ID, tool
// name, and the arguments/response discriminator. Feeding the reducer the
// same identity twice has the same effect as feeding it once.
func (e *Event) Identity() string {
	return fmt.Sprintf("%d:%s:%s", e.MessageID, e.ToolName, e.Variant)
}

// ManipulationIntent carries the raw argument fields of an eager
// manipulate_widget call. Coordinates arrive stringly typed from the agent
// and are only interpreted when the patch is built.
type ManipulationIntent struct {
	WidgetID  string
	Operation string
	X         any
	Y         any
	W         any
	H         any
}

// PositionPatch interprets the intent's raw fields. X and Y are included
// whenever they parse to a finite number; W and H only when they are
// provided and truthy (present, parsable, and non-zero), preserving the
// widget's existing size otherwise.
func (mi *ManipulationIntent) PositionPatch() dashboard.PositionPatch {
	var patch dashboard.PositionPatch
	if x, ok := dashboard.CoerceNumber(mi.X); ok {
		patch.X = &x
	}
	if y, ok := dashboard.CoerceNumber(mi.Y); ok {
		patch.Y = &y
	}
	if w, ok := dashboard.CoerceNumber(mi.W); ok && w != 0 {
		patch.W = &w
	}
	if h, ok := dashboard.CoerceNumber(mi.H); ok && h != 0 {
		patch.H = &h
	}
	return patch
}
