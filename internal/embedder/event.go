// Package embedder carries constellation events to the embedding application.
package embedder

import "time"

// EventType names an embedder event
type EventType string

const (
	TopLevelCreated EventType = "top_level_created"
	// TopLevelFailed means a requested tab could not be created; its id is unused
	TopLevelFailed EventType = "top_level_failed"
	LoadStarted     EventType = "load_started"
	LoadComplete    EventType = "load_complete"
	HistoryChanged  EventType = "history_changed"
	PipelineCrashed EventType = "pipeline_crashed"
	HangDetected    EventType = "hang_detected"
	TopLevelClosed  EventType = "top_level_closed"
	Shutdown        EventType = "shutdown"
)

// Event is one notification for the embedder. Ids are rendered as strings.
type Event struct {
	Type            EventType `json:"type"`
	TopLevel        string    `json:"top_level,omitempty"`
	BrowsingContext string    `json:"browsing_context,omitempty"`
	Pipeline        string    `json:"pipeline,omitempty"`
	URL             string    `json:"url,omitempty"`
	Title           string    `json:"title,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	LoadID          string    `json:"load_id,omitempty"`
	CanGoBack       bool      `json:"can_go_back,omitempty"`
	CanGoForward    bool      `json:"can_go_forward,omitempty"`
	HungFor         string    `json:"hung_for,omitempty"`
	Time            time.Time `json:"time"`
}
