package http

import (
	"github.com/GriffinCanCode/AgentOS/constellation/internal/constellation"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
)

// CreateBrowserRequest opens a tab. An empty URL opens the home page.
type CreateBrowserRequest struct {
	URL string `json:"url"`
}

// LoadRequest navigates a tab's root browsing context
type LoadRequest struct {
	URL     string `json:"url" binding:"required"`
	Replace bool   `json:"replace"`
}

// TraverseRequest moves through a tab's joint session history
type TraverseRequest struct {
	Steps int `json:"steps" binding:"omitempty,min=1,max=100"`
}

// EntryView is one session history entry
type EntryView struct {
	Pipeline  string `json:"pipeline,omitempty"`
	URL       string `json:"url"`
	Discarded bool   `json:"discarded,omitempty"`
}

// ContextView is the history of one browsing context
type ContextView struct {
	ID         string      `json:"id"`
	Parent     string      `json:"parent,omitempty"`
	Current    EntryView   `json:"current"`
	Prev       []EntryView `json:"prev"`
	Next       []EntryView `json:"next"`
	Generation uint64      `json:"generation"`
}

// HistoryView is a tab's session history
type HistoryView struct {
	ID           string        `json:"id"`
	CanGoBack    bool          `json:"can_go_back"`
	CanGoForward bool          `json:"can_go_forward"`
	Contexts     []ContextView `json:"contexts"`
}

func newHistoryView(result constellation.HistoryResult) HistoryView {
	view := HistoryView{
		ID:           result.TopLevel.String(),
		CanGoBack:    result.CanGoBack,
		CanGoForward: result.CanGoForward,
		Contexts:     make([]ContextView, 0, len(result.Contexts)),
	}
	for _, s := range result.Contexts {
		cv := ContextView{
			ID:         s.ID.String(),
			Current:    newEntryView(s.Current),
			Prev:       newEntryViews(s.Prev),
			Next:       newEntryViews(s.Next),
			Generation: uint64(s.Generation),
		}
		if s.Parent != nil {
			cv.Parent = s.Parent.String()
		}
		view.Contexts = append(view.Contexts, cv)
	}
	return view
}

func newEntryView(e history.Entry) EntryView {
	if e.Pipeline.IsZero() {
		return EntryView{URL: e.URL, Discarded: true}
	}
	return EntryView{Pipeline: e.Pipeline.String(), URL: e.URL}
}

func newEntryViews(entries []history.Entry) []EntryView {
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newEntryView(e))
	}
	return views
}
