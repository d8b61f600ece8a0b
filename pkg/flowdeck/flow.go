package flowdeck

import "time"

// Flow is a named, saved graph owned by a user.
// An empty ID means the flow has not been saved yet.
type Flow struct {
	ID        string
	Name      string
	Graph     *Graph
	UserID    string
	UserName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary returns the listing entry for the flow.
func (f Flow) Summary() FlowSummary {
	return FlowSummary{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt}
}

// FlowSummary is one row of a user's flow list.
type FlowSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// User identifies the caller running or editing a flow.
type User struct {
	ID   string
	Name string
}

// Anonymous reports whether no user is signed in.
func (u User) Anonymous() bool {
	return u.ID == ""
}
