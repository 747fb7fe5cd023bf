package domain

import "time"

// PostRecord is a generated post draft keyed by the originating task id.
type PostRecord struct {
	ID        string     `json:"id"`
	Platform  string     `json:"platform"`
	Model     string     `json:"model"`
	Prompt    string     `json:"prompt"`
	Overview  string     `json:"overview"`
	Post      string     `json:"post"`
	CreatedAt time.Time  `json:"created_at"`
	Viewed    *time.Time `json:"viewed,omitempty"`
}

// Template is a named rendering style.
type Template struct {
	Name     string
	Platform string
	System   string
	Prompt   string
}

const (
	ListPlaceholder    = "<list>"
	ElementPlaceholder = "<element>"
)
