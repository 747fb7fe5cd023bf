package gtasks

// Task mirrors a Google Tasks task resource as stored in the backup file.
type Task struct {
	Kind        string  `json:"kind,omitempty"`
	ID          string  `json:"id"`
	Etag        string  `json:"etag,omitempty"`
	Title       string  `json:"title"`
	Updated     string  `json:"updated"`
	Created     string  `json:"created,omitempty"`
	SelfLink    string  `json:"selfLink,omitempty"`
	Position    string  `json:"position,omitempty"`
	Parent      *string `json:"parent,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Status      string  `json:"status"`
	Due         *string `json:"due,omitempty"`
	Completed   *string `json:"completed,omitempty"`
	Deleted     bool    `json:"deleted,omitempty"`
	Hidden      bool    `json:"hidden,omitempty"`
	WebViewLink string  `json:"webViewLink,omitempty"`
}

// Category is one task list with its tasks.
type Category struct {
	Name  string
	Tasks []Task
}

// Backup is the downloaded task lists in list order. It encodes as a JSON
// object keyed by list title.
type Backup []Category
