package api

// Status is a snapshot of the player as reported to clients.
type Status struct {
	State       string  `json:"state"`
	Stream      string  `json:"stream"`
	Track       *Track  `json:"track,omitempty"`
	NextURI     string  `json:"next_uri,omitempty"`
	Index       int     `json:"index"`
	QueueLength int     `json:"queue_length"`
	Position    float64 `json:"position"`
	Duration    float64 `json:"duration"`
	Volume      float64 `json:"volume"`
	Muted       bool    `json:"muted"`
	Repeat      string  `json:"repeat"`
	Shuffle     bool    `json:"shuffle"`
}
