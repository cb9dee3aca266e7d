package configwatcher

import "time"

// TopicConfigChanged is published on the application bus for every
// debounced change to a watched path.
const TopicConfigChanged = "config.changed"

// ChangeEvent is the payload of TopicConfigChanged.
type ChangeEvent struct {
	Module string    `json:"module"`
	Path   string    `json:"path"`
	Op     string    `json:"op"`
	Time   time.Time `json:"time"`
}
