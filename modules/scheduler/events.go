package scheduler

import "time"

// TopicJobFired is published on the application bus each time a declared
// job fires.
const TopicJobFired = "scheduler.job"

// JobFiredEvent is the payload of TopicJobFired.
type JobFiredEvent struct {
	Job  string    `json:"job"`
	Time time.Time `json:"time"`
}
