// Package lifecycle defines the module lifecycle states and the event topics
// published while an application bootstraps its modules.
//
// Topic names and payload shapes are a stability contract for module authors:
// modules subscribe to them through the application's event bus.
package lifecycle

import (
	"encoding/json"
	"time"
)

// Topics published by the bootstrap sequence.
const (
	// TopicModuleSettingUp is published before a module's SetUp runs.
	// Payload: ModuleEvent.
	TopicModuleSettingUp = "module.settingUp"

	// TopicModuleSetUp is published after a module's SetUp finished.
	// Payload: ModuleEvent.
	TopicModuleSetUp = "module.setUp"

	// TopicModuleStarting is published right before dependencies are resolved
	// and the module's start function is invoked. Payload: ModuleEvent.
	TopicModuleStarting = "module.starting"

	// TopicModuleStarted is published once a module reached the Started state.
	// Payload: the module name as a plain string.
	TopicModuleStarted = "module.started"

	// TopicModuleFailed is published once a module reached the Failed state.
	// Payload: ModuleFailedEvent.
	TopicModuleFailed = "module.failed"

	// TopicAppStarted is published after every module started.
	// Payload: AppStartedEvent.
	TopicAppStarted = "app.started"

	// TopicModuleAll matches every module.* topic.
	TopicModuleAll = "module.*"
)

// ModuleEvent is the payload of the per-module setup and starting topics.
type ModuleEvent struct {
	Module string `json:"module"`
}

// ModuleFailedEvent is the payload of TopicModuleFailed.
type ModuleFailedEvent struct {
	Module string `json:"module"`
	Error  string `json:"error"`
}

// AppStartedEvent is the payload of TopicAppStarted. Time is encoded in JSON
// as whole milliseconds.
type AppStartedEvent struct {
	ID   string        `json:"id"`
	Env  string        `json:"env"`
	Time time.Duration `json:"time"`
}

type appStartedJSON struct {
	ID   string `json:"id"`
	Env  string `json:"env"`
	Time int64  `json:"time"`
}

func (e AppStartedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(appStartedJSON{ID: e.ID, Env: e.Env, Time: e.Time.Milliseconds()})
}

func (e *AppStartedEvent) UnmarshalJSON(data []byte) error {
	var raw appStartedJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = AppStartedEvent{ID: raw.ID, Env: raw.Env, Time: time.Duration(raw.Time) * time.Millisecond}
	return nil
}

// Topics lists every concrete topic published by the bootstrap, in the order
// they first occur during a run.
func Topics() []string {
	return []string{
		TopicModuleSettingUp,
		TopicModuleSetUp,
		TopicModuleStarting,
		TopicModuleStarted,
		TopicModuleFailed,
		TopicAppStarted,
	}
}
