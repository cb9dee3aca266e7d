package modboot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStarterVariants(t *testing.T) {
	syncStarter := SyncStart(func(*Application, *Descriptor) error { return nil })
	asyncStarter := AsyncStart(func(*Application, *Descriptor, func(error)) {})

	assert.False(t, syncStarter.IsAsync())
	assert.False(t, syncStarter.IsZero())
	assert.True(t, asyncStarter.IsAsync())
	assert.False(t, asyncStarter.IsZero())
	assert.True(t, Starter{}.IsZero())
}

func TestSplitDependencies(t *testing.T) {
	assert.Equal(t, []string{"db", "cache", "queue"}, SplitDependencies([]string{"db cache", "", "  queue "}))
	assert.Nil(t, SplitDependencies(nil))
}

func TestOptionalDependencyProperties(t *testing.T) {
	dep := Optional("httpServer  router")
	assert.Equal(t, []string{"httpServer", "router"}, dep.Properties())
	assert.Empty(t, dep.Wire)
}

func TestCapabilitiesOf(t *testing.T) {
	plain := &plainComponent{starter: SyncStart(func(*Application, *Descriptor) error { return nil })}
	assert.Equal(t, Capabilities{}, CapabilitiesOf(plain))

	full := &observingComponent{testComponent: testComponent{
		starter: AsyncStart(func(*Application, *Descriptor, func(error)) {}),
	}}
	assert.Equal(t, Capabilities{
		Defaults:      true,
		SetUp:         true,
		OnModuleSetUp: true,
		AsyncStart:    true,
		Required:      true,
		Optional:      true,
	}, CapabilitiesOf(full))
}
