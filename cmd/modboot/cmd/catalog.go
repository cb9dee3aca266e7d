package cmd

import (
	"github.com/GoCodeAlone/modboot"
	"github.com/GoCodeAlone/modboot/metrics"
	"github.com/GoCodeAlone/modboot/modules/cache"
	"github.com/GoCodeAlone/modboot/modules/configwatcher"
	"github.com/GoCodeAlone/modboot/modules/httpserver"
	"github.com/GoCodeAlone/modboot/modules/scheduler"
)

// DefaultCatalog returns the catalog of the modules built into modboot.
func DefaultCatalog() *modboot.Catalog {
	catalog := modboot.NewCatalog()
	catalog.MustRegister("./modules/httpserver", func() modboot.Component { return httpserver.NewModule() })
	catalog.MustRegister("./modules/scheduler", func() modboot.Component { return scheduler.NewModule() })
	catalog.MustRegister("./modules/configwatcher", func() modboot.Component { return configwatcher.NewModule() })
	catalog.MustRegister("./modules/cache", func() modboot.Component { return cache.NewModule() })
	catalog.MustRegister("./modules/metrics", func() modboot.Component { return metrics.NewModule() })
	return catalog
}
