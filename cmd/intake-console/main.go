// Command intake-console runs the admin console backend of the legal intake site.
package main

import (
	"github.com/lexintake/console/internal/app"
	"github.com/lexintake/console/pkg/cli"
)

func main() {
	cli.Execute(cli.NewCommand(cli.Options{
		Name:          "intake-console",
		Description:   "Admin console backend for legal intake requests, attorneys and blog content",
		EnvPrefix:     "INTAKE",
		RunServer:     app.Serve,
		RunMigrations: app.Migrate,
	}))
}
