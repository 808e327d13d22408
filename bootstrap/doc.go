// Package bootstrap runs a pilgi process through its lifecycle.
//
// An App validates the typed configuration and initializes the logger. It
// starts the registered components in order and prints a startup summary.
// On exit it runs the stop hooks, then stops components in reverse order
// within the configured stop_timeout.
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	_ = app.RegisterComponent(storageComponent)
//	_ = app.RegisterComponent(modelRegistry)
//	_ = app.RegisterComponent(httpServer)
//	return app.Run(ctx)
//
// Run blocks until SIGINT, SIGTERM or context cancellation and suits the
// HTTP service. RunTask runs a finite function with the same lifecycle and
// suits the one-shot CLI commands.
package bootstrap
