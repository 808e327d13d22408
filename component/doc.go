// Package component defines lifecycle-managed parts of a pilgi process.
//
// A Component is started in registration order and stopped in reverse by
// a Registry. Lazy provides single-flight deferred initialization with a
// non-blocking state query; the model registry builds on it.
//
// # Interfaces
//
//   - Component: Start/Stop/Health lifecycle
//   - Describable: startup summary descriptions
//   - RouteProvider: routes reported to the startup summary
package component
