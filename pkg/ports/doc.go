// Package ports defines the interfaces the application layer consumes.
//
// Adapters under pkg/adapters implement them:
//   - EventBus: status event stream transport
//   - EntryStore: persisted launch entries and last-run status
//   - MetricsCollector: run, stage and worker metrics
//   - ProcessTable, WindowTitleSource, URIDispatcher, AttributeSetter,
//     SystemInfo: the operating system seen by the engine
package ports
