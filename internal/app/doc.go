// Package app composes the Fortivo services into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Stores, options, wiring and lifecycle
//	├── domain/             # Data models (account, asset, document, chat, ...)
//	├── storage/            # Store interfaces
//	│   ├── memory/         # In-memory implementation for tests and local runs
//	│   └── postgres/       # PostgreSQL implementation via sqlx
//	├── services/           # Business logic, one package per resource
//	├── httpapi/            # gorilla/mux routes, websocket chat and audit trail
//	├── scheduler/          # Cron jobs (subscription sweep, exchange rates)
//	├── system/             # Service lifecycle manager
//	├── runtime/            # Production wiring from configuration
//	└── metrics/            # Prometheus collectors
//
// Business rules live in services/. This package only builds the services
// over a shared set of stores and hands them to the HTTP layer.
package app
