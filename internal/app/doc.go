// Package app composes the customer-facing services into a running
// application. It is a wiring layer only; behavior lives in the packages it
// assembles.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── order/          # Orders and status transitions
//	│   ├── restaurant/     # Restaurant location and delivery pricing
//	│   └── review/         # Reviews, pending prompts, coupons
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (OrderStore, ReviewStore, ...)
//	│   ├── memory/         # In-memory implementation for testing
//	│   └── supabase/       # Hosted-backend implementation for production
//	├── services/
//	│   ├── governor/       # Client-side request rate governor
//	│   ├── delivery/       # Delivery fee and time estimation
//	│   └── notify/         # Status notifications and review prompts
//	├── system/             # Service lifecycle management
//	└── metrics/            # Prometheus metrics
//
// Domain models carry no business logic; services depend on the storage
// interfaces, never on a concrete store. The Application wires concrete
// stores, the realtime change feed and a notifier into the services and
// hands their lifecycle to the system manager.
package app
