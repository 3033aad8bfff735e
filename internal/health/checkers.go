package health

import (
	"context"
	"fmt"
)

// Availability is the readiness surface shared by the oracle backends (LLM,
// machine translation, language identification).
type Availability interface {
	Available(ctx context.Context) bool
}

// ProviderChecker builds a [Checker] that fails while the named backend
// reports itself unavailable.
func ProviderChecker(name string, p Availability) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			if p == nil {
				return fmt.Errorf("%s backend not configured", name)
			}
			if !p.Available(ctx) {
				return fmt.Errorf("%s backend unavailable", name)
			}
			return nil
		},
	}
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker builds a [Checker] that probes the vocabulary database.
func DatabaseChecker(db Pinger) Checker {
	return Checker{
		Name: "database",
		Check: func(ctx context.Context) error {
			if db == nil {
				return fmt.Errorf("database not configured")
			}
			return db.Ping(ctx)
		},
	}
}
