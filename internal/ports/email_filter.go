package ports

import (
	"context"

	"github.com/coastguard/svm-spam-filter/internal/core"
)

// EmailFilter defines the interface for email filtering
type EmailFilter interface {
	// ProcessEmail classifies an email and returns the verdict
	ProcessEmail(ctx context.Context, email *core.Email) (*core.EmailVerdict, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}

// Server is a long-running listener started and stopped by the daemon
type Server interface {
	Start() error
	Stop() error
}

// Stopper is implemented by resources with background tasks, such as history stores
type Stopper interface {
	Stop()
}
