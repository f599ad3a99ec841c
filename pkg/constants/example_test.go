package constants_test

import (
	"context"
	"fmt"
	"net/http"

	"github.com/driftwatch/driftwatch/pkg/constants"
)

// Example_timeouts demonstrates timeout constants
func Example_timeouts() {
	// HTTP client with default timeout
	client := &http.Client{
		Timeout: constants.DefaultHTTPTimeout,
	}
	fmt.Printf("HTTP timeout: %v\n", client.Timeout)

	// Context bounding one reconciliation cycle
	ctx, cancel := context.WithTimeout(
		context.Background(),
		constants.CycleTimeout,
	)
	defer cancel()
	_ = ctx

	fmt.Printf("Cycle timeout: %v\n", constants.CycleTimeout)
	// Output:
	// HTTP timeout: 30s
	// Cycle timeout: 5m0s
}

// Example_reconciliation demonstrates the pipeline default knobs
func Example_reconciliation() {
	fmt.Printf("Check interval: %v\n", constants.DefaultCheckInterval)
	fmt.Printf("Undercut: %.0f%%\n", constants.DefaultUndercutFraction*100)
	fmt.Printf("Suppression window: %v\n", constants.DefaultSuppressionWindow)
	// Output:
	// Check interval: 5m0s
	// Undercut: 1%
	// Suppression window: 24h0m0s
}

// Example_permissions demonstrates file permission constants
func Example_permissions() {
	fmt.Printf("Dir permissions: %o\n", constants.DirPermissions)
	fmt.Printf("File permissions: %o\n", constants.FilePermissions)
	fmt.Printf("Secure file permissions: %o\n", constants.SecureFilePermissions)
	// Output:
	// Dir permissions: 755
	// File permissions: 644
	// Secure file permissions: 600
}
