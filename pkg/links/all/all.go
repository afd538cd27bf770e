// Package all is a convenience wrapper that registers all known link implementations.
// Importing this package lets goblink.NewLinkForDevice build a link of any kind.
package all

// Import each implementation package for its side-effects (the init() function).
import (
	_ "github.com/mlsorensen/goblink/pkg/links/ble"
	_ "github.com/mlsorensen/goblink/pkg/links/mock"
	_ "github.com/mlsorensen/goblink/pkg/links/serial"
)
