// Package guard switches binaries into test mode when imported by a test,
// so calling main never opens stores or binds the bridge port.
package guard

import (
	"os"

	"github.com/famledger/famledger/internal/app"
)

func init() {
	if os.Getenv(app.TestModeEnv) == "" {
		_ = os.Setenv(app.TestModeEnv, "1")
	}
	app.RefreshTestMode()
}
