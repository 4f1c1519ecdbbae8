// Package guard switches the console into test mode when imported for side
// effects, so LoadConfig skips .env files and mains skip startup.
package guard

import "os"

func init() {
	if os.Getenv("CONSOLE_TEST_MODE") == "" {
		_ = os.Setenv("CONSOLE_TEST_MODE", "1")
	}
}
