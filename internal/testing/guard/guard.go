// Package guard switches binaries into test mode when imported by a test, so
// running main() returns before dialling Postgres or Redis.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("JURNAL_TEST_MODE") == "" {
			_ = os.Setenv("JURNAL_TEST_MODE", "1")
		}
	})
}
