// vectorsync keeps a vector index in step with a git superproject and its
// submodules.
//
//	vectorsync --from-commit HEAD~1
//	vectorsync --files M:docs/guide.md D:docs/old.md
//	vectorsync --retry-errors
//	vectorsync --reindex-all
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
