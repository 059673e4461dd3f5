package workerapi

import (
	"context"
	"os"
	"time"

	"k8s.io/klog/v2"
)

// triggerSelfRestart exits the process shortly after the upgrade response
// has been written, so the worker's own restart policy recreates the
// container against the image PullImage just fetched.
func triggerSelfRestart(ctx context.Context) {
	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
	}
	klog.Info("workerapi: exiting for self-upgrade restart")
	os.Exit(0)
}
