package storage

import (
	"context"
	"testing"
	"time"
)

func TestDriveLister_PageContextDeadline(t *testing.T) {
	lister := &DriveLister{pageTimeout: 5 * time.Second}

	pctx, cancel := lister.pageContext(context.Background())
	defer cancel()
	if _, ok := pctx.Deadline(); !ok {
		t.Error("expected a per-page deadline when a page timeout is set")
	}

	lister.pageTimeout = 0
	pctx, cancel = lister.pageContext(context.Background())
	defer cancel()
	if _, ok := pctx.Deadline(); ok {
		t.Error("expected no deadline when the page timeout is zero")
	}
}
