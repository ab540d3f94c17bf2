package health

import (
	"context"
	"errors"
	"testing"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestChecker_Run(t *testing.T) {
	c := NewChecker()
	if _, ok := c.Run(context.Background()); !ok {
		t.Error("empty checker should be ready")
	}
	c.Add("postgres", PingCheck(pingerFunc(func(context.Context) error { return nil })))
	c.Add("gateway", func(context.Context) error { return errors.New("connection refused") })

	results, ok := c.Run(context.Background())
	if ok {
		t.Error("checker with a failing check should not be ready")
	}
	if len(results) != 2 || results[0].Name != "gateway" || results[1].Name != "postgres" {
		t.Fatalf("results = %+v, want sorted by name", results)
	}
	if results[0].Error != "connection refused" || results[1].Error != "" {
		t.Errorf("results = %+v", results)
	}
}

func TestChecker_CheckGetsDeadline(t *testing.T) {
	c := NewChecker()
	c.Add("slow", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	})
	if results, ok := c.Run(context.Background()); !ok {
		t.Errorf("results = %+v", results)
	}
}
