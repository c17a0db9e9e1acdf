package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHealthCheck_RecentWriteFailure(t *testing.T) {
	c := &Client{connected: true, failureWindow: 20 * time.Second}

	var seen []error
	c.SetOnError(func(err error) { seen = append(seen, err) })

	batchErr := errors.New("401 unauthorized")
	c.recordFailure(batchErr, time.Now())

	err := c.HealthCheck(context.Background())
	if !errors.Is(err, ErrWriteFailed) || !errors.Is(err, batchErr) {
		t.Errorf("HealthCheck() error = %v, want ErrWriteFailed wrapping the batch error", err)
	}
	if c.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", c.Failures())
	}
	if len(seen) != 1 || seen[0] != batchErr {
		t.Errorf("callback saw %v", seen)
	}
}

func TestWatchFailures_CountsEveryBatch(t *testing.T) {
	c := &Client{connected: true, failureWindow: time.Minute}

	errs := make(chan error, 3)
	errs <- errors.New("a")
	errs <- errors.New("b")
	errs <- errors.New("c")
	close(errs)
	c.watchFailures(errs)

	if c.Failures() != 3 {
		t.Errorf("Failures() = %d, want 3", c.Failures())
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("HealthCheck() error = %v, want ErrWriteFailed", err)
	}
}

func TestHealthCheck_ClosedClient(t *testing.T) {
	c := &Client{failureWindow: time.Minute}
	c.recordFailure(errors.New("old"), time.Now())

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}
