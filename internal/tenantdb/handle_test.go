package tenantdb

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAcquireErrSaturationIsPoolExhausted(t *testing.T) {
	parent := context.Background()
	acqCtx, cancel := context.WithTimeout(parent, time.Nanosecond)
	defer cancel()
	<-acqCtx.Done()

	// El plazo propio venció con el request todavía vivo: pool saturado.
	err := acquireErr(acqCtx.Err(), acqCtx, parent)
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("err = %v, want ErrPoolExhausted", err)
	}
}

func TestAcquireErrRequestCancellationPassesThrough(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	cancelParent()
	acqCtx, cancel := context.WithTimeout(parent, time.Second)
	defer cancel()

	err := acquireErr(context.Canceled, acqCtx, parent)
	if errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("cancelación del cliente no debe reportarse como saturación")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
