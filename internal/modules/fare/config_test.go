package fare_test

import (
	"context"
	"testing"
	"time"

	"carryhub/internal/modules/fare"
	"carryhub/internal/store/memory"
)

func TestConfigInsideTransactionDoesNotWaitOnSharedRead(t *testing.T) {
	st := memory.New()
	st.SeedFare()
	svc := fare.NewService(st.Fares())
	ctx := context.Background()

	inTx := make(chan struct{})
	outsideStarted := make(chan struct{})
	done := make(chan error, 2)

	go func() {
		done <- st.RunInTx(ctx, func(ctx context.Context) error {
			close(inTx)
			<-outsideStarted
			// the outside read is now blocked on the store held by this transaction
			time.Sleep(20 * time.Millisecond)
			_, err := svc.Config(ctx)
			return err
		})
	}()
	go func() {
		<-inTx
		close(outsideStarted)
		_, err := svc.Config(ctx)
		done <- err
	}()

	timeout := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("config: %v", err)
			}
		case <-timeout:
			t.Fatal("config read inside a transaction blocked behind a concurrent read")
		}
	}
}
