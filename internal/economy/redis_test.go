package economy_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/jensholdgaard/claim-market/internal/economy"
)

func newTestRedis(t *testing.T) *economy.Redis {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	url, err := ctr.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	bank, err := economy.NewRedis(ctx, url, "$", 20)
	if err != nil {
		t.Fatalf("connecting to redis: %v", err)
	}
	t.Cleanup(func() { bank.Close() })
	return bank
}

func TestRedis_WithdrawDeposit(t *testing.T) {
	bank := newTestRedis(t)
	ctx := context.Background()

	if b, err := bank.Balance(ctx, "p1"); err != nil || b != 0 {
		t.Fatalf("Balance = %d, %v; want 0", b, err)
	}
	if err := bank.Deposit(ctx, "p1", 1000); err != nil {
		t.Fatal(err)
	}
	if err := bank.Withdraw(ctx, "p1", 1500); !errors.Is(err, economy.ErrInsufficientFunds) {
		t.Fatalf("Withdraw error = %v, want ErrInsufficientFunds", err)
	}
	if err := bank.Withdraw(ctx, "p1", 400); err != nil {
		t.Fatal(err)
	}
	if b, _ := bank.Balance(ctx, "p1"); b != 600 {
		t.Errorf("balance = %d, want 600", b)
	}
}

func TestRedis_ConcurrentWithdrawNeverOverdraws(t *testing.T) {
	bank := newTestRedis(t)
	ctx := context.Background()
	if err := bank.Deposit(ctx, "p1", 1000); err != nil {
		t.Fatal(err)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bank.Withdraw(ctx, "p1", 100); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	b, _ := bank.Balance(ctx, "p1")
	if b < 0 {
		t.Fatalf("balance went negative: %d", b)
	}
	if int64(ok)*100+b != 1000 {
		t.Errorf("%d withdrawals succeeded but balance is %d", ok, b)
	}
}
