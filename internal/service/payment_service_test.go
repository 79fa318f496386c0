package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentSimulatorAlwaysApproves(t *testing.T) {
	sim := NewPaymentSimulator(1)
	for i := 0; i < 20; i++ {
		res := sim.AttemptPayment(context.Background(), price("10.00"))
		assert.True(t, res.Success)
		assert.Regexp(t, `^JC\d+[0-9a-f]{8}$`, res.TransactionID)
		assert.Empty(t, res.Reason)
	}
}

func TestPaymentSimulatorAlwaysDeclines(t *testing.T) {
	sim := NewPaymentSimulator(0)
	res := sim.AttemptPayment(context.Background(), price("10.00"))
	assert.False(t, res.Success)
	assert.Empty(t, res.TransactionID)
	assert.Equal(t, "JazzCash payment could not be processed", res.Reason)
}

func TestPaymentSimulatorRateIgnoresAmount(t *testing.T) {
	for _, amount := range []string{"0.01", "12.46", "99999.99"} {
		sim := NewPaymentSimulatorWithSource(DefaultPaymentSuccessRate, rand.NewSource(7))
		ok := 0
		for i := 0; i < 10000; i++ {
			if sim.AttemptPayment(context.Background(), price(amount)).Success {
				ok++
			}
		}
		assert.InDelta(t, 0.9, float64(ok)/10000, 0.02, amount)
	}
}

func TestPaymentSimulatorConcurrentUse(t *testing.T) {
	sim := NewPaymentSimulatorWithSource(0.5, rand.NewSource(1))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sim.AttemptPayment(context.Background(), price("1.00"))
			}
		}()
	}
	wg.Wait()
}
