package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"grocery-mart/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultPaymentSuccessRate matches the JazzCash mock
const DefaultPaymentSuccessRate = 0.9

// PaymentResult is the outcome of a single payment attempt
type PaymentResult struct {
	Success       bool
	TransactionID string
	Reason        string
}

// PaymentGateway charges an online payment method
type PaymentGateway interface {
	AttemptPayment(ctx context.Context, amount decimal.Decimal) PaymentResult
}

// PaymentSimulator approves a fixed share of attempts at random, whatever the amount
type PaymentSimulator struct {
	logger      *zap.Logger
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPaymentSimulator creates a simulator seeded from the clock
func NewPaymentSimulator(successRate float64) *PaymentSimulator {
	return NewPaymentSimulatorWithSource(successRate, rand.NewSource(time.Now().UnixNano()))
}

// NewPaymentSimulatorWithSource creates a simulator drawing from src
func NewPaymentSimulatorWithSource(successRate float64, src rand.Source) *PaymentSimulator {
	return &PaymentSimulator{
		logger:      util.GetLogger(),
		successRate: successRate,
		rng:         rand.New(src),
	}
}

// AttemptPayment makes one attempt. A failure is final; nothing retries.
func (ps *PaymentSimulator) AttemptPayment(ctx context.Context, amount decimal.Decimal) PaymentResult {
	_, span := util.StartSpan(ctx, "PaymentSimulator.AttemptPayment",
		attribute.String("amount", amount.StringFixed(2)))
	defer span.End()

	util.PaymentAttemptsTotal.Inc()

	ps.mu.Lock()
	roll := ps.rng.Float64()
	ps.mu.Unlock()

	if roll < ps.successRate {
		txID := fmt.Sprintf("JC%d%s", time.Now().UnixMilli(), uuid.New().String()[:8])
		util.PaymentSuccessTotal.Inc()
		ps.logger.Info("Payment succeeded",
			zap.String("amount", amount.StringFixed(2)),
			zap.String("tx_id", txID))
		return PaymentResult{Success: true, TransactionID: txID}
	}

	util.PaymentFailedTotal.Inc()
	ps.logger.Warn("Payment failed", zap.String("amount", amount.StringFixed(2)))
	return PaymentResult{Success: false, Reason: "JazzCash payment could not be processed"}
}
