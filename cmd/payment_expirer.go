package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"modpackBack/internal/explore"
)

const paymentExpirerTimeout = 1 * time.Minute

// startPaymentExpirer periodically fails pending payments the gateway never
// confirmed.
func startPaymentExpirer(ctx context.Context, deps *explore.ExploreDeps, logger *logrus.Logger) {
	if deps == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(deps.ExpiryTick())
		defer ticker.Stop()

		runOnce := func() {
			runCtx, cancel := context.WithTimeout(ctx, paymentExpirerTimeout)
			expired, err := explore.ExpireStalePayments(runCtx, deps)
			cancel()
			if err != nil {
				logger.Errorf("payment expirer: %v", err)
			} else if expired > 0 {
				logger.Infof("payment expirer: expired %d stale payments", expired)
			}
		}

		runOnce()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce()
			}
		}
	}()
}
