package datastore

import (
	"context"
	"errors"
	"time"

	"github.com/redbco/redb-esadapter/pkg/health"
)

// DefaultHealthTimeout bounds a single datastore ping.
const DefaultHealthTimeout = 5 * time.Second

func healthCheckName(identity string) string {
	return "datastore:" + identity
}

// HealthChecker returns the checker health results are recorded in.
func (r *Registry) HealthChecker() *health.Checker {
	return r.health
}

// CheckHealth pings the datastore's engine and records the result.
func (r *Registry) CheckHealth(ctx context.Context, identity string) (*health.Check, error) {
	h, err := r.Handle(identity)
	if err != nil {
		return nil, err
	}

	check := r.health.RunCheck(ctx, healthCheckName(identity), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
			defer cancel()
		}
		return h.session.Ping(ctx)
	})

	if _, err := r.Handle(identity); err != nil {
		// torn down while the ping was in flight
		r.health.Remove(healthCheckName(identity))
	}

	var checkErr error
	if check.Status != health.StatusHealthy {
		checkErr = errors.New(check.Message)
	}
	r.logger.LogHealthCheck(h.logContext(), checkErr)

	return check, nil
}

// CheckAll pings every registered datastore.
func (r *Registry) CheckAll(ctx context.Context) []*health.Check {
	ids := r.Identities()
	checks := make([]*health.Check, 0, len(ids))
	for _, id := range ids {
		check, err := r.CheckHealth(ctx, id)
		if err != nil {
			// torn down in the meantime
			continue
		}
		checks = append(checks, check)
	}
	return checks
}
