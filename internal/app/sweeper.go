package app

import (
	"context"
	"log"
	"time"

	"github.com/suba/wallet-service/pkg/rabbitmq"
)

// SweepStaleValidations flags pending payment validations older than maxAge
// so the admin dashboard can surface a backlog. It returns the number of
// stale validations found. Wired to a cron schedule at startup.
func (s *Service) SweepStaleValidations(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	cutoff := s.now().UTC().Add(-maxAge)
	stale, err := s.repo.ListStalePendingValidations(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	for _, v := range stale {
		log.Printf("level=warn component=sweeper msg=\"stale pending validation\" validation_id=%s kind=%s amount=%d age=%s",
			v.ID, v.Kind, v.Amount, s.now().UTC().Sub(v.CreatedAt).Round(time.Minute))
		s.publishValidationEvent(ctx, rabbitmq.RouteReviewStale, &v)
	}
	return len(stale), nil
}
