package service

import (
	"time"

	"github.com/okian/xsteal/internal/domain/estimator"
	"github.com/okian/xsteal/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHistoryCapacity sets the attempt window of new sessions.
func WithHistoryCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyCapacity = n
		}
	}
}

// WithMaxSessions caps live sessions; 0 means unlimited.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxSessions = n
		}
	}
}

// WithDedupeSize sets how many attempt IDs are remembered; 0 means unbounded.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.dedupeSize = n
		}
	}
}

// WithSessionGaugeInterval sets how often the live-sessions gauge is
// refreshed.
func WithSessionGaugeInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionGaugeInterval = d
		}
	}
}

// WithDefaultVariant sets the variant used when a request names none.
func WithDefaultVariant(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.defaultVariant = name
		}
	}
}

// WithVariants registers variants beyond the built-in ones.
func WithVariants(vs ...estimator.Variant) Option {
	return func(s *Service) {
		s.extraVariants = append(s.extraVariants, vs...)
	}
}

// WithClock replaces the time source used to stamp attempts.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
