// Package audience estimates how many recipients a broadcast reaches and
// whether the channel's remaining LINE message quota covers them.
package audience

import (
	"context"
	"fmt"
	"strings"
	"time"

	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
	"github.com/garyellow/line-carousel-composer/internal/logger"
	"github.com/garyellow/line-carousel-composer/internal/metrics"
)

// Mode selects who receives a broadcast.
type Mode string

const (
	ModeAll       Mode = "all"
	ModeCondition Mode = "condition"
)

// UnknownQuota is reported when the quota cannot be determined.
const UnknownQuota int64 = -1

const (
	msgInvalidMode   = "發送對象設定不正確"
	msgEmptyInclude  = "請至少選擇一個標籤"
	msgEstimateError = "無法取得預估人數，請稍後再試"
)

// Target describes the recipients of a broadcast.
type Target struct {
	Mode    Mode     `json:"mode"`
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// Normalize trims tags and drops blanks and duplicates.
func (t Target) Normalize() Target {
	return Target{
		Mode:    Mode(strings.ToLower(strings.TrimSpace(string(t.Mode)))),
		Include: cleanTags(t.Include),
		Exclude: cleanTags(t.Exclude),
	}
}

// Validate reports a user-facing error for an unusable target.
func (t Target) Validate() error {
	w := domerrors.NewWrapper("audience", "validate")
	switch t.Mode {
	case ModeAll:
		return nil
	case ModeCondition:
		if len(t.Include) == 0 {
			return w.Wrap(domerrors.NewValidationError("include", "no tags"), msgEmptyInclude)
		}
		return nil
	default:
		return w.Wrap(domerrors.NewValidationError("mode", string(t.Mode)), msgInvalidMode)
	}
}

func cleanTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// Estimate is the outcome of an audience query.
type Estimate struct {
	Recipients     int64 `json:"recipients"`
	AvailableQuota int64 `json:"availableQuota"`
	// Sufficient is false only when the quota is known and too small.
	Sufficient bool `json:"sufficient"`
}

// Estimator computes an Estimate for a target.
type Estimator interface {
	Estimate(ctx context.Context, target Target) (Estimate, error)
}

// Counter counts reachable members.
type Counter interface {
	CountAudience(ctx context.Context, include, exclude []string) (int64, error)
}

// QuotaSource reports the remaining message quota, or UnknownQuota.
type QuotaSource interface {
	Remaining(ctx context.Context) (int64, error)
}

// Service combines the member count with the LINE quota.
type Service struct {
	counter Counter
	quota   QuotaSource
	metrics *metrics.Metrics
	log     *logger.Logger
	timeout time.Duration
}

// NewService creates an estimator. quota may be nil, in which case the quota
// is always unknown.
func NewService(counter Counter, quota QuotaSource, m *metrics.Metrics, log *logger.Logger, timeout time.Duration) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		counter: counter,
		quota:   quota,
		metrics: m,
		log:     log.WithModule("audience"),
		timeout: timeout,
	}
}

// Estimate implements Estimator.
func (s *Service) Estimate(ctx context.Context, target Target) (Estimate, error) {
	start := time.Now()
	target = target.Normalize()
	if err := target.Validate(); err != nil {
		s.metrics.RecordEstimate("invalid", time.Since(start).Seconds())
		return Estimate{}, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	include := target.Include
	exclude := target.Exclude
	if target.Mode == ModeAll {
		include, exclude = nil, nil
	}

	recipients, err := s.counter.CountAudience(ctx, include, exclude)
	if err != nil {
		s.metrics.RecordEstimate("error", time.Since(start).Seconds())
		return Estimate{}, domerrors.NewWrapper("audience", "count").Wrap(err, msgEstimateError)
	}

	available := UnknownQuota
	if s.quota != nil {
		q, err := s.quota.Remaining(ctx)
		if err != nil {
			// Quota is advisory; the count is still useful
			s.log.WithError(err).WarnContext(ctx, "Failed to fetch message quota")
		} else {
			available = q
		}
	}

	s.metrics.RecordEstimate("success", time.Since(start).Seconds())
	return Estimate{
		Recipients:     recipients,
		AvailableQuota: available,
		Sufficient:     available == UnknownQuota || recipients <= available,
	}, nil
}

// String is used in logs.
func (t Target) String() string {
	return fmt.Sprintf("%s include=%v exclude=%v", t.Mode, t.Include, t.Exclude)
}
