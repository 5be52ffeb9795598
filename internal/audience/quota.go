package audience

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// quotaAPI is the part of the Messaging API client LineQuota needs.
type quotaAPI interface {
	GetMessageQuota() (*messaging_api.MessageQuotaResponse, error)
	GetMessageQuotaConsumption() (*messaging_api.QuotaConsumptionResponse, error)
}

// LineQuota reads the monthly message quota from the LINE Messaging API.
type LineQuota struct {
	api quotaAPI
}

// NewLineQuota creates a quota source for channelToken.
// It returns nil when no token is configured.
func NewLineQuota(channelToken string) (*LineQuota, error) {
	if channelToken == "" {
		return nil, nil
	}
	client, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}
	return &LineQuota{api: client}, nil
}

// Remaining implements QuotaSource. Channels without a monthly limit report
// UnknownQuota.
func (q *LineQuota) Remaining(ctx context.Context) (int64, error) {
	if q == nil || q.api == nil {
		return UnknownQuota, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	quota, err := q.api.GetMessageQuota()
	if err != nil {
		return 0, fmt.Errorf("get message quota: %w", err)
	}
	if quota.Type != messaging_api.QuotaType_LIMITED {
		return UnknownQuota, nil
	}

	usage, err := q.api.GetMessageQuotaConsumption()
	if err != nil {
		return 0, fmt.Errorf("get quota consumption: %w", err)
	}

	return max(quota.Value-usage.TotalUsage, 0), nil
}
