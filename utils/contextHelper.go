package utils

import (
	"context"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/appctx"
)

var (
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyWebhookTopic  = appctx.ContextKeyWebhookTopic
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetWebhookTopicFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyWebhookTopic)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetWebhookTopicInContext(ctx context.Context, topic string) context.Context {
	return appctx.Set(ctx, ContextKeyWebhookTopic, topic)
}
