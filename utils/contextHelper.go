package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/storeadmin_backend/appctx"
)

var (
	ContextKeyTenant        = appctx.ContextKeyTenant
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetTenantFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyTenant)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTenantInContext(ctx context.Context, tenant string) context.Context {
	return appctx.Set(ctx, ContextKeyTenant, tenant)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
