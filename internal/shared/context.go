package shared

import "context"

type accountContextKey struct{}

// ContextWithAccount stores the authenticated account in context.
func ContextWithAccount(ctx context.Context, account Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, account)
}

// AccountFromContext extracts the authenticated account from context.
// The zero account means the request was not authenticated.
func AccountFromContext(ctx context.Context) Account {
	acct, _ := ctx.Value(accountContextKey{}).(Account)
	return acct
}
