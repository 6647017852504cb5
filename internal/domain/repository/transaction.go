package repository

import "context"

// TransactionManager runs onboarding writes atomically. Provisioning a merchant with
// its first setup token, consuming a token while setting the password, and a document
// review together with the merchant status it implies each go through one call.
type TransactionManager interface {
	// Execute commits when fn returns nil and rolls back otherwise.
	Execute(ctx context.Context, fn func(repos TxRepositories) error) error
}

// TxRepositories exposes the repositories bound to the running transaction.
type TxRepositories interface {
	Merchants() MerchantRepository
	SetupTokens() SetupTokenRepository
	Documents() DocumentRepository
}
