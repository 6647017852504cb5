// Package constants holds string values shared across configuration and infrastructure.
package constants

// Environments
const (
	EnvDevelop    = "develop"
	EnvProduction = "production"
)

// Pub/Sub providers
const (
	PubSubProviderLocal    = "local"
	PubSubProviderGoogle   = "google"
	PubSubProviderRabbitMQ = "rabbitmq"
)

// Event types carried on published messages
const (
	EventTypeMerchantWelcome = "merchant.welcome"
)
