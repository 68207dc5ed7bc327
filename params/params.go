package params

import "time"

const (
	ServerBodyLimit             = 1048576 // 1 MiB
	ServerIdleTimeout           = 30 * time.Second
	ServerReadTimeout           = 10 * time.Second
	ServerWriteTimeout          = 10 * time.Second
	TokenKeyPrefix              = "token:"
	RateLimitKeyPrefix          = "rl:"
	APIRateLimitKeyPrefix       = RateLimitKeyPrefix + "api:"
	AuthRateLimitKeyPrefix      = RateLimitKeyPrefix + "auth:"
	StoreTimeout                = 2 * time.Second    // upper bound of a single cache or audit log call
	DefaultAccessTokenLifetime  = 7 * 24 * time.Hour // long-lived sessions, revocation goes through the token store
	DefaultRefreshTokenLifetime = 30 * 24 * time.Hour
	APIRateLimitWindow          = 15 * time.Minute
	APIRateLimitMax             = 100
	AuthRateLimitWindow         = 15 * time.Minute // stricter window for federated login endpoints
	AuthRateLimitMax            = 10
	GoogleCertsMaxAge           = 1 * time.Hour   // cached google signing keys are refetched after this
	GoogleCertsRefreshInterval  = 1 * time.Minute // minimum interval between forced refetches on unknown key ids
	GoogleCertsRateLimitWaitMax = 2 * time.Second // bounds the wait for a refetch slot and the refetch itself
	OAuthStateExpiration        = 10 * time.Minute
	OAuthStateKeyPrefix         = "oauth_state:"
	OAuthStateLength            = 32
	UserNameMinLength           = 2
	UserNameMaxLength           = 255
	HealthCheckServerAddr       = ":3001" // health check server address
	MemoryCacheGCInterval       = 10 * time.Second
)
