package constants

import "time"

const AppName = "roulette"

// Network defaults
const (
	DefaultPort      = "8080"
	WSBufferSize     = 4096
	MaxWSMessageSize = 64 * 1024 // enough for WebRTC SDP payloads
	WriteWait        = 10 * time.Second
	PongWait         = 60 * time.Second
	PingPeriod       = (PongWait * 9) / 10
	SendQueueSize    = 64
	ShutdownTimeout  = 5 * time.Second
	StoreOpTimeout   = 5 * time.Second
)

// Connection limits
const (
	MaxConnectionsPerIP   = 10
	MaxAuditLogsPerMinute = 1000
)

// API endpoints
const (
	EndpointWebSocket  = "/ws"
	EndpointICEServers = "/api/ice-servers"
	EndpointStats      = "/api/stats"
)

// Redis keys
const (
	RedisQueueKey = "roulette:waiting"
	RedisAttrsKey = "roulette:waiting:attrs"
)

// Environment variables
const (
	EnvPort           = "PORT"
	EnvRedisHost      = "REDIS_HOST"
	EnvRedisPort      = "REDIS_PORT"
	EnvRedisUser      = "REDIS_USERNAME"
	EnvRedisPassword  = "REDIS_PASSWORD"
	EnvICEServersJSON = "ROULETTE_ICE_SERVERS_JSON"
	EnvStunURLs       = "ROULETTE_STUN_URLS"
	EnvTurnURLs       = "ROULETTE_TURN_URLS"
	EnvTurnUsername   = "ROULETTE_TURN_USERNAME"
	EnvTurnCredential = "ROULETTE_TURN_CREDENTIAL"
	EnvTrustedProxies = "ROULETTE_TRUSTED_PROXIES"
)

// Matching limits
const (
	MaxInterests      = 10
	MaxInterestLength = 32
	MaxCountryLength  = 8
)

// Messages
const (
	MsgAlreadyQueued    = "already waiting or paired"
	MsgStoreUnavailable = "matchmaking temporarily unavailable, retry"
	MsgUnknownEvent     = "unknown event type"
	MsgInvalidEvent     = "invalid event"
)
