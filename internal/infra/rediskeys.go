package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных адаптера в Redis
	RedisNamespace = "donewell"
)

// Каналы Pub/Sub (события для alerting-пайплайна)
const (
	RedisChanDeployEvents   = RedisNamespace + ":events:deploy"
	RedisChanIncidentEvents = RedisNamespace + ":events:incident"
)
