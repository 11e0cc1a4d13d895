// pkg/config/ai.go
package config

import "time"

type AIConfig struct {
	OpenAIAPIKey string

	// ChatModel is the completion model a conversation is pinned to.
	// It is part of the conversation key, so changing it starts fresh
	// history partitions for every user.
	ChatModel       string
	MaxTokens       int
	Temperature     float64
	EmbeddingModel  string
	HistoryWindow   int
	RetrievalTopK   int
	SeedDelimiter   string
	VectorIndexPath string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

func loadAIConfig() AIConfig {
	return AIConfig{
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		ChatModel:       getEnv("CHAT_MODEL", "gpt-4o-mini"),
		MaxTokens:       getEnvInt("CHAT_MAX_TOKENS", 2048),
		Temperature:     getEnvFloat("CHAT_TEMPERATURE", 0.75),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		HistoryWindow:   getEnvInt("CHAT_HISTORY_WINDOW", 30),
		RetrievalTopK:   getEnvInt("RETRIEVAL_TOP_K", 3),
		SeedDelimiter:   getEnv("SEED_DELIMITER", "\n\n"),
		VectorIndexPath: getEnv("VECTOR_INDEX_PATH", "./data/vectors"),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Requests: getEnvInt("RATE_LIMIT_REQUESTS", 1),
		Window:   getEnvDuration("RATE_LIMIT_WINDOW", 10*time.Second),
	}
}
