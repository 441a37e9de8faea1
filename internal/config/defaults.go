package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/seisan/data/db/invoices.db"
	}
	if cfg.Storage.VectorStore == "" {
		cfg.Storage.VectorStore = "memory"
	}
	if cfg.Storage.Collection == "" {
		cfg.Storage.Collection = "invoices"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/seisan/data/indices/invoices.vec"
	}
	if cfg.Storage.QdrantHost == "" {
		cfg.Storage.QdrantHost = "localhost"
	}
	if cfg.Storage.QdrantPort == 0 {
		cfg.Storage.QdrantPort = 6334
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "rest"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.Chat.TopK == 0 {
		cfg.Chat.TopK = 5
	}
}
