package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Catalog.CSVPath == "" {
		cfg.Catalog.CSVPath = "./books.csv"
	}
	if cfg.Catalog.TextColumn == "" {
		cfg.Catalog.TextColumn = "description"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/catalog.db"
	}
	if cfg.Storage.CacheRoot == "" {
		cfg.Storage.CacheRoot = "./data/caches"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "./data/indices/bleve"
	}
	if cfg.Storage.CoversPath == "" {
		cfg.Storage.CoversPath = "./data/covers"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "lmstudio"
	}
	if cfg.Embedding.LocalModel == "" {
		cfg.Embedding.LocalModel = "minilm"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Recommend.BatchSize == 0 {
		cfg.Recommend.BatchSize = 512
	}
	if cfg.Recommend.DefaultCount == 0 {
		cfg.Recommend.DefaultCount = 5
	}
	if cfg.Recommend.MaxCount == 0 {
		cfg.Recommend.MaxCount = 50
	}
}
