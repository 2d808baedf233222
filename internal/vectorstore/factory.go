package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/tempora/internal/config"
	"github.com/fyrsmithlabs/tempora/internal/logging"
)

// New creates the Index selected by cfg.Provider:
//   - "chromem" (default): embedded, persisted under cfg.ChromemPath
//   - "qdrant": remote Qdrant over gRPC
func New(cfg config.IndexConfig, logger *logging.Logger) (Index, error) {
	switch cfg.Provider {
	case "chromem", "":
		return NewChromemIndex(ChromemConfig{
			Path:       cfg.ChromemPath,
			Compress:   cfg.ChromemCompress,
			Collection: cfg.Collection,
		}, logger)
	case "qdrant":
		return NewQdrantIndex(QdrantConfig{
			Host:         cfg.QdrantHost,
			Port:         cfg.QdrantPort,
			UseTLS:       cfg.QdrantTLS,
			APIKey:       cfg.QdrantAPIKey.Value(),
			Collection:   cfg.Collection,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff.Duration(),
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported index provider %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.Provider)
	}
}
