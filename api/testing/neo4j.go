package apitesting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tcneo4j "github.com/testcontainers/testcontainers-go/modules/neo4j"
)

// Neo4jConfig holds the Neo4j test container configuration.
type Neo4jConfig struct {
	Password       string
	ContainerImage string
}

func (cfg *Neo4jConfig) Validate() error {
	if cfg.Password == "" {
		// Neo4j rejects admin passwords shorter than 8 characters.
		cfg.Password = "kiln-test-password"
	}
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = "neo4j:5"
	}
	return nil
}

// Neo4jDB represents a Neo4j test container.
type Neo4jDB struct {
	log       *slog.Logger
	cfg       *Neo4jConfig
	boltURL   string
	container *tcneo4j.Neo4jContainer
}

// BoltURL returns the bolt:// connection URL.
func (db *Neo4jDB) BoltURL() string {
	return db.boltURL
}

// Password returns the admin password the container was started with.
func (db *Neo4jDB) Password() string {
	return db.cfg.Password
}

// Close terminates the Neo4j container.
func (db *Neo4jDB) Close() {
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.container.Terminate(terminateCtx); err != nil {
		db.log.Error("failed to terminate Neo4j container", "error", err)
	}
}

// NewNeo4jDB creates a new Neo4j testcontainer.
func NewNeo4jDB(ctx context.Context, log *slog.Logger, cfg *Neo4jConfig) (*Neo4jDB, error) {
	if cfg == nil {
		cfg = &Neo4jConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate Neo4j config: %w", err)
	}

	// Retry container start up to 3 times for retryable errors
	var container *tcneo4j.Neo4jContainer
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		var err error
		container, err = tcneo4j.Run(ctx,
			cfg.ContainerImage,
			tcneo4j.WithAdminPassword(cfg.Password),
		)
		if err != nil {
			lastErr = err
			if isRetryableContainerStartErr(err) && attempt < 3 {
				time.Sleep(time.Duration(attempt) * 750 * time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("failed to start Neo4j container after retries: %w", lastErr)
		}
		break
	}

	if container == nil {
		return nil, fmt.Errorf("failed to start Neo4j container after retries: %w", lastErr)
	}

	boltURL, err := container.BoltUrl(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Neo4j bolt URL: %w", err)
	}

	return &Neo4jDB{
		log:       log,
		cfg:       cfg,
		boltURL:   boltURL,
		container: container,
	}, nil
}
