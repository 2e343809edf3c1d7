package referral

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/emberlabs/kiln/ledger/engine"
	"github.com/emberlabs/kiln/utils/pkg/retry"
)

// Neo4jConfig holds the graph directory configuration.
type Neo4jConfig struct {
	URI      string
	Database string
	Username string
	Password string
	MaxDepth int
	Logger   *slog.Logger
	Retry    retry.Config
}

// Validate checks required fields and fills defaults.
func (c *Neo4jConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("neo4j URI is required")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.DefaultConfig()
	}
	return nil
}

// Neo4j resolves referral ancestry from a graph of
// (:Account)-[:REFERRED_BY]->(:Account) relationships.
type Neo4j struct {
	cfg    Neo4jConfig
	log    *slog.Logger
	driver neo4j.DriverWithContext
}

// NewNeo4j connects to the graph and verifies connectivity.
func NewNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4j, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid neo4j directory config: %w", err)
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	return &Neo4j{
		cfg:    cfg,
		log:    cfg.Logger.With("component", "referral-directory"),
		driver: driver,
	}, nil
}

// Close shuts down the underlying driver.
func (d *Neo4j) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// Ancestors returns the referral chain nearest-first, capped at the
// configured depth. Transient failures are retried; the caller treats
// a final error as "no ancestors".
func (d *Neo4j) Ancestors(ctx context.Context, id engine.AccountID) ([]engine.AccountID, error) {
	var chain []engine.AccountID
	err := retry.Do(ctx, d.cfg.Retry, func() error {
		var err error
		chain, err = d.ancestors(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ancestors of %s: %w", id, err)
	}
	return chain, nil
}

func (d *Neo4j) ancestors(ctx context.Context, id engine.AccountID) ([]engine.AccountID, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: d.cfg.Database,
	})
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH path = (:Account {id: $id})-[:REFERRED_BY*1..%d]->(ancestor:Account)
		RETURN ancestor.id AS id
		ORDER BY length(path) ASC
	`, d.cfg.MaxDepth)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": string(id)})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		chain := make([]engine.AccountID, 0, len(records))
		for _, record := range records {
			raw, ok := record.Get("id")
			if !ok {
				continue
			}
			s, ok := raw.(string)
			if !ok || s == "" {
				continue
			}
			chain = append(chain, engine.AccountID(s))
		}
		return chain, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]engine.AccountID), nil
}
