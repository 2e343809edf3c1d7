package config

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/emberlabs/kiln/ledger/referral"
)

// Neo4jDirectory is the global referral directory backed by Neo4j.
// It stays nil when no NEO4J_URI is configured; the API then serves
// without referral ancestry.
var Neo4jDirectory *referral.Neo4j

// LoadNeo4j initializes the referral directory from environment
// variables. Returns nil without connecting when NEO4J_URI is unset.
func LoadNeo4j(logger *slog.Logger) error {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		log.Printf("NEO4J_URI not set, referral directory disabled")
		return nil
	}

	database := os.Getenv("NEO4J_DATABASE")
	if database == "" {
		database = "neo4j"
	}

	username := os.Getenv("NEO4J_USERNAME")
	if username == "" {
		username = "neo4j"
	}

	password := os.Getenv("NEO4J_PASSWORD")

	log.Printf("Connecting to Neo4j: uri=%s, database=%s, username=%s", uri, database, username)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	directory, err := referral.NewNeo4j(ctx, referral.Neo4jConfig{
		URI:      uri,
		Database: database,
		Username: username,
		Password: password,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	Neo4jDirectory = directory
	log.Printf("Connected to Neo4j successfully")

	return nil
}

// CloseNeo4j closes the referral directory driver.
func CloseNeo4j() error {
	if Neo4jDirectory != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return Neo4jDirectory.Close(ctx)
	}
	return nil
}
