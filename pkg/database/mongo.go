package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ghuser/secondchance/pkg/logger"
)

// MongoProvider hands out a shared *mongo.Database. The client is created on
// first use and reused by every caller afterwards; a failed connect is not
// cached, so the next call retries.
type MongoProvider struct {
	uri    string
	dbName string
	log    logger.Logger

	mu     sync.Mutex
	client *mongo.Client
}

// NewMongoProvider returns a provider for the database dbName at uri.
// No connection is made until Database or Ping is called.
func NewMongoProvider(uri, dbName string, log logger.Logger) *MongoProvider {
	return &MongoProvider{uri: uri, dbName: dbName, log: log}
}

// Database returns the configured database, connecting if necessary.
func (p *MongoProvider) Database(ctx context.Context) (*mongo.Database, error) {
	client, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(p.dbName), nil
}

func (p *MongoProvider) connect(ctx context.Context) (*mongo.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	opts := options.Client().
		ApplyURI(p.uri).
		SetConnectTimeout(5 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(20).
		SetMinPoolSize(2)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	p.client = client
	p.log.Info("mongo connected", "database", p.dbName)
	return client, nil
}

// Ping checks the MongoDB connection health.
func (p *MongoProvider) Ping(ctx context.Context) error {
	client, err := p.connect(ctx)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	return nil
}

// Close disconnects the client if one was opened.
func (p *MongoProvider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	err := p.client.Disconnect(ctx)
	p.client = nil
	if err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	return nil
}
