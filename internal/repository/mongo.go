package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo holds the document-database connection pool and the database the
// application works in.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo creates the client from uri. The driver dials in the background,
// so an unreachable server is not an error here; a malformed uri is.
// An empty uri leaves the driver on its default of localhost:27017.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	opts := options.Client()
	if uri != "" {
		opts.ApplyURI(uri)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}
	return &Mongo{client: client, db: client.Database(database)}, nil
}

func (m *Mongo) Client() *mongo.Client {
	return m.client
}

func (m *Mongo) Database() *mongo.Database {
	return m.db
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
