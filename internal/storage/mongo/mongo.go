// mongo — хранилище пользователей в MongoDB: один документ на пользователя,
// белый список refresh-токенов хранится массивом внутри документа, поэтому
// все его изменения — атомарные single-document update.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/pribylovaa/copilot-auth/internal/storage"
)

const (
	appName         = "copilot-auth"
	usersCollection = "users"
	defaultDBName   = "auth"
)

// Mongo реализует storage.Storage поверх коллекции users.
type Mongo struct {
	client *mongodriver.Client
	users  *mongodriver.Collection
}

// New подключается к MongoDB по uri, проверяет соединение и создаёт
// уникальные индексы. База берётся из пути uri (по умолчанию "auth").
func New(ctx context.Context, uri string) (*Mongo, error) {
	const op = "storage.mongo.New"

	if uri == "" {
		return nil, fmt.Errorf("%s: empty uri", op)
	}

	client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri).SetAppName(appName))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	m := &Mongo{
		client: client,
		users:  client.Database(databaseFromURI(uri)).Collection(usersCollection),
	}

	for _, step := range []func(context.Context) error{m.Ping, m.ensureIndexes} {
		if err := step(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return m, nil
}

// Ping проверяет доступность primary.
func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close закрывает соединения клиента.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// ensureIndexes: email и username уникальны. На них держатся ErrAlreadyExists
// при регистрации и отсутствие дублей при параллельном OIDC-входе.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	unique := func(field string) mongodriver.IndexModel {
		return mongodriver.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetName(field + "_unique").SetUnique(true),
		}
	}

	if _, err := m.users.Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		unique("email"),
		unique("username"),
	}); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	return nil
}

func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultDBName
	}

	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}

	return defaultDBName
}

var _ storage.Storage = (*Mongo)(nil)
