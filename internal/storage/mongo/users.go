package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/pribylovaa/copilot-auth/internal/models"
	"github.com/pribylovaa/copilot-auth/internal/storage"
)

// userDoc — BSON-представление пользователя. _id хранится строкой UUID.
type userDoc struct {
	ID               string    `bson:"_id"`
	Email            string    `bson:"email"`
	Username         string    `bson:"username"`
	PasswordHash     string    `bson:"password_hash,omitempty"`
	Image            string    `bson:"image"`
	RefreshWhitelist []string  `bson:"refresh_whitelist"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func toDoc(u *models.User) userDoc {
	wl := u.RefreshWhitelist
	if wl == nil {
		// null в поле массива ломает $filter/$concatArrays при ротации.
		wl = []string{}
	}

	return userDoc{
		ID:               u.ID.String(),
		Email:            u.Email,
		Username:         u.Username,
		PasswordHash:     u.PasswordHash,
		Image:            u.Image,
		RefreshWhitelist: wl,
		CreatedAt:        toMS(u.CreatedAt),
		UpdatedAt:        toMS(u.UpdatedAt),
	}
}

func (d *userDoc) toModel() (*models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("bad user id %q: %w", d.ID, err)
	}

	return &models.User{
		ID:               id,
		Email:            d.Email,
		Username:         d.Username,
		PasswordHash:     d.PasswordHash,
		Image:            d.Image,
		RefreshWhitelist: d.RefreshWhitelist,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

// MongoDB DateTime хранит миллисекунды.
func toMS(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

func now() time.Time { return toMS(time.Now()) }

// CreateUser создает нового пользователя.
func (m *Mongo) CreateUser(ctx context.Context, user *models.User) error {
	const op = "storage.mongo.CreateUser"

	if _, err := m.users.InsertOne(ctx, toDoc(user)); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByEmail находит пользователя по email.
func (m *Mongo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.findOne(ctx, "storage.mongo.UserByEmail", bson.D{{Key: "email", Value: email}})
}

// UserByID находит пользователя по ID.
func (m *Mongo) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.findOne(ctx, "storage.mongo.UserByID", byID(id))
}

// UpdateImage обновляет изображение профиля.
func (m *Mongo) UpdateImage(ctx context.Context, id uuid.UUID, image string) error {
	return m.updateOne(ctx, "storage.mongo.UpdateImage", id, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "image", Value: image},
			{Key: "updated_at", Value: now()},
		}},
	})
}

// AddRefreshToken добавляет токен в белый список ($addToSet — без дублей).
func (m *Mongo) AddRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	return m.updateOne(ctx, "storage.mongo.AddRefreshToken", userID, bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "refresh_whitelist", Value: token}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now()}}},
	})
}

// RotateRefreshToken заменяет oldToken на newToken одним условным update:
// фильтр требует членства oldToken, а pipeline-обновление в одном документе
// вычитает старый токен и дописывает новый. Два конкурентных вызова с одним
// oldToken не могут оба пройти фильтр.
func (m *Mongo) RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldToken, newToken string) (bool, error) {
	const op = "storage.mongo.RotateRefreshToken"

	filter := bson.D{
		{Key: "_id", Value: userID.String()},
		{Key: "refresh_whitelist", Value: oldToken},
	}

	pipeline := mongodriver.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "refresh_whitelist", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				bson.D{{Key: "$filter", Value: bson.D{
					{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$refresh_whitelist", bson.A{}}}}},
					{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", literal(oldToken)}}}},
				}}},
				bson.A{literal(newToken)},
			}}}},
			{Key: "updated_at", Value: now()},
		}}},
	}

	res, err := m.users.UpdateOne(ctx, filter, pipeline)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 1 {
		return true, nil
	}

	// Не совпал фильтр: либо токена нет в списке, либо нет пользователя.
	n, err := m.users.CountDocuments(ctx, byID(userID))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return false, nil
}

// RemoveRefreshTokens удаляет перечисленные токены.
func (m *Mongo) RemoveRefreshTokens(ctx context.Context, userID uuid.UUID, tokens ...string) error {
	return m.updateOne(ctx, "storage.mongo.RemoveRefreshTokens", userID, bson.D{
		{Key: "$pull", Value: bson.D{{Key: "refresh_whitelist", Value: bson.D{{Key: "$in", Value: tokens}}}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now()}}},
	})
}

// ClearRefreshTokens очищает белый список.
func (m *Mongo) ClearRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	return m.updateOne(ctx, "storage.mongo.ClearRefreshTokens", userID, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "refresh_whitelist", Value: bson.A{}},
			{Key: "updated_at", Value: now()},
		}},
	})
}

func (m *Mongo) findOne(ctx context.Context, op string, filter bson.D) (*models.User, error) {
	var doc userDoc
	if err := m.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err := doc.toModel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (m *Mongo) updateOne(ctx context.Context, op string, id uuid.UUID, update bson.D) error {
	res, err := m.users.UpdateOne(ctx, byID(id), update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func byID(id uuid.UUID) bson.D {
	return bson.D{{Key: "_id", Value: id.String()}}
}

// literal экранирует строку в aggregation-выражении (значение, начинающееся
// с "$", иначе трактуется как путь к полю).
func literal(s string) bson.D {
	return bson.D{{Key: "$literal", Value: s}}
}
