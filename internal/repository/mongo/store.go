// Package mongostore keeps users and todos in MongoDB collections.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"todo-planner/internal/model"
	"todo-planner/internal/repository"
)

// Store owns the client and exposes one repository per collection.
type Store struct {
	client *mongo.Client
	Users  *UserRepository
	Todos  *TodoRepository
}

// Connect dials uri, verifies the connection and ensures indexes.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client: client,
		Users:  &UserRepository{coll: db.Collection("users")},
		Todos:  &TodoRepository{coll: db.Collection("todos")},
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.Users.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "nickname", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "linkCode", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	_, err = s.Todos.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create todo indexes: %w", err)
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	default:
		return err
	}
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

// UserRepository stores users in the "users" collection.
type UserRepository struct {
	coll *mongo.Collection
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	stamp(&user.CreatedAt, &user.UpdatedAt)
	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var user model.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByLinkCode(ctx context.Context, code string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"linkCode": code})
}

func (r *UserRepository) FindByTelegramChat(ctx context.Context, chatID int64) (*model.User, error) {
	return r.findOne(ctx, bson.M{"telegramChatId": chatID})
}

func (r *UserRepository) NicknameTaken(ctx context.Context, nickname, excludeID string) (bool, error) {
	filter := bson.M{"nickname": nickname}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count nickname: %w", err)
	}
	return n > 0, nil
}

func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	stamp(&user.CreatedAt, &user.UpdatedAt)
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return fmt.Errorf("update user: %w", translate(err))
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) ListLinked(ctx context.Context) ([]model.User, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"telegramChatId": bson.M{"$exists": true, "$ne": 0}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list linked users: %w", err)
	}
	var users []model.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// TodoRepository stores todos in the "todos" collection.
type TodoRepository struct {
	coll *mongo.Collection
}

func (r *TodoRepository) Create(ctx context.Context, todo *model.Todo) error {
	if todo.ID == "" {
		todo.ID = uuid.NewString()
	}
	stamp(&todo.CreatedAt, &todo.UpdatedAt)
	if _, err := r.coll.InsertOne(ctx, todo); err != nil {
		return fmt.Errorf("create todo: %w", translate(err))
	}
	return nil
}

func (r *TodoRepository) ListByUser(ctx context.Context, userID string) ([]model.Todo, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"user": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	var todos []model.Todo
	if err := cur.All(ctx, &todos); err != nil {
		return nil, fmt.Errorf("decode todos: %w", err)
	}
	return todos, nil
}

func (r *TodoRepository) FindByID(ctx context.Context, userID, id string) (*model.Todo, error) {
	var todo model.Todo
	if err := r.coll.FindOne(ctx, bson.M{"_id": id, "user": userID}).Decode(&todo); err != nil {
		return nil, translate(err)
	}
	return &todo, nil
}

func (r *TodoRepository) Save(ctx context.Context, todo *model.Todo) error {
	stamp(&todo.CreatedAt, &todo.UpdatedAt)
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": todo.ID, "user": todo.UserID}, todo)
	if err != nil {
		return fmt.Errorf("save todo: %w", translate(err))
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TodoRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "user": userID})
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
