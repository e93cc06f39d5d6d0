package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"majorcompass/internal/logger"
	"majorcompass/internal/model"
)

// ErrDuplicateCode is returned when a result code is already taken
var ErrDuplicateCode = errors.New("result code already exists")

// ResultRepo handles MongoDB operations for assessment results
type ResultRepo interface {
	EnsureIndexes(ctx context.Context)
	Create(ctx context.Context, rec *model.ResultRecord) error
	GetByCode(ctx context.Context, code string) (*model.ResultRecord, error)
	GetLatestByStudentID(ctx context.Context, studentID string) (*model.ResultRecord, error)
	List(ctx context.Context, limit int) ([]*model.ResultRecord, error)
	Delete(ctx context.Context, code string) error
	Exists(ctx context.Context, code string) (bool, error)
}

type resultRepo struct {
	collection *mongo.Collection
}

// NewResultRepo creates a new result repository
func NewResultRepo(db *mongo.Database) ResultRepo {
	return &resultRepo{
		collection: db.Collection("results"),
	}
}

// EnsureIndexes creates the lookup indexes; failures are logged, not fatal
func (r *resultRepo) EnsureIndexes(ctx context.Context) {
	r.createIndex(ctx, bson.D{{Key: "createdAt", Value: -1}}, false)
	r.createIndex(ctx, bson.D{
		{Key: "studentId", Value: 1},
		{Key: "createdAt", Value: -1},
	}, false)
	r.createIndex(ctx, bson.D{{Key: "hollandCode", Value: 1}}, false)
}

func (r *resultRepo) createIndex(ctx context.Context, keys bson.D, unique bool) {
	opts := options.Index().SetUnique(unique)
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts})
	if err != nil {
		logger.Log.Warn("failed to create index", zap.String("collection", r.collection.Name()), zap.Error(err))
	}
}

func (r *resultRepo) Create(ctx context.Context, rec *model.ResultRecord) error {
	_, err := r.collection.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateCode
	}
	return err
}

func (r *resultRepo) GetByCode(ctx context.Context, code string) (*model.ResultRecord, error) {
	var rec model.ResultRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": code}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *resultRepo) GetLatestByStudentID(ctx context.Context, studentID string) (*model.ResultRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var rec model.ResultRecord
	err := r.collection.FindOne(ctx, bson.M{"studentId": studentID}, opts).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *resultRepo) List(ctx context.Context, limit int) ([]*model.ResultRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*model.ResultRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *resultRepo) Delete(ctx context.Context, code string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": code})
	return err
}

func (r *resultRepo) Exists(ctx context.Context, code string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": code}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
