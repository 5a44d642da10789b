package persistence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/keycase/pkg/api"
)

const mongoTimeout = 5 * time.Second

// MongoRunStore is a RunStore backed by a MongoDB collection.
type MongoRunStore struct {
	coll *mongo.Collection
}

// Ensure it implements RunStore.
var _ RunStore = (*MongoRunStore)(nil)

// NewMongoRunStore creates a Mongo-backed run store.
// dbName defaults to "keycase" if empty, collName defaults to "runs".
func NewMongoRunStore(client *mongo.Client, dbName, collName string) *MongoRunStore {
	if dbName == "" {
		dbName = "keycase"
	}
	if collName == "" {
		collName = "runs"
	}

	return &MongoRunStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

type mongoRunDoc struct {
	ID        string `bson:"_id"`
	ProjectID string `bson:"project_id"`
	PlanName  string `bson:"plan_name"`
	Status    string `bson:"status"`
	CreatedAt int64  `bson:"created_at"`
	Result    []byte `bson:"result,omitempty"`
}

func (d *mongoRunDoc) record() (*api.RunRecord, error) {
	res, err := DecodeValue[*api.RunResult](d.Result)
	if err != nil {
		return nil, err
	}
	return &api.RunRecord{
		RunID:     api.ID(d.ID),
		ProjectID: d.ProjectID,
		PlanName:  d.PlanName,
		Status:    api.RunStatus(d.Status),
		CreatedAt: time.Unix(0, d.CreatedAt).UTC(),
		Result:    res,
	}, nil
}

func (s *MongoRunStore) SaveRun(ctx context.Context, rec *api.RunRecord) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	result, err := EncodeValue(rec.Result)
	if err != nil {
		return err
	}

	doc := mongoRunDoc{
		ID:        string(rec.RunID),
		ProjectID: rec.ProjectID,
		PlanName:  rec.PlanName,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt.UnixNano(),
		Result:    result,
	}

	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoRunStore) GetRun(ctx context.Context, runID api.ID) (*api.RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	var doc mongoRunDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": string(runID)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return doc.record()
}

func (s *MongoRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]*api.RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*mongoTimeout)
	defer cancel()

	bfilter := bson.M{}
	if filter.ProjectID != "" {
		bfilter["project_id"] = filter.ProjectID
	}
	if filter.Status != "" {
		bfilter["status"] = string(filter.Status)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := s.coll.Find(ctx, bfilter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*api.RunRecord
	for cur.Next(ctx) {
		var doc mongoRunDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rec, err := doc.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	sortRecords(out)
	return out, nil
}
