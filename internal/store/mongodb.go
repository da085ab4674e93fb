package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"media-resolver-go/internal/video"
)

type MongoStore struct {
	cli *mongo.Client
	db  *mongo.Database
}

func OpenMongo(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, errors.New("MONGO_URI is empty")
	}
	if strings.TrimSpace(dbName) == "" {
		dbName = "media_resolver"
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	s := &MongoStore{cli: cli, db: cli.Database(dbName)}
	if err := s.initSchema(ctx); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) initSchema(ctx context.Context) error {
	_, err := s.db.Collection("resolutions").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "trace_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_trace"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo create indexes resolutions: %w", err)
	}
	_, err = s.db.Collection("videos").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "platform", Value: 1}, {Key: "content_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_platform_content"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo create indexes videos: %w", err)
	}
	return nil
}

func (s *MongoStore) SaveResolution(ctx context.Context, e Entry) error {
	if err := prepareEntry(&e); err != nil {
		return err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.db.Collection("resolutions").InsertOne(ctx, bson.M{
		"trace_id":    e.TraceID,
		"platform":    e.Platform,
		"content_id":  e.ContentID,
		"success":     e.Success,
		"error_kind":  e.ErrorKind,
		"source":      e.Source,
		"data_json":   string(b),
		"created_at":  e.CreatedAt.UnixMilli(),
		"created_iso": e.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	if !e.Success || e.ContentID == "" || e.Result.Record == nil {
		return nil
	}

	rec := *e.Result.Record
	rec.ContentID = e.ContentID
	rb, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	filter := bson.D{{Key: "platform", Value: e.Platform}, {Key: "content_id", Value: e.ContentID}}
	update := bson.D{{Key: "$set", Value: bson.M{
		"platform":    e.Platform,
		"content_id":  e.ContentID,
		"data_json":   string(rb),
		"updated_at":  e.CreatedAt.Unix(),
		"updated_iso": e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}}}
	_, err = s.db.Collection("videos").UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

type jsonDoc struct {
	DataJSON string `bson:"data_json"`
}

func (s *MongoStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(clampLimit(limit))).
		SetProjection(bson.M{"data_json": 1})
	cur, err := s.db.Collection("resolutions").Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Entry
	for cur.Next(ctx) {
		var doc jsonDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal([]byte(doc.DataJSON), &e); err != nil {
			return nil, fmt.Errorf("decode resolution: %w", err)
		}
		out = append(out, e)
	}
	return out, cur.Err()
}

func (s *MongoStore) Video(ctx context.Context, platform, contentID string) (video.Record, bool, error) {
	var doc jsonDoc
	err := s.db.Collection("videos").FindOne(ctx, bson.D{
		{Key: "platform", Value: platform},
		{Key: "content_id", Value: contentID},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return video.Record{}, false, nil
	}
	if err != nil {
		return video.Record{}, false, err
	}
	var rec video.Record
	if err := json.Unmarshal([]byte(doc.DataJSON), &rec); err != nil {
		return video.Record{}, false, fmt.Errorf("decode video: %w", err)
	}
	return rec, true, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.cli.Disconnect(ctx)
}
