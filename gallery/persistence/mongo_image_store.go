package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/dfryer1193/imgcrud/gallery/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var _ domain.ImageStore = (*MongoImageStore)(nil)

// ImagesCollection is the collection holding image documents.
const ImagesCollection = "images"

// MongoImageStore implements domain.ImageStore on a MongoDB collection. Ids
// are ObjectIDs in hex form.
type MongoImageStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoImageStore creates a store over the images collection of database.
func NewMongoImageStore(client *mongo.Client, database string) *MongoImageStore {
	return &MongoImageStore{
		client:     client,
		collection: client.Database(database).Collection(ImagesCollection),
		now:        time.Now,
	}
}

// ConnectMongo connects to uri and verifies the primary is reachable.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, domain.ErrStoreUnavailable(err, "connect to mongodb")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, domain.ErrStoreUnavailable(err, "ping mongodb")
	}

	return client, nil
}

// EnsureIndexes creates the createdAt index used to order the image list.
func (s *MongoImageStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	return domain.ErrStoreUnavailable(err, "create images index")
}

type imageDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Data        []byte             `bson:"data,omitempty"`
	ContentType string             `bson:"contentType"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d *imageDocument) toDomain() *domain.Image {
	return &domain.Image{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Data:        d.Data,
		ContentType: d.ContentType,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// CreateImage inserts img and fills in the id assigned by the server.
func (s *MongoImageStore) CreateImage(ctx context.Context, img *domain.Image) error {
	if err := img.Validate(); err != nil {
		return err
	}

	// BSON dates carry millisecond precision.
	now := s.now().UTC().Truncate(time.Millisecond)
	doc := imageDocument{
		ID:          primitive.NewObjectID(),
		Name:        img.Name,
		Data:        img.Data,
		ContentType: img.ContentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return domain.ErrStoreUnavailable(err, "insert image")
	}

	img.ID = doc.ID.Hex()
	img.CreatedAt = now
	img.UpdatedAt = now
	return nil
}

// ListImages returns every image newest first. Image bytes are not fetched.
func (s *MongoImageStore) ListImages(ctx context.Context) ([]domain.ImageSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.D{{Key: "data", Value: 0}})

	cursor, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, domain.ErrStoreUnavailable(err, "list images")
	}

	var docs []imageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.ErrStoreUnavailable(err, "decode images")
	}

	images := make([]domain.ImageSummary, 0, len(docs))
	for i := range docs {
		images = append(images, docs[i].toDomain().Summary())
	}
	return images, nil
}

// GetImage retrieves a single image. Ids that are not valid ObjectIDs are
// reported as not found.
func (s *MongoImageStore) GetImage(ctx context.Context, id string) (*domain.Image, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrImageNotFound(id)
	}

	var doc imageDocument
	err = s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrImageNotFound(id)
	}
	if err != nil {
		return nil, domain.ErrStoreUnavailable(err, "get image")
	}

	return doc.toDomain(), nil
}

// RenameImage sets the name of an image and returns the updated document
// without its bytes.
func (s *MongoImageStore) RenameImage(ctx context.Context, id string, name string) (*domain.Image, error) {
	if name == "" {
		return nil, domain.ErrInvalidImage("Name is required")
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrImageNotFound(id)
	}

	update := bson.M{"$set": bson.M{
		"name":      name,
		"updatedAt": s.now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: "data", Value: 0}})

	var doc imageDocument
	err = s.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrImageNotFound(id)
	}
	if err != nil {
		return nil, domain.ErrStoreUnavailable(err, "rename image")
	}

	return doc.toDomain(), nil
}

// DeleteImage removes an image by id.
func (s *MongoImageStore) DeleteImage(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrImageNotFound(id)
	}

	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return domain.ErrStoreUnavailable(err, "delete image")
	}
	if res.DeletedCount == 0 {
		return domain.ErrImageNotFound(id)
	}

	return nil
}

func (s *MongoImageStore) Ping(ctx context.Context) error {
	return domain.ErrStoreUnavailable(s.client.Ping(ctx, readpref.Primary()), "ping mongodb")
}
