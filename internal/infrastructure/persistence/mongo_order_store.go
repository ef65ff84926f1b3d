package persistence

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/order"
	"github.com/ordersync/backend/internal/infrastructure/persistence/models"
)

// CollectionPrefix names the per-partition collections: orders_pending,
// orders_open and orders_closed.
const CollectionPrefix = "orders_"

// MongoOrderStore implements order.Store with one collection per partition
type MongoOrderStore struct {
	db     *mongo.Database
	logger *zap.Logger
}

var _ order.Store = (*MongoOrderStore)(nil)

// NewMongoOrderStore creates a store over db
func NewMongoOrderStore(db *mongo.Database, logger *zap.Logger) *MongoOrderStore {
	return &MongoOrderStore{db: db, logger: logger}
}

// CollectionName returns the collection backing stage
func CollectionName(stage order.Stage) string {
	return CollectionPrefix + stage.String()
}

// EnsureIndexes creates the unique external id index and the cursor
// ordering indexes on every partition. It is safe to call repeatedly.
func (s *MongoOrderStore) EnsureIndexes(ctx context.Context) error {
	for _, stage := range order.AllStages {
		_, err := s.db.Collection(CollectionName(stage)).Indexes().CreateMany(ctx, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: models.FieldExternalOrderID, Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_shopify_order_id"),
			},
			{
				Keys:    bson.D{{Key: models.FieldPurchaseOrder, Value: 1}},
				Options: options.Index().SetName("idx_shopify_po"),
			},
			{
				Keys: bson.D{
					{Key: models.FieldDateReceived, Value: -1},
					{Key: models.FieldPurchaseOrder, Value: -1},
					{Key: models.FieldDateOrdered, Value: -1},
				},
				Options: options.Index().SetName("idx_cursor"),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", CollectionName(stage), err)
		}
	}
	return nil
}

// Find implements order.Store
func (s *MongoOrderStore) Find(ctx context.Context, stage order.Stage, q order.Query) ([]order.Record, error) {
	coll, err := s.collection(stage)
	if err != nil {
		return nil, err
	}

	cur, err := coll.Find(ctx, filterDocument(q), findOptions(q))
	if err != nil {
		return nil, fmt.Errorf("%w: find in %s: %w", order.ErrStoreReadFailure, coll.Name(), err)
	}
	var docs []models.OrderDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", order.ErrStoreReadFailure, coll.Name(), err)
	}

	out := make([]order.Record, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].ToDomain(stage))
	}
	return out, nil
}

// BulkUpsert implements order.Store. Stored documents are read once, each
// incoming record is folded in with order.Merge, and the merged documents are
// written back in one ordered bulk of upserting replaces.
func (s *MongoOrderStore) BulkUpsert(ctx context.Context, stage order.Stage, records []order.Record) (order.BulkResult, error) {
	coll, err := s.collection(stage)
	if err != nil {
		return order.BulkResult{}, fmt.Errorf("%w: %w", order.ErrStoreWriteFailure, err)
	}
	if len(records) == 0 {
		return order.BulkResult{}, nil
	}

	ids := make([]string, 0, len(records))
	for i, r := range records {
		if r.ExternalOrderID == "" {
			return order.BulkResult{}, fmt.Errorf("%w: %w (record %d)", order.ErrStoreWriteFailure, order.ErrMissingExternalID, i)
		}
		ids = append(ids, r.ExternalOrderID)
	}

	existing, err := s.Find(ctx, stage, order.Query{ExternalIDs: ids})
	if err != nil {
		return order.BulkResult{}, fmt.Errorf("%w: %w", order.ErrStoreWriteFailure, err)
	}
	state := make(map[string]order.Record, len(existing))
	for _, r := range existing {
		state[r.ExternalOrderID] = r
	}

	writes := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		merged := order.Merge(state[r.ExternalOrderID], r)
		state[r.ExternalOrderID] = merged
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: models.FieldExternalOrderID, Value: r.ExternalOrderID}}).
			SetReplacement(models.NewOrderDocument(merged)).
			SetUpsert(true))
	}

	res, err := coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return order.BulkResult{}, fmt.Errorf("%w: bulk write %s: %w", order.ErrStoreWriteFailure, coll.Name(), err)
	}
	s.logger.Debug("Bulk upsert complete",
		zap.String("collection", coll.Name()),
		zap.Int64("matched", res.MatchedCount),
		zap.Int64("upserted", res.UpsertedCount),
		zap.Int64("modified", res.ModifiedCount),
	)
	return order.BulkResult{
		Matched:  res.MatchedCount,
		Upserted: res.UpsertedCount,
		Modified: res.ModifiedCount,
	}, nil
}

// BulkDelete implements order.Store
func (s *MongoOrderStore) BulkDelete(ctx context.Context, stage order.Stage, externalIDs []string) (int64, error) {
	coll, err := s.collection(stage)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", order.ErrStoreWriteFailure, err)
	}
	if len(externalIDs) == 0 {
		return 0, nil
	}
	res, err := coll.DeleteMany(ctx, bson.D{{Key: models.FieldExternalOrderID, Value: bson.D{{Key: "$in", Value: externalIDs}}}})
	if err != nil {
		return 0, fmt.Errorf("%w: delete from %s: %w", order.ErrStoreWriteFailure, coll.Name(), err)
	}
	return res.DeletedCount, nil
}

// Ping implements order.Store
func (s *MongoOrderStore) Ping(ctx context.Context) error {
	if err := s.db.Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %w", order.ErrStoreReadFailure, err)
	}
	return nil
}

func (s *MongoOrderStore) collection(stage order.Stage) (*mongo.Collection, error) {
	if !stage.IsValid() {
		return nil, fmt.Errorf("%w: %q", order.ErrInvalidStage, stage)
	}
	return s.db.Collection(CollectionName(stage)), nil
}

func filterDocument(q order.Query) bson.D {
	filter := bson.D{}
	if len(q.ExternalIDs) > 0 {
		filter = append(filter, bson.E{Key: models.FieldExternalOrderID, Value: bson.D{{Key: "$in", Value: q.ExternalIDs}}})
	}
	if len(q.PurchaseOrders) > 0 {
		filter = append(filter, bson.E{Key: models.FieldPurchaseOrder, Value: bson.D{{Key: "$in", Value: q.PurchaseOrders}}})
	}
	if q.ClosedOnly {
		filter = append(filter, bson.E{Key: models.FieldClosed, Value: true})
	}
	return filter
}

// numericCollation orders digit runs by value, matching order.SortRecords
var numericCollation = &options.Collation{Locale: "en", NumericOrdering: true}

func findOptions(q order.Query) *options.FindOptions {
	opts := options.Find()
	if sort := sortDocument(q.Sort); len(sort) > 0 {
		opts.SetSort(sort).SetCollation(numericCollation)
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}

func sortDocument(keys []order.SortKey) bson.D {
	var sort bson.D
	for _, k := range keys {
		dir := 1
		if k.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: sortField(k.Field), Value: dir})
	}
	return sort
}

func sortField(f order.SortField) string {
	switch f {
	case order.SortByReceivedAt:
		return models.FieldDateReceived
	case order.SortByPurchaseOrder:
		return models.FieldPurchaseOrder
	case order.SortByOrderedAt:
		return models.FieldDateOrdered
	default:
		return models.FieldExternalOrderID
	}
}
