package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

const (
	defaultOpTimeout = 5 * time.Second

	orderSequence = "orderId"
	lineSequence  = "lineId"
)

// OrderStoreOption настраивает документное хранилище заказов.
type OrderStoreOption func(*orderStore)

// WithLogger задаёт logger хранилища.
func WithLogger(logger *log.Entry) OrderStoreOption {
	return func(s *orderStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOpTimeout ограничивает время одной операции.
func WithOpTimeout(timeout time.Duration) OrderStoreOption {
	return func(s *orderStore) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

type orderDocument struct {
	OrderID      int64          `bson:"orderId"`
	UserID       int64          `bson:"userId"`
	RestaurantID int64          `bson:"restaurantId"`
	Status       string         `bson:"status"`
	Type         string         `bson:"type"`
	CreatedAt    time.Time      `bson:"createdAt"`
	Lines        []lineDocument `bson:"lines"`
}

type lineDocument struct {
	LineID    int64                `bson:"lineId"`
	OrderID   int64                `bson:"orderId"`
	ProductID int64                `bson:"productId"`
	Quantity  int32                `bson:"quantity"`
	Subtotal  primitive.Decimal128 `bson:"subtotal"`
}

type counterDocument struct {
	Seq int64 `bson:"seq"`
}

type orderStore struct {
	orders   *mongo.Collection
	counters *mongo.Collection
	logger   *log.Entry
	timeout  time.Duration
	now      func() time.Time
}

// NewOrderStore создаёт MongoDB-реализацию OrderStore.
func NewOrderStore(store *Store, opts ...OrderStoreOption) domain.OrderStore {
	return newOrderStore(store.Database(), opts...)
}

func newOrderStore(db *mongo.Database, opts ...OrderStoreOption) *orderStore {
	s := &orderStore{
		orders:   db.Collection(ordersCollection),
		counters: db.Collection(countersCollection),
		logger:   log.WithField("component", "mongo-order-store"),
		timeout:  defaultOpTimeout,
		// BSON хранит время с точностью до миллисекунды.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureIndexes создаёт уникальный индекс по orderId.
func EnsureIndexes(ctx context.Context, store *Store) error {
	if store == nil || store.Database() == nil {
		return errStoreNotInitialized
	}
	_, err := store.Database().Collection(ordersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "orderId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("orders_order_id_unique"),
	})
	if err != nil {
		return fmt.Errorf("create orders index: %w", err)
	}
	return nil
}

// Create резервирует идентификаторы в коллекции counters и вставляет заказ
// одним документом: частично записанный заказ невозможен.
func (s *orderStore) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	orderID, err := s.nextSequence(ctx, orderSequence, 1)
	if err != nil {
		return domain.Order{}, domain.NewPersistenceError("create order", err)
	}

	var firstLineID int64
	if n := int64(len(in.Lines)); n > 0 {
		lastLineID, err := s.nextSequence(ctx, lineSequence, n)
		if err != nil {
			return domain.Order{}, domain.NewPersistenceError("create order", err)
		}
		firstLineID = lastLineID - n + 1
	}

	order := domain.Order{
		ID:           orderID,
		UserID:       in.UserID,
		RestaurantID: in.RestaurantID,
		Status:       in.Status,
		Type:         in.Type,
		CreatedAt:    s.now(),
		Lines:        make([]domain.OrderLine, 0, len(in.Lines)),
	}
	for i, line := range in.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:        firstLineID + int64(i),
			OrderID:   orderID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		})
	}

	doc, err := toDocument(order)
	if err != nil {
		return domain.Order{}, domain.NewPersistenceError("create order", err)
	}
	if _, err := s.orders.InsertOne(ctx, doc); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":  orderID,
			"user_id":   in.UserID,
			"lines":     len(in.Lines),
			"duplicate": mongo.IsDuplicateKeyError(err),
		}).Warn("insert order document failed")
		return domain.Order{}, domain.NewPersistenceError("create order", fmt.Errorf("insert order: %w", err))
	}

	return order, nil
}

// ListAll возвращает все заказы вместе со встроенными позициями.
func (s *orderStore) ListAll(ctx context.Context) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.orders.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "orderId", Value: 1}}))
	if err != nil {
		return nil, domain.NewPersistenceError("list orders", err)
	}
	defer cursor.Close(ctx)

	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.NewPersistenceError("list orders", fmt.Errorf("decode orders: %w", err))
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order, err := fromDocument(doc)
		if err != nil {
			return nil, domain.NewPersistenceError("list orders", err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *orderStore) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc orderDocument
	if err := s.orders.FindOne(ctx, bson.M{"orderId": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, domain.NewPersistenceError("find order", err)
	}

	order, err := fromDocument(doc)
	if err != nil {
		return domain.Order{}, domain.NewPersistenceError("find order", err)
	}
	return order, nil
}

// DeleteByID удаляет документ; позиции уходят вместе с ним.
func (s *orderStore) DeleteByID(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.orders.DeleteOne(ctx, bson.M{"orderId": id})
	if err != nil {
		return false, domain.NewPersistenceError("delete order", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *orderStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.orders.Database().Client().Ping(pingCtx, nil)
}

// nextSequence атомарно увеличивает счётчик name на n и возвращает новое значение.
// Значения не откатываются, поэтому идентификаторы не переиспользуются.
func (s *orderStore) nextSequence(ctx context.Context, name string, n int64) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var counter counterDocument
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": n}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("reserve %s sequence: %w", name, err)
	}
	return counter.Seq, nil
}

func toDocument(order domain.Order) (orderDocument, error) {
	doc := orderDocument{
		OrderID:      order.ID,
		UserID:       order.UserID,
		RestaurantID: order.RestaurantID,
		Status:       string(order.Status),
		Type:         string(order.Type),
		CreatedAt:    order.CreatedAt,
		Lines:        make([]lineDocument, 0, len(order.Lines)),
	}
	for _, line := range order.Lines {
		subtotal, err := primitive.ParseDecimal128(line.Subtotal.String())
		if err != nil {
			return orderDocument{}, fmt.Errorf("encode subtotal of line %d: %w", line.ID, err)
		}
		doc.Lines = append(doc.Lines, lineDocument{
			LineID:    line.ID,
			OrderID:   line.OrderID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Subtotal:  subtotal,
		})
	}
	return doc, nil
}

func fromDocument(doc orderDocument) (domain.Order, error) {
	order := domain.Order{
		ID:           doc.OrderID,
		UserID:       doc.UserID,
		RestaurantID: doc.RestaurantID,
		Status:       domain.OrderStatus(doc.Status),
		Type:         domain.OrderType(doc.Type),
		CreatedAt:    doc.CreatedAt.UTC(),
		Lines:        make([]domain.OrderLine, 0, len(doc.Lines)),
	}
	for _, line := range doc.Lines {
		subtotal, err := decimal.NewFromString(line.Subtotal.String())
		if err != nil {
			return domain.Order{}, fmt.Errorf("decode subtotal of line %d: %w", line.LineID, err)
		}
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:        line.LineID,
			OrderID:   line.OrderID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Subtotal:  subtotal,
		})
	}
	return order, nil
}

var _ domain.OrderStore = (*orderStore)(nil)
