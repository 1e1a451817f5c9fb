package manager

import (
	"database/sql"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/omegaorm/omega/internal/orm/events"
	"github.com/omegaorm/omega/internal/orm/metadata"
)

type tag struct {
	metadata.Entity `orm:"table=Tags"`
	TagID           int    `orm:"column=TagId;type=Int32;identity"`
	Label           string `orm:"column=Label"`
}

type category struct {
	metadata.Entity `orm:"table=Categories"`
	CategoryID      int        `orm:"column=CategoryId;type=Int32;identity"`
	Title           string     `orm:"column=Title"`
	Products        []*product `orm:"onetomany;ref=CategoryId"`
}

type product struct {
	metadata.Entity `orm:"table=Products"`
	ProductID       int       `orm:"column=ProductId;type=Int32;identity"`
	Name            string    `orm:"column=Name"`
	Category        *category `orm:"column=CategoryId;manytoone;ref=CategoryId"`
	Weight          int       `orm:"custom=CustomFields;ref=ProductId;fieldid=5;type=Int32"`
}

type article struct {
	metadata.Entity `orm:"table=Articles;nocache"`
	ArticleID       int       `orm:"column=ArticleId;identity"`
	RowGUID         uuid.UUID `orm:"column=RowGuid;type=Guid;guid"`
	Title           string    `orm:"column=Title"`
	Version         int       `orm:"column=Version;type=Int32;version"`
}

const (
	selectTag      = "SELECT TagId, Label FROM Tags t WHERE TagId = @TagId"
	selectProduct  = "SELECT ProductId, Name, CategoryId FROM Products t WHERE ProductId = @ProductId"
	selectCategory = "SELECT CategoryId, Title FROM Categories t WHERE CategoryId = @CategoryId"
	selectChildren = "SELECT ProductId, Name, CategoryId FROM Products t WHERE CategoryId = @CategoryId"
	selectCustom   = "SELECT ProductId, CustomFieldId, CustomFieldValue FROM CustomFields t WHERE ProductId = @identifier"
	existsCustom   = "SELECT COUNT(*) FROM CustomFields t WHERE ProductId = @ProductId AND (CustomFieldId = @CustomFieldId)"
	updateCustom   = "UPDATE CustomFields SET CustomFieldValue = @CustomFieldValue WHERE ProductId = @ProductId AND (CustomFieldId = @CustomFieldId)"
	insertCustom   = "INSERT INTO CustomFields (ProductId, CustomFieldId, CustomFieldValue) VALUES (@ProductId, @CustomFieldId, @CustomFieldValue)"
)

// recorder collects observer notifications
type recorder struct {
	mu         sync.Mutex
	operations []events.OperationEvent
	loaded     []events.EntityLoadedEvent
	listings   []events.ListingEvent
}

func (r *recorder) OnOperation(e events.OperationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations = append(r.operations, e)
}

func (r *recorder) OnEntityLoaded(e events.EntityLoadedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = append(r.loaded, e)
}

func (r *recorder) OnListing(e events.ListingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings = append(r.listings, e)
}

func setupMock(t *testing.T, opts ...Option) (*EntityManager, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	opts = append([]Option{WithRegistry(metadata.NewRegistry())}, opts...)
	em := New(db, opts...)
	t.Cleanup(func() {
		_ = em.Close()
		_ = db.Close()
	})
	return em, mock, db
}
