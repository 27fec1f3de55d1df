package catalog_test

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/pkg/catalog"
	"storefront/pkg/logger"
	"storefront/pkg/store/memory"
)

func intPtr(n int) *int { return &n }

func price(v int64) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.NewFromInt(v)) }

func newService(t *testing.T) (*catalog.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return catalog.NewService(store, logger.New(io.Discard, logger.LevelError, "test", nil)), store
}

func TestNewPageInfo(t *testing.T) {
	info := catalog.NewPageInfo(23, 10, 10)
	require.NotNil(t, info.NextOffset)
	require.NotNil(t, info.PrevOffset)
	assert.Equal(t, 3, *info.NextOffset)
	assert.Equal(t, 10, *info.PrevOffset)
	assert.Equal(t, 23, info.Total)
	assert.Equal(t, 10, info.Limit)

	first := catalog.NewPageInfo(23, 0, 10)
	assert.Nil(t, first.PrevOffset)
	assert.Equal(t, 13, *first.NextOffset)

	last := catalog.NewPageInfo(23, 20, 10)
	assert.Nil(t, last.NextOffset)

	empty := catalog.NewPageInfo(0, 0, 10)
	assert.Nil(t, empty.NextOffset)
	assert.Nil(t, empty.PrevOffset)
}

func TestFilterQuery(t *testing.T) {
	tests := []struct {
		name    string
		filter  catalog.Filter
		want    catalog.Query
		wantErr bool
	}{
		{
			name:   "defaults",
			filter: catalog.Filter{},
			want:   catalog.Query{Offset: 0, Limit: catalog.PageSize},
		},
		{
			name:   "first page",
			filter: catalog.Filter{PageNumber: intPtr(1)},
			want:   catalog.Query{Offset: 0, Limit: 10},
		},
		{
			name:   "page number with default size",
			filter: catalog.Filter{PageNumber: intPtr(3)},
			want:   catalog.Query{Offset: 20, Limit: 10},
		},
		{
			name:   "page number with explicit limit",
			filter: catalog.Filter{PageNumber: intPtr(2), Limit: 5},
			want:   catalog.Query{Offset: 5, Limit: 5},
		},
		{
			name:   "explicit offset wins",
			filter: catalog.Filter{PageNumber: intPtr(4), Offset: intPtr(7), Limit: 3},
			want:   catalog.Query{Offset: 7, Limit: 3},
		},
		{
			name:   "name is normalized and zero min price ignored",
			filter: catalog.Filter{Name: "  WiDGet ", MinPrice: price(0), MaxPrice: price(9)},
			want:   catalog.Query{Name: "widget", MaxPrice: price(9), Limit: 10},
		},
		{name: "negative limit", filter: catalog.Filter{Limit: -1}, wantErr: true},
		{name: "negative page", filter: catalog.Filter{PageNumber: intPtr(-2)}, wantErr: true},
		{name: "page zero", filter: catalog.Filter{PageNumber: intPtr(0)}, wantErr: true},
		{name: "page number overflows offset", filter: catalog.Filter{PageNumber: intPtr(math.MaxInt / 5), Limit: 10}, wantErr: true},
		{name: "negative offset", filter: catalog.Filter{Offset: intPtr(-1)}, wantErr: true},
		{name: "min above max", filter: catalog.Filter{MinPrice: price(30), MaxPrice: price(20)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.Query()
			if tt.wantErr {
				assert.ErrorIs(t, err, catalog.ErrInvalidFilter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateRejectsCaseInsensitiveDuplicate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, catalog.CreateRequest{Name: "Widget", Price: decimal.NewFromInt(5), Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, "widget", p.Name)
	assert.NotEmpty(t, p.ID)

	_, err = svc.Create(ctx, catalog.CreateRequest{Name: "widget", Price: decimal.NewFromInt(7), Quantity: 1})
	assert.ErrorIs(t, err, catalog.ErrNameTaken)
}

func TestCreateValidates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, req := range []catalog.CreateRequest{
		{Name: "   ", Price: decimal.NewFromInt(1)},
		{Name: "bolt", Price: decimal.NewFromInt(-1)},
		{Name: "bolt", Price: decimal.NewFromInt(1), Quantity: -3},
	} {
		_, err := svc.Create(ctx, req)
		assert.ErrorIs(t, err, catalog.ErrInvalidProduct, "%+v", req)
	}
}

type failingRepo struct{ catalog.Repository }

func (failingRepo) FindByName(context.Context, string) (catalog.Product, error) {
	return catalog.Product{}, errors.New("connection refused")
}

func (failingRepo) Query(context.Context, catalog.Query) ([]catalog.Product, int, error) {
	return nil, 0, errors.New("connection refused")
}

func TestStoreErrorsPropagate(t *testing.T) {
	svc := catalog.NewService(failingRepo{}, logger.New(io.Discard, logger.LevelError, "test", nil))

	_, err := svc.Create(context.Background(), catalog.CreateRequest{Name: "x", Price: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	_, err = svc.List(context.Background(), catalog.Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestListPriceRangeSecondPage(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	// 12 products priced 8..30 in steps of 2; 6 of them fall in [10,20].
	for i := 0; i < 12; i++ {
		_, err := svc.Create(ctx, catalog.CreateRequest{
			Name:     string(rune('a' + i)),
			Price:    decimal.NewFromInt(int64(8 + 2*i)),
			Quantity: 1,
		})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, catalog.Filter{MinPrice: price(10), MaxPrice: price(20), Limit: 5, PageNumber: intPtr(2)})
	require.NoError(t, err)

	assert.Equal(t, 6, page.Page.Total)
	assert.Equal(t, 5, page.Page.Limit)
	require.NotNil(t, page.Page.PrevOffset)
	assert.Equal(t, 5, *page.Page.PrevOffset, "second page of five starts at offset 5")
	assert.Nil(t, page.Page.NextOffset)
	assert.LessOrEqual(t, len(page.Data), 5)
	require.Len(t, page.Data, 1)
	for _, p := range page.Data {
		assert.True(t, p.Price.GreaterThanOrEqual(decimal.NewFromInt(10)))
		assert.True(t, p.Price.LessThanOrEqual(decimal.NewFromInt(20)))
	}
}

func TestListEmpty(t *testing.T) {
	svc, _ := newService(t)

	page, err := svc.List(context.Background(), catalog.Filter{Name: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)
	assert.Equal(t, 0, page.Page.Total)
	assert.Nil(t, page.Page.NextOffset)
	assert.Nil(t, page.Page.PrevOffset)
}

func TestListByNameIsCaseInsensitive(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, catalog.CreateRequest{Name: "Gadget", Price: decimal.NewFromInt(3), Quantity: 2})
	require.NoError(t, err)

	page, err := svc.List(ctx, catalog.Filter{Name: "GADGET"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, created.ID, page.Data[0].ID)

	page, err = svc.List(ctx, catalog.Filter{ID: created.ID})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
}

func TestListHugePagingInputs(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, name := range []string{"alpha", "beta"} {
		_, err := svc.Create(ctx, catalog.CreateRequest{Name: name, Price: decimal.NewFromInt(1), Quantity: 1})
		require.NoError(t, err)
	}

	_, err := svc.List(ctx, catalog.Filter{PageNumber: intPtr(math.MaxInt / 5), Limit: 10})
	assert.ErrorIs(t, err, catalog.ErrInvalidFilter)

	page, err := svc.List(ctx, catalog.Filter{Offset: intPtr(1), Limit: math.MaxInt})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "beta", page.Data[0].Name)
	assert.Equal(t, 2, page.Page.Total)
	assert.Nil(t, page.Page.NextOffset)

	page, err = svc.List(ctx, catalog.Filter{Offset: intPtr(math.MaxInt), Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 2, page.Page.Total)
	assert.Nil(t, page.Page.NextOffset)
}
