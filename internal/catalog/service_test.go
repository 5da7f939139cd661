package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}

func TestCreateCategoryDerivesUniqueSlug(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Caffè Crème", IsActive: true})
	require.NoError(t, err)
	require.Equal(t, "caffe-creme", first.Slug)

	_, err = svc.CreateCategory(ctx, CreateCategoryInput{Name: "Caffè Crème", IsActive: true})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "duplicate name: %v", err)

	second, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Caffe Creme", IsActive: true})
	require.NoError(t, err)
	require.Equal(t, "caffe-creme-2", second.Slug)
}

func TestCreateCategoryExplicitSlugConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Beans", Slug: "beans", IsActive: true})
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, CreateCategoryInput{Name: "Other Beans", Slug: "beans", IsActive: true})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateProductValidatesBounds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	category, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Coffee", IsActive: true})
	require.NoError(t, err)

	cases := map[string]CreateProductInput{
		"empty name":     {Name: " ", CategoryID: category.ID, Price: "1.00"},
		"price too low":  {Name: "Cheap", CategoryID: category.ID, Price: "0.00"},
		"price too high": {Name: "Pricey", CategoryID: category.ID, Price: "1000000.00"},
		"bad price":      {Name: "Weird", CategoryID: category.ID, Price: "abc"},
		"negative stock": {Name: "Neg", CategoryID: category.ID, Price: "1.00", Stock: -1},
		"stock too high": {Name: "Huge", CategoryID: category.ID, Price: "1.00", Stock: 100001},
		"no category":    {Name: "Orphan", CategoryID: uuid.New(), Price: "1.00"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, input)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestCreateAndGetProductWithRelated(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	category, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Coffee", IsActive: true})
	require.NoError(t, err)

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:        "House Blend 1kg",
		CategoryID:  category.ID,
		Price:       "12",
		IsAvailable: true,
		Stock:       5,
	})
	require.NoError(t, err)
	require.Equal(t, "house-blend-1kg", created.Slug)
	require.Equal(t, "12.00", created.Price)
	require.Equal(t, "12.00 EUR", created.DisplayPrice)
	require.True(t, created.InStock)

	for _, name := range []string{"A", "B", "C", "D", "E"} {
		_, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Blend " + name, CategoryID: category.ID, Price: "3.50", IsAvailable: true, Stock: 1})
		require.NoError(t, err)
	}

	detail, err := svc.GetProduct(ctx, "house-blend-1kg")
	require.NoError(t, err)
	require.Equal(t, created.ID, detail.Product.ID)
	require.NotNil(t, detail.Product.Category)
	require.Len(t, detail.Related, 4)
}

func TestGetProductHidesUnavailable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	category, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Coffee", IsActive: true})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "Retired", CategoryID: category.ID, Price: "2.00", IsAvailable: false})
	require.NoError(t, err)

	_, err = svc.GetProduct(ctx, "retired")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListCategoriesActiveOnlyByName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, in := range []CreateCategoryInput{
		{Name: "Tea", IsActive: true},
		{Name: "Archive", IsActive: false},
		{Name: "Coffee", IsActive: true},
	} {
		_, err := svc.CreateCategory(ctx, in)
		require.NoError(t, err)
	}

	rows, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Coffee", rows[0].Name)
	require.Equal(t, "Tea", rows[1].Name)
}

func TestListProductsPageMeta(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	category, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Coffee", IsActive: true})
	require.NoError(t, err)
	for i := 0; i < 13; i++ {
		_, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Bean", CategoryID: category.ID, Price: "1.00", IsAvailable: true, Stock: 1})
		require.NoError(t, err)
	}

	first, err := svc.ListProducts(ctx, "", "", 0)
	require.NoError(t, err)
	require.Len(t, first.Products, 12)
	require.Equal(t, 1, first.Page.Page)
	require.True(t, first.Page.HasNext)
	require.Equal(t, 2, first.Page.TotalPages)
}

func TestIncreaseStockService(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.True(t, pkgerrors.IsCode(svc.IncreaseStock(ctx, uuid.New(), 0), pkgerrors.CodeValidation))
	require.True(t, pkgerrors.IsCode(svc.IncreaseStock(ctx, uuid.New(), 3), pkgerrors.CodeNotFound))
}
