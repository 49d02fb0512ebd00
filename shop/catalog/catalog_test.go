package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/coursebot/shop/domain"
	"github.com/m3rciful/coursebot/shop/store/memstore"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1500", "1500", true},
		{"1500.50", "1500.5", true},
		{"1 500,50", "1500.5", true},
		{"1 500", "1500", true},
		{"", "", false},
		{"abc", "", false},
		{"0", "", false},
		{"-5", "", false},
		{"10.555", "", false},
		{"100000000", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParsePrice(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), got.String())
		})
	}
}

func TestValidateMaterialURL(t *testing.T) {
	assert.NoError(t, ValidateMaterialURL("https://example.com/course"))
	assert.NoError(t, ValidateMaterialURL(" http://example.com "))
	assert.Error(t, ValidateMaterialURL("example.com/course"))
	assert.Error(t, ValidateMaterialURL("ftp://example.com"))
	assert.Error(t, ValidateMaterialURL(""))
}

func TestAddAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memstore.New().Catalog())

	_, err := svc.Add(ctx, NewCourse{Title: "  ", Price: decimal.NewFromInt(10), MaterialURL: "https://x.io"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	c, err := svc.Add(ctx, NewCourse{
		Title:       "  Go basics ",
		Description: "intro",
		Price:       decimal.RequireFromString("990.00"),
		MaterialURL: "https://example.com/go",
	})
	require.NoError(t, err)
	assert.Equal(t, "Go basics", c.Title)
	assert.True(t, c.Active)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, svc.SoftDelete(ctx, c.ID))
	require.NoError(t, svc.SoftDelete(ctx, c.ID))
	active, err = svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	assert.ErrorIs(t, svc.SoftDelete(ctx, 404), domain.ErrNotFound)
}

const seedYAML = `courses:
  - title: Go basics
    description: First steps
    price: "1000.00"
    material_url: https://example.com/a
  - title: Go concurrency
    price: "1500"
    material_url: https://example.com/b
`

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSeederFillsEmptyCatalogOnce(t *testing.T) {
	ctx := context.Background()
	repo := memstore.New().Catalog()
	seeder := Seeder(writeSeed(t, seedYAML))

	require.NoError(t, seeder.Seed(ctx, repo))
	require.NoError(t, seeder.Seed(ctx, repo))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSeederRejectsBadFile(t *testing.T) {
	ctx := context.Background()
	path := writeSeed(t, "courses:\n  - title: Broken\n    price: \"-1\"\n    material_url: https://x.io\n")
	err := Seeder(path).Seed(ctx, memstore.New().Catalog())
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = Seeder(path).Seed(ctx, "not a repository")
	assert.Error(t, err)
}
