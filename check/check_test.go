package check

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfaceguard/engine/asset"
	"github.com/surfaceguard/engine/finding"
)

func TestDefaultCatalogSizesMatchAssetSteps(t *testing.T) {
	catalog := Default(Options{})

	for _, typ := range asset.AllTypes() {
		checks := catalog.For(typ)
		assert.Len(t, checks, typ.Steps(), "check count for %s must match its step count", typ)
		for _, c := range checks {
			assert.NotEmpty(t, c.ID)
			assert.NotNil(t, c.Run)
		}
	}
}

func TestDefaultCatalogOrder(t *testing.T) {
	catalog := Default(Options{})

	var ids []string
	for _, c := range catalog.For(asset.TypeDomain) {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"spf", "dmarc", "dkim", "security-headers", "tls-cert"}, ids)
}

func TestCatalogUnknownType(t *testing.T) {
	catalog := Default(Options{})
	assert.Nil(t, catalog.For(asset.Type("bogus")))
}

func TestCustomCatalog(t *testing.T) {
	ran := false
	catalog := New(map[asset.Type][]Check{
		asset.TypeEmail: {{
			ID: "stub",
			Run: func(ctx context.Context, tgt Target) []*finding.Finding {
				ran = true
				return nil
			},
		}},
	})

	checks := catalog.For(asset.TypeEmail)
	require.Len(t, checks, 1)
	checks[0].Run(context.Background(), Target{})
	assert.True(t, ran)
}
