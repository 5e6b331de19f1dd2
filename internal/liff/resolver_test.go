package liff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pointline/liff-portal/internal/config"
	"github.com/pointline/liff-portal/internal/liff"
)

func testLIFFConfig() config.LIFF {
	return config.LIFF{
		DefaultID: "999-default",
		Apps: []config.App{
			{ID: "111-points", PathPrefix: "/points", Name: "Points"},
			{ID: "222-coupon", PathPrefix: "/coupon", Name: "Coupon"},
			{ID: "333-profile", PathPrefix: "/profile", Name: "Profile"},
			{ID: "444-setting", PathPrefix: "/setting", Name: "Setting"},
		},
	}
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "exact prefix", path: "/points", want: "111-points"},
		{name: "nested path", path: "/coupon/123", want: "222-coupon"},
		{name: "unknown path falls back to default", path: "/dashboard", want: "999-default"},
		{name: "root falls back to default", path: "/", want: "999-default"},
	}

	r := liff.NewResolver(testLIFFConfig())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.path))
		})
	}
}

func TestResolver_FirstMatchWins(t *testing.T) {
	r := liff.NewResolver(config.LIFF{
		Apps: []config.App{
			{ID: "broad", PathPrefix: "/points"},
			{ID: "narrow", PathPrefix: "/points/vip"},
		},
	})

	// ordered scan: the broad prefix shadows the narrower one behind it
	assert.Equal(t, "broad", r.Resolve("/points/vip"))
}

func TestResolver_IsPure(t *testing.T) {
	r := liff.NewResolver(testLIFFConfig())

	// repeated and interleaved calls must not influence each other
	for range 3 {
		assert.Equal(t, "111-points", r.Resolve("/points"))
		assert.Equal(t, "999-default", r.Resolve("/nowhere"))
		assert.True(t, r.RequiresBootstrap("/setting/notifications"))
		assert.False(t, r.RequiresBootstrap("/dashboard"))
	}
}

func TestResolver_EmptyDefault(t *testing.T) {
	r := liff.NewResolver(config.LIFF{
		Apps: []config.App{{ID: "111-points", PathPrefix: "/points"}},
	})

	// empty default means no identity bootstrap required
	assert.Equal(t, "", r.Resolve("/dashboard"))
	assert.False(t, r.RequiresBootstrap("/dashboard"))
}

func TestResolver_AppFor(t *testing.T) {
	r := liff.NewResolver(testLIFFConfig())

	app, ok := r.AppFor("/profile/edit")
	assert.True(t, ok)
	assert.Equal(t, "Profile", app.Name)

	_, ok = r.AppFor("/admin")
	assert.False(t, ok)
}
