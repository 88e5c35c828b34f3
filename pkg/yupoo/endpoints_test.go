package yupoo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryID(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"standard category url", "https://shop.x.yupoo.com/categories/4135412", "4135412"},
		{"with query", "https://shop.x.yupoo.com/categories/4135412?page=2", "4135412"},
		{"no categories segment", "https://shop.x.yupoo.com/albums", "albums"},
		{"trailing slash", "https://shop.x.yupoo.com/categories/99/", "99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategoryID(tt.url))
		})
	}
}

func TestPageURL(t *testing.T) {
	assert.Equal(t,
		"https://shop.x.yupoo.com/categories/4135412?page=3",
		PageURL("https://shop.x.yupoo.com/categories/4135412", 3))

	// Existing page parameter is replaced, not appended
	assert.Equal(t,
		"https://shop.x.yupoo.com/categories/4135412?page=5",
		PageURL("https://shop.x.yupoo.com/categories/4135412?page=1", 5))
}

func TestOwner(t *testing.T) {
	owner, err := Owner("https://wholesale4shoesbags.x.yupoo.com/categories/123")
	require.NoError(t, err)
	assert.Equal(t, "wholesale4shoesbags", owner)

	_, err = Owner("://not a url")
	assert.Error(t, err)
}

func TestParentDomain(t *testing.T) {
	assert.Equal(t, "x.yupoo.com", ParentDomain("https://shop.x.yupoo.com/categories/1"))
	assert.Equal(t, "localhost", ParentDomain("http://localhost:8080/categories/1"))
}

func TestAuthURL(t *testing.T) {
	u, err := AuthURL("https://shop.x.yupoo.com/categories/1", "shop", "p@ss word")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.x.yupoo.com/api/web/users/shop?password=p%40ss+word", u)
}
