package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const categoryURL = "https://shop.x.yupoo.com/categories/4135412"

func TestResolveCategoryNameFromHeaderText(t *testing.T) {
	d := doc(t, `<body><div>分类"春季新款"下的相册</div></body>`)

	name, ok := ResolveCategoryName(d, categoryURL)
	require.True(t, ok)
	assert.Equal(t, "春季新款", name)
}

func TestResolveCategoryNameFromTitle(t *testing.T) {
	d := doc(t, `<head><title>分类'Sneakers 2024'下的相册</title></head><body></body>`)

	name, ok := ResolveCategoryName(d, categoryURL)
	require.True(t, ok)
	assert.Equal(t, "Sneakers 2024", name)
}

func TestResolveCategoryNameFromBreadcrumbLink(t *testing.T) {
	d := doc(t, `<body>
		<a href="/categories/4135412?page=2">2</a>
		<a href="/categories/4135412?isSubCate=false">冬季外套系列</a>
	</body>`)

	name, ok := ResolveCategoryName(d, categoryURL)
	require.True(t, ok)
	assert.Equal(t, "冬季外套系列", name)
}

func TestResolveCategoryNameIgnoresLanguageLinks(t *testing.T) {
	d := doc(t, `<body>
		<a href="/categories/4135412">english</a>
		<a href="/categories/4135412">简体中文</a>
		<a href="/categories/4135412">Bags Collection</a>
	</body>`)

	name, ok := ResolveCategoryName(d, categoryURL)
	require.True(t, ok)
	assert.Equal(t, "Bags Collection", name)
}

func TestResolveCategoryNameFromSeriesHeading(t *testing.T) {
	d := doc(t, `<body><h2>欢迎来到 运动鞋系列 专区</h2></body>`)

	name, ok := ResolveCategoryName(d, categoryURL)
	require.True(t, ok)
	assert.Equal(t, "运动鞋系列", name)
}

func TestResolveCategoryNameFromBreadcrumbContainer(t *testing.T) {
	d := doc(t, `<body>
		<ol class="showindex__breadcrumb">
			<li><a href="/categories/999">其他系列</a></li>
		</ol>
	</body>`)

	name, ok := ResolveCategoryName(d, categoryURL)
	require.True(t, ok)
	assert.Equal(t, "其他系列", name)
}

func TestResolveCategoryNameAllTiersFail(t *testing.T) {
	d := doc(t, `<body><p>nothing useful here</p></body>`)

	name, ok := ResolveCategoryName(d, categoryURL)
	assert.False(t, ok)
	assert.Empty(t, name)
}

func TestFallbackCategoryName(t *testing.T) {
	assert.Equal(t, "Category_4135412", FallbackCategoryName(categoryURL))
	assert.Equal(t, "Category_77", FallbackCategoryName("https://shop.x.yupoo.com/77"))
}

func TestResolveCategoryNameShortLinkTextRejected(t *testing.T) {
	// Breadcrumb tier requires at least 3 characters
	d := doc(t, `<body><a href="/categories/4135412">ab</a></body>`)

	_, ok := ResolveCategoryName(d, categoryURL)
	assert.False(t, ok)
}
