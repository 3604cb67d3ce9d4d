package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bananaslides/internal/domain"
)

func sampleTree() []domain.LayoutElement {
	return []domain.LayoutElement{
		{ID: "a", Type: domain.ElementText, Children: []domain.LayoutElement{
			{ID: "a1", Type: domain.ElementText},
			{ID: "a2", Type: domain.ElementOther, Children: []domain.LayoutElement{
				{ID: "a2x", Type: domain.ElementImage},
			}},
		}},
		{ID: "b", Type: domain.ElementTable},
		{ID: "c", Type: domain.ElementImage, Children: []domain.LayoutElement{
			{ID: "c1", Type: domain.ElementText},
		}},
	}
}

func TestFlatten_DepthFirstParentBeforeChildren(t *testing.T) {
	a := &domain.LayoutAnalysis{Elements: sampleTree()}

	assert.Equal(t, []string{"a", "a1", "a2", "a2x", "b", "c", "c1"}, a.Order())
}

func TestFlatten_Idempotent(t *testing.T) {
	a := &domain.LayoutAnalysis{Elements: sampleTree()}

	first := a.Order()
	second := a.Order()
	third := a.Order()

	assert.Equal(t, first, second)
	assert.Equal(t, second, third)
}

func TestFlatten_Empty(t *testing.T) {
	assert.Empty(t, domain.Flatten(nil))
}

func TestFlatten_PointersIntoTree(t *testing.T) {
	tree := sampleTree()
	flat := domain.Flatten(tree)

	flat[1].Content = "changed"

	assert.Equal(t, "changed", tree[0].Children[0].Content)
}

func TestIndex_CoversEveryNode(t *testing.T) {
	a := &domain.LayoutAnalysis{Elements: sampleTree()}
	idx := a.Index()

	assert.Len(t, idx, 7)
	assert.Equal(t, domain.ElementImage, idx["a2x"].Type)
}

func TestBBox_Clamp(t *testing.T) {
	b := domain.BBox{X0: 120, Y0: -5, X1: -10, Y1: 40}.Clamp(100, 30)

	assert.Equal(t, domain.BBox{X0: 0, Y0: 0, X1: 100, Y1: 30}, b)
	assert.True(t, b.Within(100, 30))
}

func TestBBox_Empty(t *testing.T) {
	assert.True(t, domain.BBox{X0: 5, Y0: 5, X1: 5, Y1: 10}.Empty())
	assert.False(t, domain.BBox{X0: 0, Y0: 0, X1: 1, Y1: 1}.Empty())
}

func TestRecommended(t *testing.T) {
	assert.True(t, domain.Recommended(domain.ElementText))
	assert.True(t, domain.Recommended(domain.ElementTable))
	assert.False(t, domain.Recommended(domain.ElementImage))
	assert.False(t, domain.Recommended(domain.ElementOther))
}
