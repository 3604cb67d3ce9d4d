package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bananaslides/internal/domain"
)

func TestParsePages(t *testing.T) {
	pages, err := parsePages([]string{"cover=uploads/1.png", "uploads/2.png"})

	require.NoError(t, err)
	assert.Equal(t, []domain.PageRef{
		{PageID: "cover", ImageKey: "uploads/1.png"},
		{PageID: "page-2", ImageKey: "uploads/2.png"},
	}, pages)

	_, err = parsePages([]string{"cover="})
	assert.Error(t, err)
}

func TestParseEraseSets(t *testing.T) {
	sets, err := parseEraseSets([]string{"p1=t1, im2", "p2="})

	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"p1": {"t1", "im2"}, "p2": {}}, sets)

	none, err := parseEraseSets(nil)
	require.NoError(t, err)
	assert.Nil(t, none, "no flags means the server-side session decides")

	_, err = parseEraseSets([]string{"t1,t2"})
	assert.Error(t, err)
}
