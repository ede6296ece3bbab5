package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTagName(t *testing.T) {
	assert.NoError(t, ValidateTagName("vacation"))
	assert.NoError(t, ValidateTagName("summer 2024"))
	assert.Error(t, ValidateTagName(""))
	assert.Error(t, ValidateTagName("   "))
	assert.Error(t, ValidateTagName("a,b"))
}

func TestTagAssignmentValidate(t *testing.T) {
	a := TagAssignment{EntityId: "e1", Tags: []string{"beach", "vacation"}}
	assert.NoError(t, a.Validate())

	t.Run("EmptyTagsIsValid", func(t *testing.T) {
		a := TagAssignment{EntityId: "e1"}
		assert.NoError(t, a.Validate())
	})

	t.Run("MissingEntity", func(t *testing.T) {
		a := TagAssignment{Tags: []string{"beach"}}
		assert.Error(t, a.Validate())
	})

	t.Run("DuplicateTag", func(t *testing.T) {
		a := TagAssignment{EntityId: "e1", Tags: []string{"beach", "beach"}}
		assert.Error(t, a.Validate())
	})
}

func TestTagQueryValidate(t *testing.T) {
	q := TagQuery{IncludeGroups: [][]string{{"vacation", "beach"}}, Exclude: []string{"work"}}
	assert.NoError(t, q.Validate())

	t.Run("ExcludeOnly", func(t *testing.T) {
		q := TagQuery{Exclude: []string{"work"}}
		assert.NoError(t, q.Validate())
	})

	t.Run("NoCriteria", func(t *testing.T) {
		q := TagQuery{}
		assert.Error(t, q.Validate())
	})

	t.Run("EmptyGroup", func(t *testing.T) {
		q := TagQuery{IncludeGroups: [][]string{{}}}
		assert.Error(t, q.Validate())
	})

	t.Run("DuplicateInGroup", func(t *testing.T) {
		q := TagQuery{IncludeGroups: [][]string{{"beach", "beach"}}}
		assert.Error(t, q.Validate())
	})

	t.Run("IncludeAndExcludeOverlap", func(t *testing.T) {
		q := TagQuery{IncludeGroups: [][]string{{"beach"}}, Exclude: []string{"beach"}}
		assert.Error(t, q.Validate())
	})
}
