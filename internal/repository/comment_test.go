package repository

import (
	"context"
	"testing"

	"eventsocial/internal/models"
	"eventsocial/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_CreateAndList(t *testing.T) {
	db := testutil.NewTestDB(t)
	comments := NewCommentRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	reader := testutil.CreateUser(t, db, "reader")
	post := testutil.CreatePost(t, db, author, "Hello")

	first := &models.Comment{PostID: post.ID, AuthorID: reader.ID, Content: "first"}
	require.NoError(t, comments.Create(ctx, first))
	require.NotNil(t, first.Author)
	assert.Equal(t, "reader", first.Author.Handle())

	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: post.ID, AuthorID: author.ID, Content: "second"}))

	stored, err := posts.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CommentCount)

	list, err := comments.ListByPost(ctx, post.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Content)
	require.NotNil(t, list[1].Author)
	assert.Equal(t, "reader", list[1].Author.Handle())
}
