package service

import (
	"context"
	"fmt"
	"strings"

	"eventsocial/internal/cache"
	"eventsocial/internal/models"
	"eventsocial/internal/repository"
)

const maxCommentLen = 1000

type CommentService struct {
	commentRepo   repository.CommentRepository
	postRepo      repository.PostRepository
	notifications *NotificationService
}

type CreateCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	notifications *NotificationService,
) *CommentService {
	return &CommentService{
		commentRepo:   commentRepo,
		postRepo:      postRepo,
		notifications: notifications,
	}
}

// CreateComment adds a comment and notifies the post author unless they
// commented on their own post.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len([]rune(in.Content)) > maxCommentLen {
		return nil, models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", maxCommentLen))
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID, 0)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content:  in.Content,
		AuthorID: in.UserID,
		PostID:   in.PostID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, post.ID)

	if post.AuthorID != in.UserID {
		s.notifications.notifyQuietly(ctx, NotifyInput{
			RecipientID:     post.AuthorID,
			SenderID:        &in.UserID,
			Type:            models.NotificationNewComment,
			Message:         fmt.Sprintf("%s commented on your post \"%s\"", displayName(comment.Author), post.Title),
			RelatedEntityID: &post.ID,
		})
	}
	return comment, nil
}

func (s *CommentService) ListComments(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID, limit, offset)
}
