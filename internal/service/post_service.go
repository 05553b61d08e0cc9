package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventsocial/internal/cache"
	"eventsocial/internal/models"
	"eventsocial/internal/repository"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 1000
)

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	media    *MediaService
	now      func() time.Time
}

type CreatePostInput struct {
	AuthorID      uint
	Title         string
	Description   string
	IsEvent       bool
	EventDateTime *time.Time
	Location      *string
	Media         []MediaFile
}

// UpdatePostInput is a partial update; nil fields keep their value. New
// media replaces the existing list.
type UpdatePostInput struct {
	ActorID            uint
	PostID             uint
	Title              *string
	Description        *string
	IsEvent            *bool
	EventDateTime      *time.Time
	Location           *string
	ClearExistingMedia bool
	Media              []MediaFile
}

// InterestResult is returned by ToggleInterest.
type InterestResult struct {
	Interested      bool `json:"interested"`
	InterestedCount int  `json:"interestedCount"`
}

func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository, media *MediaService) *PostService {
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
		media:    media,
		now:      time.Now,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	post := &models.Post{
		AuthorID:      in.AuthorID,
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		IsEvent:       in.IsEvent,
		EventDateTime: in.EventDateTime,
		Location:      in.Location,
		MediaURLs:     []string{},
	}
	if post.Title == "" || post.Description == "" {
		return nil, models.NewValidationError("Title and description are required")
	}
	if err := validatePost(post); err != nil {
		return nil, err
	}
	if len(in.Media) > 0 {
		urls, err := s.uploadMedia(ctx, in.Media)
		if err != nil {
			return nil, err
		}
		post.MediaURLs = urls
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, in.AuthorID)
}

// GetPost returns postID with viewerID's interest and attendance flags. The
// viewer-independent part is cached under PostKey; writes that change it
// invalidate the key.
func (s *PostService) GetPost(ctx context.Context, postID, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := cache.CacheAside(ctx, cache.PostKey(postID), &post, cache.PostTTL, func() error {
		p, err := s.postRepo.GetByID(ctx, postID, 0)
		if err != nil {
			return err
		}
		post = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	post.IsInterested, post.HasAttended = false, false
	if viewerID == 0 {
		return &post, nil
	}

	if post.IsInterested, err = s.postRepo.IsInterested(ctx, postID, viewerID); err != nil {
		return nil, err
	}
	if post.HasAttended, err = s.postRepo.HasAttended(ctx, postID, viewerID); err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *PostService) ListPosts(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Post, error) {
	return s.postRepo.List(ctx, limit, offset, viewerID)
}

// Feed lists posts by accounts viewerID follows. It is empty when viewerID follows no one.
func (s *PostService) Feed(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	return s.postRepo.Feed(ctx, viewerID, limit, offset)
}

func (s *PostService) ListByAuthor(ctx context.Context, authorID uint, limit, offset int, viewerID uint) ([]*models.Post, error) {
	if _, err := s.userRepo.GetByID(ctx, authorID); err != nil {
		return nil, err
	}
	return s.postRepo.ListByAuthor(ctx, authorID, limit, offset, viewerID)
}

func (s *PostService) ListInterested(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error) {
	return s.postRepo.ListInterested(ctx, userID, limit, offset)
}

func (s *PostService) ListAttended(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error) {
	return s.postRepo.ListAttended(ctx, userID, s.now().UTC(), limit, offset)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.authorOnly(ctx, in.PostID, in.ActorID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		post.Title = strings.TrimSpace(*in.Title)
		if post.Title == "" {
			return nil, models.NewValidationError("Title cannot be empty")
		}
	}
	if in.Description != nil {
		post.Description = strings.TrimSpace(*in.Description)
		if post.Description == "" {
			return nil, models.NewValidationError("Description cannot be empty")
		}
	}
	if in.IsEvent != nil {
		post.IsEvent = *in.IsEvent
	}
	if in.EventDateTime != nil {
		post.EventDateTime = in.EventDateTime
	}
	if in.Location != nil {
		post.Location = in.Location
	}
	if err := validatePost(post); err != nil {
		return nil, err
	}

	if in.ClearExistingMedia {
		post.MediaURLs = []string{}
	}
	if len(in.Media) > 0 {
		urls, err := s.uploadMedia(ctx, in.Media)
		if err != nil {
			return nil, err
		}
		post.MediaURLs = urls
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, post.ID)
	return s.postRepo.GetByID(ctx, post.ID, in.ActorID)
}

func (s *PostService) DeletePost(ctx context.Context, actorID, postID uint) error {
	if _, err := s.authorOnly(ctx, postID, actorID); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return err
	}
	cache.InvalidatePost(ctx, postID)
	return nil
}

// ToggleInterest adds userID to the interested set of an upcoming event, or
// removes them if already present.
func (s *PostService) ToggleInterest(ctx context.Context, postID, userID uint) (*InterestResult, error) {
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !post.IsEvent {
		return nil, models.NewValidationError("Interest can only be set on event posts")
	}
	if post.EventStarted(s.now()) {
		return nil, models.NewValidationError("Cannot mark interest after event starts.")
	}

	interested := true
	if post.IsInterested {
		if _, err := s.postRepo.RemoveInterest(ctx, postID, userID); err != nil {
			return nil, err
		}
		interested = false
	} else if _, err := s.postRepo.AddInterest(ctx, postID, userID); err != nil {
		return nil, err
	}

	updated, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, postID)
	return &InterestResult{Interested: interested, InterestedCount: updated.InterestedCount}, nil
}

// MarkAttendance records that userID attended a started event they were interested in.
func (s *PostService) MarkAttendance(ctx context.Context, postID, userID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return err
	}
	return s.markAttendance(ctx, post, userID)
}

func (s *PostService) markAttendance(ctx context.Context, post *models.Post, userID uint) error {
	if !post.IsEvent {
		return models.NewValidationError("Attendance can only be marked on event posts")
	}
	if !post.EventStarted(s.now()) {
		return models.NewValidationError("Cannot mark attendance before event starts")
	}
	if !post.IsInterested {
		return models.NewForbiddenError("You must be interested before the event to mark attendance.")
	}
	added, err := s.postRepo.AddAttendance(ctx, post.ID, userID)
	if err != nil {
		return err
	}
	if !added {
		return models.NewConflictError("Already marked as attended")
	}
	return nil
}

// ToggleAttendance unmarks attendance when present, otherwise marks it under
// the same rules as MarkAttendance. It returns the resulting state.
func (s *PostService) ToggleAttendance(ctx context.Context, postID, userID uint) (bool, error) {
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return false, err
	}
	if post.HasAttended {
		if _, err := s.postRepo.RemoveAttendance(ctx, postID, userID); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := s.markAttendance(ctx, post, userID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostService) authorOnly(ctx context.Context, postID, actorID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, actorID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actorID {
		return nil, models.NewForbiddenError("Unauthorized: You are not the author.")
	}
	return post, nil
}

func (s *PostService) uploadMedia(ctx context.Context, files []MediaFile) ([]string, error) {
	if s.media == nil {
		return nil, models.NewValidationError("Uploads are not enabled")
	}
	return s.media.UploadAll(ctx, FolderPosts, files)
}

func validatePost(post *models.Post) error {
	if len([]rune(post.Title)) > maxTitleLen {
		return models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", maxTitleLen))
	}
	if len([]rune(post.Description)) > maxDescriptionLen {
		return models.NewValidationError(fmt.Sprintf("Description too long (max %d characters)", maxDescriptionLen))
	}
	if post.IsEvent {
		if post.EventDateTime == nil || post.EventDateTime.IsZero() {
			return models.NewValidationError("eventDateTime is required for event posts")
		}
		utc := post.EventDateTime.UTC()
		post.EventDateTime = &utc
		if post.Location != nil {
			loc := strings.TrimSpace(*post.Location)
			post.Location = &loc
		}
	}
	post.ClearEventFields()
	return nil
}
