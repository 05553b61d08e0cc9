package repository

import (
	"context"
	"time"

	"eventsocial/internal/models"
	"eventsocial/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint, limit, offset int, viewerID uint) ([]*models.Post, error)
	Feed(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error)
	ListInterested(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error)
	ListAttended(ctx context.Context, userID uint, now time.Time, limit, offset int) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error

	AddInterest(ctx context.Context, postID, userID uint) (bool, error)
	RemoveInterest(ctx context.Context, postID, userID uint) (bool, error)
	IsInterested(ctx context.Context, postID, userID uint) (bool, error)
	AddAttendance(ctx context.Context, postID, userID uint) (bool, error)
	RemoveAttendance(ctx context.Context, postID, userID uint) (bool, error)
	HasAttended(ctx context.Context, postID, userID uint) (bool, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("insert", "posts")()

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Author", publicUser).
		First(&post, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Post", id)
	}

	posts := []*models.Post{&post}
	if err := r.decorate(ctx, r.db, posts, viewerID); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Post, error) {
	return r.list(ctx, viewerID, limit, offset, func(db *gorm.DB) *gorm.DB {
		return db.Order("posts.created_at DESC")
	})
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, limit, offset int, viewerID uint) ([]*models.Post, error) {
	return r.list(ctx, viewerID, limit, offset, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.author_id = ?", authorID).Order("posts.created_at DESC")
	})
}

// Feed lists posts by authors viewerID follows. Following nobody yields an empty feed.
func (r *postRepository) Feed(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, error) {
	return r.list(ctx, viewerID, limit, offset, func(db *gorm.DB) *gorm.DB {
		followees := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.Follow{}).
			Select("followee_id").
			Where("follower_id = ?", viewerID)
		return db.Where("posts.author_id IN (?)", followees).Order("posts.created_at DESC")
	})
}

// ListInterested lists event posts userID is interested in, soonest first.
func (r *postRepository) ListInterested(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, error) {
	return r.list(ctx, userID, limit, offset, func(db *gorm.DB) *gorm.DB {
		return db.Joins("JOIN post_interests ON post_interests.post_id = posts.id").
			Where("post_interests.user_id = ?", userID).
			Order("posts.event_date_time ASC").
			Order("posts.created_at DESC")
	})
}

// ListAttended lists past events userID attended, most recent first.
func (r *postRepository) ListAttended(ctx context.Context, userID uint, now time.Time, limit, offset int) ([]*models.Post, error) {
	return r.list(ctx, userID, limit, offset, func(db *gorm.DB) *gorm.DB {
		return db.Joins("JOIN post_attendances ON post_attendances.post_id = posts.id").
			Where("post_attendances.user_id = ?", userID).
			Where("posts.event_date_time <= ?", now).
			Order("posts.event_date_time DESC")
	})
}

func (r *postRepository) list(ctx context.Context, viewerID uint, limit, offset int, scope func(*gorm.DB) *gorm.DB) ([]*models.Post, error) {
	defer observability.TrackQuery("select", "posts")()
	limit, offset = clampPage(limit, offset)

	db := readDB(r.db)
	var posts []*models.Post
	err := db.WithContext(ctx).
		Scopes(scope).
		Preload("Author", publicUser).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.decorate(ctx, db, posts, viewerID); err != nil {
		return nil, err
	}
	return posts, nil
}

// decorate fills the viewer-relative interest and attendance flags.
func (r *postRepository) decorate(ctx context.Context, db *gorm.DB, posts []*models.Post, viewerID uint) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}

	var interested, attended []uint
	if err := db.WithContext(ctx).Model(&models.PostInterest{}).
		Where("user_id = ? AND post_id IN ?", viewerID, ids).
		Pluck("post_id", &interested).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.WithContext(ctx).Model(&models.PostAttendance{}).
		Where("user_id = ? AND post_id IN ?", viewerID, ids).
		Pluck("post_id", &attended).Error; err != nil {
		return models.NewInternalError(err)
	}

	in := toSet(interested)
	at := toSet(attended)
	for _, p := range posts {
		_, p.IsInterested = in[p.ID]
		_, p.HasAttended = at[p.ID]
	}
	return nil
}

func toSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Update writes the author-editable columns of post.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(post).
		Select("title", "description", "media_urls", "is_event", "event_date_time", "location").
		Updates(post).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

// AddInterest adds userID to the interested set and reports whether it was
// added. The counter moves only when the membership row changes.
func (r *postRepository) AddInterest(ctx context.Context, postID, userID uint) (bool, error) {
	var added bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		added, err = addInterest(tx, postID, userID)
		return err
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return added, nil
}

func (r *postRepository) RemoveInterest(ctx context.Context, postID, userID uint) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostInterest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return tx.Model(&models.Post{}).
			Where("id = ? AND interested_count > 0", postID).
			UpdateColumn("interested_count", gorm.Expr("interested_count - 1")).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return removed, nil
}

// addInterest runs inside tx so callers can combine it with other writes.
func addInterest(tx *gorm.DB, postID, userID uint) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PostInterest{PostID: postID, UserID: userID})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	err := tx.Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("interested_count", gorm.Expr("interested_count + 1")).Error
	return err == nil, err
}

func (r *postRepository) IsInterested(ctx context.Context, postID, userID uint) (bool, error) {
	return r.exists(ctx, &models.PostInterest{}, postID, userID)
}

func (r *postRepository) AddAttendance(ctx context.Context, postID, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PostAttendance{PostID: postID, UserID: userID})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *postRepository) RemoveAttendance(ctx context.Context, postID, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.PostAttendance{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *postRepository) HasAttended(ctx context.Context, postID, userID uint) (bool, error) {
	return r.exists(ctx, &models.PostAttendance{}, postID, userID)
}

func (r *postRepository) exists(ctx context.Context, model interface{}, postID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(model).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}
