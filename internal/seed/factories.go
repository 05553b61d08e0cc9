// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"eventsocial/internal/middleware"
	"eventsocial/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the plain password of every seeded user.
const DefaultPassword = "password123"

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	rnd  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB. db may be
// nil when opts.DryRun is set.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Factory{
		db:   db,
		opts: opts,
		// #nosec G404: acceptable for seeding
		rnd:    rand.New(rand.NewSource(seed)),
		nextID: 1000,
	}
}

func (f *Factory) maxDays() int {
	if f.opts.MaxDays <= 0 {
		return 90
	}
	return f.opts.MaxDays
}

// pastTime returns a random instant within the last MaxDays.
func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.rnd.Intn(f.maxDays()))*24*time.Hour +
		time.Duration(f.rnd.Intn(24))*time.Hour +
		time.Duration(f.rnd.Intn(60))*time.Minute
	return time.Now().UTC().Add(-back)
}

func (f *Factory) persist(kind string, value any, id *uint) error {
	if f.opts.DryRun {
		f.nextID++
		*id = f.nextID
		middleware.Logger.Debug().Str("kind", kind).Uint("id", *id).Msg("[dry-run] skipped insert")
		return nil
	}
	return f.db.Create(value).Error
}

// Username returns a random handle that passes username validation.
func (f *Factory) Username() string {
	first := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		return -1
	}, strings.ToLower(gofakeit.FirstName()))
	if first == "" {
		first = "user"
	}
	name := fmt.Sprintf("%s_%d", first, f.rnd.Intn(100000))
	if len(name) > 30 {
		name = name[len(name)-30:]
	}
	return strings.Trim(name, "_-")
}

// BuildUser returns an unsaved verified user. Optional overrides run last.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	username := f.Username()
	user := &models.User{
		Email:           username + "@example.com",
		Username:        &username,
		UserType:        models.UserTypePersonal,
		IsVerified:      true,
		Bio:             truncate(gofakeit.Sentence(10), 200),
		ProfileImageURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
	}
	if f.rnd.Intn(10) == 0 {
		user.UserType = models.UserTypeCorporate
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		user.Password = DefaultPassword
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.Password = string(hash)
	}

	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// CreateUser builds and persists a verified user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(overrides...)
	if err != nil {
		return nil, err
	}
	if err := f.persist("user", user, &user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a plain post by author with a realistic created_at
// spread, without persisting it.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		AuthorID:    author.ID,
		Title:       truncate(strings.TrimSuffix(gofakeit.Sentence(5), "."), 100),
		Description: truncate(gofakeit.Paragraph(1, 3, 8, "\n"), 1000),
		CreatedAt:   f.pastTime(),
	}
	if f.rnd.Float32() < 0.4 {
		post.MediaURLs = []string{fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())}
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// BuildEvent constructs an event post by author starting at start.
func (f *Factory) BuildEvent(author *models.User, start time.Time, overrides ...func(*models.Post)) *models.Post {
	start = start.UTC()
	location := fmt.Sprintf("%s, %s", gofakeit.Street(), gofakeit.City())
	post := f.BuildPost(author, func(p *models.Post) {
		p.IsEvent = true
		p.EventDateTime = &start
		p.Location = &location
		if p.CreatedAt.After(start) {
			p.CreatedAt = start.Add(-24 * time.Hour)
		}
	})
	for _, override := range overrides {
		override(post)
	}
	return post
}

// EventStart picks a start time: upcoming events are within the next
// MaxDays, past ones within the last MaxDays.
func (f *Factory) EventStart(upcoming bool) time.Time {
	if upcoming {
		ahead := time.Duration(1+f.rnd.Intn(f.maxDays()))*24*time.Hour +
			time.Duration(f.rnd.Intn(24))*time.Hour
		return time.Now().UTC().Add(ahead).Truncate(time.Hour)
	}
	return f.pastTime().Truncate(time.Hour)
}

// CreatePostsBatch persists multiple posts in a single DB call when possible.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		middleware.Logger.Debug().Int("count", len(posts)).Msg("[dry-run] CreatePostsBatch skipped insert")
		return nil
	}
	return f.db.CreateInBatches(posts, 100).Error
}

// CreatePost builds and persists a plain post.
func (f *Factory) CreatePost(author *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, overrides...)
	if err := f.persist("post", post, &post.ID); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateEvent builds and persists an event post.
func (f *Factory) CreateEvent(author *models.User, start time.Time, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildEvent(author, start, overrides...)
	if err := f.persist("event", post, &post.ID); err != nil {
		return nil, err
	}
	return post, nil
}

// BuildComment constructs a comment by author on post.
func (f *Factory) BuildComment(author *models.User, post *models.Post) *models.Comment {
	return &models.Comment{
		PostID:   post.ID,
		AuthorID: author.ID,
		Content:  truncate(gofakeit.Sentence(8+f.rnd.Intn(10)), 1000),
	}
}

// BuildMessage constructs a text message from sender in chat.
func (f *Factory) BuildMessage(chat *models.Chat, sender *models.User) *models.Message {
	return &models.Message{
		ChatID:   chat.ID,
		SenderID: sender.ID,
		Type:     models.MessageTypeText,
		Content:  gofakeit.Sentence(4 + f.rnd.Intn(10)),
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max])
}
