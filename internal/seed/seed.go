package seed

import (
	"context"
	"fmt"
	"time"

	"eventsocial/internal/database"
	"eventsocial/internal/middleware"
	"eventsocial/internal/models"
	"eventsocial/internal/repository"

	"gorm.io/gorm"
)

// Options configures the seeder and its factory.
type Options struct {
	NumUsers int `yaml:"users"`
	NumPosts int `yaml:"posts"`
	// EventRatio is the share of posts created as events, between 0 and 1.
	EventRatio float64 `yaml:"event_ratio"`
	// UpcomingRatio is the share of events that start in the future.
	UpcomingRatio   float64 `yaml:"upcoming_ratio"`
	FollowsPerUser  int     `yaml:"follows_per_user"`
	InterestPerPost int     `yaml:"interest_per_event"`
	CommentsPerPost int     `yaml:"comments_per_post"`
	MessagesPerChat int     `yaml:"messages_per_chat"`
	MaxDays         int     `yaml:"max_days"`
	ShouldClean     bool    `yaml:"clean"`
	SkipBcrypt      bool    `yaml:"skip_bcrypt"`
	DryRun          bool    `yaml:"dry_run"`
	RandomSeed      int64   `yaml:"random_seed"`
}

// DefaultOptions returns the options used when no preset is given.
func DefaultOptions() Options {
	return Options{
		NumUsers:        50,
		NumPosts:        200,
		EventRatio:      0.4,
		UpcomingRatio:   0.6,
		FollowsPerUser:  8,
		InterestPerPost: 6,
		CommentsPerPost: 3,
		MessagesPerChat: 5,
		MaxDays:         60,
		ShouldClean:     true,
	}
}

// Result summarizes a seeding run.
type Result struct {
	Users    int
	Follows  int
	Posts    int
	Events   int
	Interest int
	Attended int
	Comments int
	Chats    int
	Messages int
}

// Seeder populates a database through the repositories so counters and join
// tables stay consistent.
type Seeder struct {
	db       *gorm.DB
	opts     Options
	factory  *Factory
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	chats    repository.ChatRepository
}

// NewSeeder creates a seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{
		db:       db,
		opts:     opts,
		factory:  NewFactory(db, opts),
		users:    repository.NewUserRepository(db),
		posts:    repository.NewPostRepository(db),
		comments: repository.NewCommentRepository(db),
		chats:    repository.NewChatRepository(db),
	}
}

// Factory exposes the seeder's entity factory.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// ClearAll deletes every row of every persistent model, children first.
func (s *Seeder) ClearAll() error {
	if s.opts.DryRun {
		middleware.Logger.Info().Msg("[dry-run] ClearAll skipped")
		return nil
	}
	middleware.Logger.Info().Msg("Clearing existing data")

	all := database.PersistentModels()
	tx := s.db.Session(&gorm.Session{AllowGlobalUpdate: true})
	// Chats reference their last message, so null it before deleting messages.
	if err := tx.Model(&models.Chat{}).Update("last_message_id", nil).Error; err != nil {
		return fmt.Errorf("reset chat last messages: %w", err)
	}
	for i := len(all) - 1; i >= 0; i-- {
		if err := tx.Unscoped().Delete(all[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", all[i], err)
		}
	}
	return nil
}

// Run seeds a full dataset according to the seeder's options.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	log := middleware.Logger.With().Int("users", s.opts.NumUsers).Int("posts", s.opts.NumPosts).Logger()
	log.Info().Msg("Starting database seeding")

	if s.opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	users, err := s.SeedUsers(s.opts.NumUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	res.Users = len(users)

	if res.Follows, err = s.SeedFollows(ctx, users); err != nil {
		return nil, fmt.Errorf("failed to create follows: %w", err)
	}

	posts, err := s.SeedPosts(users, s.opts.NumPosts)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	res.Posts = len(posts)
	for _, p := range posts {
		if p.IsEvent {
			res.Events++
		}
	}

	if err := s.SeedEngagement(ctx, users, posts, res); err != nil {
		return nil, fmt.Errorf("failed to create engagement: %w", err)
	}

	log.Info().
		Int("follows", res.Follows).
		Int("events", res.Events).
		Int("interest", res.Interest).
		Int("attended", res.Attended).
		Int("comments", res.Comments).
		Int("chats", res.Chats).
		Int("messages", res.Messages).
		Msg("Database seeding completed")
	return res, nil
}

// SeedUsers creates count verified users.
func (s *Seeder) SeedUsers(count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	seen := make(map[string]bool, count)
	for len(users) < count {
		user, err := s.factory.CreateUser(func(u *models.User) {
			for seen[u.Handle()] {
				name := s.factory.Username()
				u.Username = &name
				u.Email = name + "@example.com"
			}
		})
		if err != nil {
			return nil, err
		}
		seen[user.Handle()] = true
		users = append(users, user)
	}
	return users, nil
}

// SeedFollows makes every user follow up to FollowsPerUser random others.
func (s *Seeder) SeedFollows(ctx context.Context, users []*models.User) (int, error) {
	if s.opts.DryRun || len(users) < 2 {
		return 0, nil
	}
	per := min(s.opts.FollowsPerUser, len(users)-1)

	total := 0
	for _, follower := range users {
		count := 0
		for _, idx := range s.factory.rnd.Perm(len(users)) {
			if count == per {
				break
			}
			followee := users[idx]
			if followee.ID == follower.ID {
				continue
			}
			count++
			added, err := s.users.Follow(ctx, follower.ID, followee.ID)
			if err != nil {
				return total, err
			}
			if added {
				total++
			}
		}
	}
	return total, nil
}

// SeedPosts creates count posts spread over users. EventRatio of them are
// events, UpcomingRatio of those in the future.
func (s *Seeder) SeedPosts(users []*models.User, count int) ([]*models.Post, error) {
	if len(users) == 0 || count <= 0 {
		return nil, nil
	}
	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := users[s.factory.rnd.Intn(len(users))]
		if s.factory.rnd.Float64() < s.opts.EventRatio {
			start := s.factory.EventStart(s.factory.rnd.Float64() < s.opts.UpcomingRatio)
			posts = append(posts, s.factory.BuildEvent(author, start))
		} else {
			posts = append(posts, s.factory.BuildPost(author))
		}
	}
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// SeedEngagement adds interest, attendance, comments and event chats.
// Upcoming events collect interested users who join the chat; past events
// record attendance for a subset of their interested users.
func (s *Seeder) SeedEngagement(ctx context.Context, users []*models.User, posts []*models.Post, res *Result) error {
	if s.opts.DryRun || len(users) == 0 {
		return nil
	}
	now := time.Now().UTC()
	byID := make(map[uint]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, post := range posts {
		for _, author := range s.pick(users, s.opts.CommentsPerPost) {
			if err := s.comments.Create(ctx, s.factory.BuildComment(author, post)); err != nil {
				return err
			}
			res.Comments++
		}

		if !post.IsEvent {
			continue
		}
		guests := s.pick(users, s.opts.InterestPerPost)

		if post.EventStarted(now) {
			for _, g := range guests {
				if _, err := s.posts.AddInterest(ctx, post.ID, g.ID); err != nil {
					return err
				}
				res.Interest++
				if s.factory.rnd.Intn(2) == 0 {
					continue
				}
				if _, err := s.posts.AddAttendance(ctx, post.ID, g.ID); err != nil {
					return err
				}
				res.Attended++
			}
			continue
		}

		var chat *models.Chat
		for _, g := range guests {
			joined, err := s.chats.JoinPostChat(ctx, post, g.ID, now)
			if err != nil {
				return err
			}
			if joined.Created {
				res.Chats++
			}
			if joined.Interested {
				res.Interest++
			}
			chat = joined.Chat
		}
		if chat == nil {
			continue
		}
		for i := 0; i < s.opts.MessagesPerChat; i++ {
			sender := byID[chat.Participants[s.factory.rnd.Intn(len(chat.Participants))].ID]
			if sender == nil {
				continue
			}
			if err := s.chats.CreateMessage(ctx, s.factory.BuildMessage(chat, sender)); err != nil {
				return err
			}
			res.Messages++
		}
	}
	return nil
}

// pick returns up to n distinct random users.
func (s *Seeder) pick(users []*models.User, n int) []*models.User {
	n = min(n, len(users))
	if n <= 0 {
		return nil
	}
	out := make([]*models.User, 0, n)
	for _, idx := range s.factory.rnd.Perm(len(users))[:n] {
		out = append(out, users[idx])
	}
	return out
}
