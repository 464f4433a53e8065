// Package memstore provides in-memory repositories with the same semantics as the
// Postgres-backed ones in package store. It is used by unit tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alumnijourney/apiserver/internal/store"
	"github.com/alumnijourney/apiserver/types"
)

// Store holds every table behind a single lock.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	users    map[int]types.User
	tokens   map[string]types.Token
	posts    map[int]types.Post
	comments map[int]types.Comment
	likes    map[[2]int]types.Like
	nextID   int
}

func New() *Store {
	return &Store{
		now:      time.Now,
		users:    make(map[int]types.User),
		tokens:   make(map[string]types.Token),
		posts:    make(map[int]types.Post),
		comments: make(map[int]types.Comment),
		likes:    make(map[[2]int]types.Like),
	}
}

func (s *Store) id() int {
	s.nextID++
	return s.nextID
}

// tick returns a strictly increasing timestamp so ordering by time is stable.
func (s *Store) tick() time.Time {
	return s.now().Add(time.Duration(s.nextID) * time.Microsecond)
}

func (s *Store) Users() *Users       { return &Users{s} }
func (s *Store) Tokens() *Tokens     { return &Tokens{s} }
func (s *Store) Posts() *Posts       { return &Posts{s} }
func (s *Store) Comments() *Comments { return &Comments{s} }

// Likes returns the recorded like rows.
func (s *Store) Likes() []types.Like {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Like, 0, len(s.likes))
	for _, like := range s.likes {
		out = append(out, like)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type Users struct{ s *Store }

func (u *Users) GetByID(_ context.Context, id int) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *Users) GetByUsername(_ context.Context, username string) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (u *Users) GetByEmail(_ context.Context, email string) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if user, ok := u.s.userByEmail(email); ok {
		return user, nil
	}
	return types.User{}, store.ErrNotFound
}

func (s *Store) userByEmail(email string) (types.User, bool) {
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return user, true
		}
	}
	return types.User{}, false
}

func (u *Users) Create(_ context.Context, user types.User) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.userByEmail(user.Email); ok {
		return types.User{}, store.ErrEmailTaken
	}
	for _, existing := range u.s.users {
		if existing.Username == user.Username {
			return types.User{}, store.ErrUsernameTaken
		}
	}
	user.ID = u.s.id()
	user.DateJoined = u.s.tick()
	user.UpdatedAt = user.DateJoined
	u.s.users[user.ID] = user
	return user, nil
}

func (u *Users) Update(_ context.Context, user types.User) (types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	current, ok := u.s.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if other, ok := u.s.userByEmail(user.Email); ok && other.ID != user.ID {
		return types.User{}, store.ErrEmailTaken
	}
	user.Username = current.Username
	user.PasswordHash = current.PasswordHash
	user.DateJoined = current.DateJoined
	user.UpdatedAt = u.s.now()
	u.s.users[user.ID] = user
	return user, nil
}

func (u *Users) List(_ context.Context, filter types.UserFilter) ([]types.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	users := []types.User{}
	for _, user := range u.s.users {
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		if search != "" && !matchesUser(user, search) {
			continue
		}
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func matchesUser(user types.User, search string) bool {
	for _, field := range []string{user.Username, user.Email, user.FirstName, user.LastName} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (u *Users) ChangePassword(_ context.Context, userID int, passwordHash string, token types.Token) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	u.s.users[userID] = user
	u.s.deleteTokens(userID)
	token.UserID = userID
	u.s.tokens[token.Key] = token
	return nil
}

type Tokens struct{ s *Store }

func (t *Tokens) GetOrCreate(_ context.Context, token types.Token) (types.Token, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, existing := range t.s.tokens {
		if existing.UserID == token.UserID {
			return existing, nil
		}
	}
	t.s.tokens[token.Key] = token
	return token, nil
}

func (t *Tokens) GetByKey(_ context.Context, key string) (types.Token, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	token, ok := t.s.tokens[key]
	if !ok {
		return types.Token{}, store.ErrNotFound
	}
	return token, nil
}

func (t *Tokens) DeleteByUser(_ context.Context, userID int) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.deleteTokens(userID)
	return nil
}

func (s *Store) deleteTokens(userID int) {
	for key, token := range s.tokens {
		if token.UserID == userID {
			delete(s.tokens, key)
		}
	}
}

type Posts struct{ s *Store }

func (p *Posts) List(_ context.Context, filter types.PostFilter) ([]types.Post, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	posts := []types.Post{}
	for _, post := range p.s.posts {
		if !filter.IncludeHidden && !post.IsApproved {
			continue
		}
		if filter.Category != "" && post.Category != filter.Category {
			continue
		}
		posts = append(posts, post)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	return posts, nil
}

func (p *Posts) Get(_ context.Context, id int) (types.Post, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	post, ok := p.s.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (p *Posts) Create(_ context.Context, post types.Post) (types.Post, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	post.ID = p.s.id()
	post.CreatedAt = p.s.tick()
	post.UpdatedAt = post.CreatedAt
	p.s.posts[post.ID] = post
	return post, nil
}

func (p *Posts) Update(_ context.Context, post types.Post) (types.Post, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	current, ok := p.s.posts[post.ID]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	post.UserID = current.UserID
	post.Likes = current.Likes
	post.IsApproved = current.IsApproved
	post.CreatedAt = current.CreatedAt
	post.UpdatedAt = p.s.now()
	p.s.posts[post.ID] = post
	return post, nil
}

func (p *Posts) Delete(_ context.Context, id int) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(p.s.posts, id)
	for cid, comment := range p.s.comments {
		if comment.PostID == id {
			delete(p.s.comments, cid)
		}
	}
	for key := range p.s.likes {
		if key[1] == id {
			delete(p.s.likes, key)
		}
	}
	return nil
}

func (p *Posts) IncrementLikes(_ context.Context, id int, likerID *int) (int, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	post, ok := p.s.posts[id]
	if !ok || !post.IsApproved {
		return 0, store.ErrNotFound
	}
	post.Likes++
	p.s.posts[id] = post
	if likerID != nil {
		key := [2]int{*likerID, id}
		if _, exists := p.s.likes[key]; !exists {
			p.s.likes[key] = types.Like{ID: p.s.id(), UserID: *likerID, PostID: id, CreatedAt: p.s.now()}
		}
	}
	return post.Likes, nil
}

func (p *Posts) SetApproval(_ context.Context, id int, approved bool) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	post, ok := p.s.posts[id]
	if !ok {
		return store.ErrNotFound
	}
	post.IsApproved = approved
	p.s.posts[id] = post
	return nil
}

type Comments struct{ s *Store }

// withAuthor fills the joined author name. Callers hold the lock.
func (c *Comments) withAuthor(comment types.Comment) types.Comment {
	comment.AuthorName = c.s.users[comment.UserID].Username
	return comment
}

func (c *Comments) sorted(match func(types.Comment) bool) []types.Comment {
	comments := []types.Comment{}
	for _, comment := range c.s.comments {
		if match(comment) {
			comments = append(comments, c.withAuthor(comment))
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	return comments
}

func (c *Comments) ListByPost(_ context.Context, postID int) ([]types.Comment, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.sorted(func(comment types.Comment) bool { return comment.PostID == postID }), nil
}

func (c *Comments) ListByPosts(_ context.Context, postIDs []int) (map[int][]types.Comment, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	wanted := make(map[int]bool, len(postIDs))
	for _, id := range postIDs {
		wanted[id] = true
	}
	grouped := make(map[int][]types.Comment, len(postIDs))
	for _, comment := range c.sorted(func(comment types.Comment) bool { return wanted[comment.PostID] }) {
		grouped[comment.PostID] = append(grouped[comment.PostID], comment)
	}
	return grouped, nil
}

func (c *Comments) Get(_ context.Context, postID, commentID int) (types.Comment, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	comment, ok := c.s.comments[commentID]
	if !ok || comment.PostID != postID {
		return types.Comment{}, store.ErrNotFound
	}
	return c.withAuthor(comment), nil
}

func (c *Comments) Create(_ context.Context, comment types.Comment) (types.Comment, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.posts[comment.PostID]; !ok {
		return types.Comment{}, store.ErrNotFound
	}
	comment.ID = c.s.id()
	comment.IsEdited = false
	comment.CreatedAt = c.s.tick()
	comment.UpdatedAt = comment.CreatedAt
	c.s.comments[comment.ID] = comment
	return c.withAuthor(comment), nil
}

func (c *Comments) Update(_ context.Context, comment types.Comment) (types.Comment, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	current, ok := c.s.comments[comment.ID]
	if !ok || current.PostID != comment.PostID {
		return types.Comment{}, store.ErrNotFound
	}
	current.AuthorRole = comment.AuthorRole
	current.Content = comment.Content
	current.IsEdited = true
	current.UpdatedAt = c.s.now()
	c.s.comments[comment.ID] = current
	return c.withAuthor(current), nil
}

func (c *Comments) Delete(_ context.Context, postID, commentID int) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	comment, ok := c.s.comments[commentID]
	if !ok || comment.PostID != postID {
		return store.ErrNotFound
	}
	delete(c.s.comments, commentID)
	return nil
}

func (c *Comments) ListByUser(_ context.Context, userID int) ([]types.UserComment, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	comments := c.sorted(func(comment types.Comment) bool { return comment.UserID == userID })
	out := make([]types.UserComment, 0, len(comments))
	for i := len(comments) - 1; i >= 0; i-- {
		post, ok := c.s.posts[comments[i].PostID]
		if !ok || !post.IsApproved {
			continue
		}
		out = append(out, types.UserComment{Comment: comments[i], PostTitle: post.Role, PostAuthor: post.Name})
	}
	return out, nil
}
