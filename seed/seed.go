// Package seed fills a store with a random social graph through the regular services, so
// every write goes through the same validation as the API.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/services"
	"github.com/cppla/chamran/store"
)

const (
	gridDims         = 3
	oneWayFollowOdds = 0.5
	twoWayFollowOdds = 0.15
	noPostOdds       = 0.25
	noCommentOdds    = 0.5
)

// Options tunes the generated graph.
type Options struct {
	Users       int
	MaxIsolated int
	MaxPosts    int
	MaxComments int
	// Password is given to every generated account.
	Password string
	Workers  int
	Seed     uint64
}

// Defaults fills zero fields.
func (o *Options) Defaults() {
	if o.Users <= 0 {
		o.Users = 500
	}
	if o.MaxIsolated < 0 {
		o.MaxIsolated = 0
	}
	if o.MaxPosts <= 0 {
		o.MaxPosts = 5
	}
	if o.MaxComments <= 0 {
		o.MaxComments = 10
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
}

// Summary counts what was written.
type Summary struct {
	Users          int `json:"users"`
	Follows        int `json:"follows"`
	IsolatedPruned int `json:"isolated_pruned"`
	Posts          int `json:"posts"`
	Comments       int `json:"comments"`
}

// Seeder writes the graph.
type Seeder struct {
	svc    *services.Services
	logger *zap.Logger
	opts   Options
	rng    *rand.Rand
	mu     sync.Mutex
}

func New(svc *services.Services, logger *zap.Logger, opts Options) *Seeder {
	opts.Defaults()
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Seeder{
		svc:    svc,
		logger: logger,
		opts:   opts,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// float and intN serialize access to the generator, which is shared by the workers.
func (s *Seeder) float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Seeder) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// between returns a value in [lo, hi] roughly normally distributed around the middle.
func (s *Seeder) between(lo, hi int) int {
	const samples = 12
	sum := 0
	for i := 0; i < samples; i++ {
		sum += lo + s.intN(hi-lo+1)
	}
	return int(math.Round(float64(sum) / samples))
}

// Run creates users, follow edges, posts and comments.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	users, err := s.createUsers(ctx)
	if err != nil {
		return sum, err
	}
	s.logger.Info("users created", zap.Int("count", len(users)))

	edges := s.graph(users)
	if err := s.follow(ctx, edges); err != nil {
		return sum, err
	}
	for _, targets := range edges {
		sum.Follows += len(targets)
	}

	users, sum.IsolatedPruned, err = s.pruneIsolated(ctx, users, edges)
	if err != nil {
		return sum, err
	}
	sum.Users = len(users)

	sum.Posts, sum.Comments, err = s.createContent(ctx, users)
	if err != nil {
		return sum, err
	}
	s.logger.Info("populate complete",
		zap.Int("users", sum.Users),
		zap.Int("follows", sum.Follows),
		zap.Int("isolated_pruned", sum.IsolatedPruned),
		zap.Int("posts", sum.Posts),
		zap.Int("comments", sum.Comments),
	)
	return sum, nil
}

func (s *Seeder) createUsers(ctx context.Context) ([]string, error) {
	var (
		mu  sync.Mutex
		ids []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i := 0; i < s.opts.Users; i++ {
		first := firstNames[s.intN(len(firstNames))]
		last := lastNames[s.intN(len(lastNames))]
		email := strings.ToLower(fmt.Sprintf("%s.%s.%d@example.com", first, last, i))
		g.Go(func() error {
			u, err := s.svc.Accounts.Signup(gctx, first+" "+last, email, s.opts.Password)
			if errors.Is(err, apperrors.ErrUserExists) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			ids = append(ids, u.ID)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.New("no users were created")
	}
	// goroutine completion order is not deterministic
	s.mu.Lock()
	slices.Sort(ids)
	s.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	s.mu.Unlock()
	return ids, nil
}

// gridShape splits n users over a gridDims-dimensional rectilinear grid.
func gridShape(n int) []int {
	side := int(math.Ceil(math.Pow(float64(n), 1.0/gridDims)))
	if side < 1 {
		side = 1
	}
	dims := make([]int, 0, gridDims)
	rest := n
	for i := 0; i < gridDims-1; i++ {
		dims = append(dims, side)
		rest = int(math.Ceil(float64(rest) / float64(side)))
	}
	return append(dims, max(rest, 1))
}

// position converts a linear index into grid coordinates.
func position(index int, dims []int) []int {
	pos := make([]int, len(dims))
	for k := len(dims) - 1; k >= 0; k-- {
		pos[k] = index % dims[k]
		index /= dims[k]
	}
	return pos
}

func indexOf(pos []int, dims []int) int {
	index := 0
	for k := range dims {
		index = index*dims[k] + pos[k]
	}
	return index
}

// graph links each user to its lower neighbour along every axis, sometimes both ways.
func (s *Seeder) graph(users []string) map[string]map[string]struct{} {
	dims := gridShape(len(users))
	edges := map[string]map[string]struct{}{}
	add := func(from, to string) {
		if edges[from] == nil {
			edges[from] = map[string]struct{}{}
		}
		edges[from][to] = struct{}{}
	}
	for i, follower := range users {
		pos := position(i, dims)
		for k := range pos {
			if pos[k] == 0 {
				continue
			}
			neighbour := append([]int(nil), pos...)
			neighbour[k]--
			j := indexOf(neighbour, dims)
			if j >= len(users) {
				continue
			}
			luck := s.float()
			if luck < oneWayFollowOdds {
				add(follower, users[j])
			}
			if luck < twoWayFollowOdds {
				add(users[j], follower)
			}
		}
	}
	return edges
}

func (s *Seeder) follow(ctx context.Context, edges map[string]map[string]struct{}) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for follower, targets := range edges {
		for following := range targets {
			g.Go(func() error {
				_, err := s.svc.Graph.Follow(gctx, follower, following)
				return err
			})
		}
	}
	return g.Wait()
}

// pruneIsolated deletes users without any edge beyond the first MaxIsolated of them.
func (s *Seeder) pruneIsolated(ctx context.Context, users []string, edges map[string]map[string]struct{}) ([]string, int, error) {
	connected := map[string]bool{}
	for follower, targets := range edges {
		connected[follower] = true
		for following := range targets {
			connected[following] = true
		}
	}
	kept := make([]string, 0, len(users))
	var isolated []string
	for _, id := range users {
		if connected[id] {
			kept = append(kept, id)
			continue
		}
		if len(isolated) < s.opts.MaxIsolated {
			kept = append(kept, id)
		}
		isolated = append(isolated, id)
	}
	if len(isolated) <= s.opts.MaxIsolated {
		return kept, 0, nil
	}
	excess := isolated[s.opts.MaxIsolated:]

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, id := range excess {
		g.Go(func() error {
			_, err := s.svc.Cascade.DeleteUser(gctx, id)
			if errors.Is(err, apperrors.ErrUserNotFound) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return kept, len(excess), nil
}

func (s *Seeder) createContent(ctx context.Context, users []string) (int, int, error) {
	var posts, comments int
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, author := range users {
		if s.float() < noPostOdds {
			continue
		}
		n := s.between(1, s.opts.MaxPosts)
		for i := 0; i < n; i++ {
			g.Go(func() error {
				post, err := s.svc.Content.CreatePost(gctx, author, s.sentence())
				if err != nil {
					return err
				}
				created, err := s.comment(gctx, post, users)
				mu.Lock()
				posts++
				comments += created
				mu.Unlock()
				return err
			})
		}
	}
	err := g.Wait()
	return posts, comments, err
}

func (s *Seeder) comment(ctx context.Context, post *models.PostView, users []string) (int, error) {
	if s.float() < noCommentOdds {
		return 0, nil
	}
	n := s.between(1, s.opts.MaxComments)
	for i := 0; i < n; i++ {
		author := users[s.intN(len(users))]
		if _, err := s.svc.Content.CreateComment(ctx, author, post.ID, s.sentence()); err != nil {
			return i, err
		}
	}
	return n, nil
}

func (s *Seeder) sentence() string {
	n := 4 + s.intN(12)
	words := make([]string, n)
	for i := range words {
		words[i] = lorem[s.intN(len(lorem))]
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ") + "."
}

// Reset deletes every member account, and with them all content.
func Reset(ctx context.Context, svc *services.Services) (int, error) {
	all, err := svc.Accounts.ListUsers(ctx, store.UserFilter{})
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, u := range all {
		if u.IsAdmin() {
			continue
		}
		if _, err := svc.Cascade.DeleteUser(ctx, u.ID); err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
