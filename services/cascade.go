package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/events"
	"github.com/cppla/chamran/metrics"
	"github.com/cppla/chamran/store"
)

// Cascade step names, used in logs, metrics and reports.
const (
	StepPruneFollowings   = "prune_followings"
	StepDeletePosts       = "delete_posts"
	StepDeletePostComment = "delete_post_comments"
	StepDeleteAuthored    = "delete_authored_comments"
)

// StepFailure records a best-effort step that gave up.
type StepFailure struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// CascadeReport describes what a delete removed beyond the primary record.
type CascadeReport struct {
	FollowingsPruned        int64         `json:"followings_pruned"`
	PostsDeleted            int64         `json:"posts_deleted"`
	PostCommentsDeleted     int64         `json:"post_comments_deleted"`
	AuthoredCommentsDeleted int64         `json:"authored_comments_deleted"`
	Failures                []StepFailure `json:"failures,omitempty"`
}

// Complete reports whether every best-effort step succeeded.
func (r CascadeReport) Complete() bool {
	return len(r.Failures) == 0
}

// CascadeService deletes records together with everything that references them. There is no
// cross-collection transaction: once the primary delete commits, the follow-up steps are
// retried on transient errors and never rolled back.
type CascadeService struct {
	store      *store.Store
	events     events.Publisher
	logger     *zap.Logger
	retryMax   int
	timeout    time.Duration
	newBackOff func() backoff.BackOff
}

func NewCascadeService(s *store.Store, pub events.Publisher, logger *zap.Logger, retryMax int, timeout time.Duration) *CascadeService {
	if retryMax < 0 {
		retryMax = 0
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CascadeService{
		store:    s,
		events:   pub,
		logger:   logger,
		retryMax: retryMax,
		timeout:  timeout,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
}

// SetBackOff replaces the retry schedule.
func (c *CascadeService) SetBackOff(factory func() backoff.BackOff) {
	c.newBackOff = factory
}

// retry runs op until it succeeds, fails with a business error, or runs out of attempts.
func (c *CascadeService) retry(ctx context.Context, op func(ctx context.Context) error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.retryMax)), ctx)
	return backoff.Retry(func() error {
		err := op(ctx)
		if err != nil && apperrors.IsBusiness(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// step runs one best-effort step and records its outcome.
func (c *CascadeService) step(ctx context.Context, report *CascadeReport, name string, fields []zap.Field, op func(ctx context.Context) (int64, error)) (int64, bool) {
	var n int64
	err := c.retry(ctx, func(ctx context.Context) error {
		var err error
		n, err = op(ctx)
		return err
	})
	if err != nil {
		metrics.CascadeStep(name, metrics.OutcomeFailed)
		c.logger.Error("cascade step failed", append(fields, zap.String("step", name), zap.Error(err))...)
		report.Failures = append(report.Failures, StepFailure{Step: name, Error: err.Error()})
		return 0, false
	}
	metrics.CascadeStep(name, metrics.OutcomeOK)
	return n, true
}

// detached keeps the follow-up steps running when the caller goes away.
func (c *CascadeService) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
}

// DeleteUser deletes the user, then prunes the user from every followings set, deletes the
// user's posts with their comments and finally the user's remaining comments. Admin accounts
// are reported as not found. The returned error only reflects the user delete itself.
func (c *CascadeService) DeleteUser(ctx context.Context, userID string) (CascadeReport, error) {
	var report CascadeReport
	if err := c.store.Users.Delete(ctx, userID); err != nil {
		return report, err
	}

	ctx, cancel := c.detached(ctx)
	defer cancel()
	fields := []zap.Field{zap.String("user_id", userID)}

	report.FollowingsPruned, _ = c.step(ctx, &report, StepPruneFollowings, fields, func(ctx context.Context) (int64, error) {
		return c.store.Users.PullFollowingEverywhere(ctx, userID)
	})

	// Only the snapshot is deleted, so a post written meanwhile keeps its comments.
	var postIDs []string
	report.PostsDeleted, _ = c.step(ctx, &report, StepDeletePosts, fields, func(ctx context.Context) (int64, error) {
		if postIDs == nil {
			ids, err := c.store.Posts.IDsByAuthor(ctx, userID)
			if err != nil {
				return 0, err
			}
			postIDs = ids
		}
		return c.store.Posts.DeleteByIDs(ctx, postIDs)
	})

	if len(postIDs) > 0 {
		report.PostCommentsDeleted, _ = c.step(ctx, &report, StepDeletePostComment, fields, func(ctx context.Context) (int64, error) {
			return c.store.Comments.DeleteByPosts(ctx, postIDs)
		})
	}

	report.AuthoredCommentsDeleted, _ = c.step(ctx, &report, StepDeleteAuthored, fields, func(ctx context.Context) (int64, error) {
		return c.store.Comments.DeleteByAuthor(ctx, userID)
	})

	c.logger.Info("user deleted",
		zap.String("user_id", userID),
		zap.Int64("followings_pruned", report.FollowingsPruned),
		zap.Int64("posts_deleted", report.PostsDeleted),
		zap.Int64("post_comments_deleted", report.PostCommentsDeleted),
		zap.Int64("authored_comments_deleted", report.AuthoredCommentsDeleted),
		zap.Bool("complete", report.Complete()),
	)
	events.Emit(ctx, c.events, c.logger, events.UserDeleted, events.UserEvent{UserID: userID})
	return report, nil
}

// DeletePost deletes the post when it matches expectedAuthor (empty matches any author), then
// its comments.
func (c *CascadeService) DeletePost(ctx context.Context, postID, expectedAuthor string) (CascadeReport, error) {
	var report CascadeReport
	if err := c.store.Posts.Delete(ctx, postID, expectedAuthor); err != nil {
		return report, err
	}
	report.PostsDeleted = 1

	ctx, cancel := c.detached(ctx)
	defer cancel()
	report.PostCommentsDeleted, _ = c.step(ctx, &report, StepDeletePostComment, []zap.Field{zap.String("post_id", postID)}, func(ctx context.Context) (int64, error) {
		return c.store.Comments.DeleteByPost(ctx, postID)
	})

	events.Emit(ctx, c.events, c.logger, events.PostDeleted, events.PostEvent{PostID: postID, AuthorID: expectedAuthor})
	return report, nil
}

// DeleteComment deletes a single comment matching expectedAuthor (empty matches any author).
func (c *CascadeService) DeleteComment(ctx context.Context, commentID, expectedAuthor string) error {
	if err := c.store.Comments.Delete(ctx, commentID, expectedAuthor); err != nil {
		return err
	}
	events.Emit(ctx, c.events, c.logger, events.CommentDeleted, events.CommentEvent{CommentID: commentID, AuthorID: expectedAuthor})
	return nil
}
