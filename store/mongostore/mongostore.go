// Package mongostore implements the repositories on MongoDB. Follow edges are embedded in each
// user document and mutated with $addToSet and $pull, which are atomic per document.
package mongostore

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/store"
)

// New builds the repositories on the named database.
func New(client *mongo.Client, database string) *store.Store {
	db := client.Database(database)
	return &store.Store{
		Users:    &userStore{coll: db.Collection(usersCollection)},
		Posts:    &postStore{coll: db.Collection(postsCollection)},
		Comments: &commentStore{coll: db.Collection(commentsCollection)},
		Setup: func(ctx context.Context) error {
			return EnsureIndexes(ctx, db)
		},
		Close: client.Disconnect,
	}
}

// EnsureIndexes creates the unique email index and the lookup indexes. Safe to call repeatedly.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
			{Keys: bson.D{{Key: "followings", Value: 1}}, Options: options.Index().SetName("idx_followings")},
		},
		postsCollection: {
			{Keys: bson.D{{Key: "author", Value: 1}, {Key: "creation_time", Value: -1}}, Options: options.Index().SetName("idx_author_created")},
		},
		commentsCollection: {
			{Keys: bson.D{{Key: "post", Value: 1}}, Options: options.Index().SetName("idx_post")},
			{Keys: bson.D{{Key: "author", Value: 1}}, Options: options.Index().SetName("idx_author")},
		},
	}
	for name, specs := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, specs); err != nil {
			return apperrors.Internal("create indexes on "+name, err)
		}
	}
	return nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Internal(op, err)
}

type userStore struct {
	coll *mongo.Collection
}

func (s *userStore) List(ctx context.Context, filter store.UserFilter) ([]models.User, error) {
	query := bson.D{}
	if filter.IDs != nil {
		ids := objectIDs(filter.IDs)
		if len(ids) == 0 {
			return []models.User{}, nil
		}
		query = append(query, bson.E{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}})
	}
	if filter.FollowerOf != "" {
		oid, ok := objectID(filter.FollowerOf)
		if !ok {
			return []models.User{}, nil
		}
		query = append(query, bson.E{Key: "followings", Value: oid})
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		query = append(query, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "name", Value: containsInsensitive(q)}},
			bson.D{{Key: "email", Value: containsInsensitive(q)}},
		}})
	}

	cursor, err := s.coll.Find(ctx, query, options.Find().SetSort(userSort))
	if err != nil {
		return nil, wrap("list users", err)
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrap("decode users", err)
	}
	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.model())
	}
	return users, nil
}

func (s *userStore) findOne(ctx context.Context, filter bson.D) (*models.User, error) {
	var doc userDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, wrap("get user", err)
	}
	u := doc.model()
	return &u, nil
}

func (s *userStore) Get(ctx context.Context, id string) (*models.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func exists(ctx context.Context, coll *mongo.Collection, id string) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, nil
	}
	err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}},
		options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, wrap("check "+coll.Name(), err)
	}
	return true, nil
}

func (s *userStore) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, s.coll, id)
}

func (s *userStore) Create(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleMember
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}
	u.UpdatedAt = u.CreatedAt
	doc := userDoc{
		Name:       u.Name,
		Email:      u.Email,
		Credential: u.Credential,
		Role:       string(u.Role),
		Followings: []primitive.ObjectID{},
		CreatedAt:  u.CreatedAt,
	}
	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrUserExists
		}
		return wrap("create user", err)
	}
	u.ID = res.InsertedID.(primitive.ObjectID).Hex()
	u.Followings = []string{}
	return nil
}

func (s *userStore) Update(ctx context.Context, id string, patch models.UserPatch) (bool, error) {
	oid, ok := objectID(id)
	if !ok {
		return false, apperrors.ErrUserNotFound
	}
	set := bson.D{}
	if patch.Name.Set {
		set = append(set, bson.E{Key: "name", Value: patch.Name.Value})
	}
	if patch.Email.Set {
		set = append(set, bson.E{Key: "email", Value: patch.Email.Value})
	}
	if patch.Credential.Set {
		set = append(set, bson.E{Key: "credential", Value: patch.Credential.Value})
	}
	if len(set) == 0 {
		return false, nil
	}

	res, err := s.coll.UpdateOne(ctx, notAdmin(oid), bson.D{{Key: "$set", Value: set}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, apperrors.ErrUserExists
		}
		return false, wrap("update user", err)
	}
	if res.MatchedCount < 1 {
		return false, apperrors.ErrUserNotFound
	}
	return res.ModifiedCount > 0, nil
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return apperrors.ErrUserNotFound
	}
	res, err := s.coll.DeleteOne(ctx, notAdmin(oid))
	if err != nil {
		return wrap("delete user", err)
	}
	if res.DeletedCount < 1 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (s *userStore) FollowingIDs(ctx context.Context, followerID string) ([]string, error) {
	oid, ok := objectID(followerID)
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	var doc userDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}},
		options.FindOne().SetProjection(bson.D{{Key: "followings", Value: 1}})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, wrap("get followings", err)
	}
	return doc.model().Followings, nil
}

// updateFollowings applies a set operator to the follower's document.
func (s *userStore) updateFollowings(ctx context.Context, op, followerID, followingID string) (bool, error) {
	fid, ok := objectID(followerID)
	if !ok {
		return false, apperrors.ErrUserNotFound
	}
	tid, ok := objectID(followingID)
	if !ok {
		// no document can hold a malformed id
		if op == "$pull" {
			found, err := exists(ctx, s.coll, followerID)
			if err == nil && !found {
				err = apperrors.ErrUserNotFound
			}
			return false, err
		}
		return false, apperrors.ErrUserNotFound
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: fid}},
		bson.D{{Key: op, Value: bson.D{{Key: "followings", Value: tid}}}},
	)
	if err != nil {
		return false, wrap(op+" following", err)
	}
	if res.MatchedCount < 1 {
		return false, apperrors.ErrUserNotFound
	}
	return res.ModifiedCount > 0, nil
}

func (s *userStore) AddFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	return s.updateFollowings(ctx, "$addToSet", followerID, followingID)
}

func (s *userStore) RemoveFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	return s.updateFollowings(ctx, "$pull", followerID, followingID)
}

func (s *userStore) PullFollowingEverywhere(ctx context.Context, id string) (int64, error) {
	oid, ok := objectID(id)
	if !ok {
		return 0, nil
	}
	res, err := s.coll.UpdateMany(ctx,
		bson.D{{Key: "followings", Value: oid}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "followings", Value: oid}}}},
	)
	if err != nil {
		return 0, wrap("prune followings", err)
	}
	return res.ModifiedCount, nil
}

func (s *userStore) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	return n, wrap("count users", err)
}

type postStore struct {
	coll *mongo.Collection
}

func (s *postStore) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]models.Post, error) {
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrap("aggregate posts", err)
	}
	var docs []joinedPostDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrap("decode posts", err)
	}
	posts := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, d.model())
	}
	return posts, nil
}

func (s *postStore) List(ctx context.Context, filter store.PostFilter) ([]models.Post, error) {
	match := bson.D{}
	if filter.AuthorIDs != nil {
		ids := objectIDs(filter.AuthorIDs)
		if len(ids) == 0 {
			return []models.Post{}, nil
		}
		match = append(match, bson.E{Key: "author", Value: bson.D{{Key: "$in", Value: ids}}})
	}
	return s.aggregate(ctx, joinedPipeline(match, postSort, 0))
}

func (s *postStore) Get(ctx context.Context, id string) (*models.Post, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, apperrors.ErrPostNotFound
	}
	posts, err := s.aggregate(ctx, joinedPipeline(bson.D{{Key: "_id", Value: oid}}, nil, 1))
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, apperrors.ErrPostNotFound
	}
	return &posts[0], nil
}

func (s *postStore) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, s.coll, id)
}

func (s *postStore) Create(ctx context.Context, p *models.Post) error {
	author, ok := objectID(p.AuthorID)
	if !ok {
		return apperrors.Reference(apperrors.ErrUserNotFound)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	res, err := s.coll.InsertOne(ctx, postDoc{
		Content:          p.Content,
		CreationTime:     p.CreatedAt,
		ModificationTime: p.UpdatedAt,
		Author:           author,
	})
	if err != nil {
		return wrap("create post", err)
	}
	p.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

// updateContent sets content and the modification time on the matched document.
func updateContent(ctx context.Context, coll *mongo.Collection, id, expectedAuthor, content string, notFound error) error {
	oid, ok := objectID(id)
	if !ok {
		return notFound
	}
	filter, ok := byID(oid, expectedAuthor)
	if !ok {
		return notFound
	}
	res, err := coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: bson.D{
		{Key: "content", Value: content},
		{Key: "modification_time", Value: now()},
	}}})
	if err != nil {
		return wrap("update "+coll.Name(), err)
	}
	if res.MatchedCount < 1 {
		return notFound
	}
	return nil
}

func deleteScoped(ctx context.Context, coll *mongo.Collection, id, expectedAuthor string, notFound error) error {
	oid, ok := objectID(id)
	if !ok {
		return notFound
	}
	filter, ok := byID(oid, expectedAuthor)
	if !ok {
		return notFound
	}
	res, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return wrap("delete from "+coll.Name(), err)
	}
	if res.DeletedCount < 1 {
		return notFound
	}
	return nil
}

func deleteMany(ctx context.Context, coll *mongo.Collection, filter bson.D) (int64, error) {
	res, err := coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, wrap("delete many from "+coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func (s *postStore) Update(ctx context.Context, id, expectedAuthor, content string) error {
	return updateContent(ctx, s.coll, id, expectedAuthor, content, apperrors.ErrPostNotFound)
}

func (s *postStore) Delete(ctx context.Context, id, expectedAuthor string) error {
	return deleteScoped(ctx, s.coll, id, expectedAuthor, apperrors.ErrPostNotFound)
}

func (s *postStore) IDsByAuthor(ctx context.Context, authorID string) ([]string, error) {
	oid, ok := objectID(authorID)
	if !ok {
		return []string{}, nil
	}
	cursor, err := s.coll.Find(ctx, bson.D{{Key: "author", Value: oid}},
		options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}}).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, wrap("list post ids", err)
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrap("decode post ids", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID.Hex())
	}
	return ids, nil
}

func (s *postStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return 0, nil
	}
	return deleteMany(ctx, s.coll, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}}})
}

func (s *postStore) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	return n, wrap("count posts", err)
}

type commentStore struct {
	coll *mongo.Collection
}

func (s *commentStore) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]models.Comment, error) {
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrap("aggregate comments", err)
	}
	var docs []joinedCommentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrap("decode comments", err)
	}
	comments := make([]models.Comment, 0, len(docs))
	for _, d := range docs {
		comments = append(comments, d.model())
	}
	return comments, nil
}

func (s *commentStore) listBy(ctx context.Context, field, id string) ([]models.Comment, error) {
	oid, ok := objectID(id)
	if !ok {
		return []models.Comment{}, nil
	}
	return s.aggregate(ctx, joinedPipeline(bson.D{{Key: field, Value: oid}}, commentSort, 0))
}

func (s *commentStore) ListByPost(ctx context.Context, postID string) ([]models.Comment, error) {
	return s.listBy(ctx, "post", postID)
}

func (s *commentStore) ListByAuthor(ctx context.Context, authorID string) ([]models.Comment, error) {
	return s.listBy(ctx, "author", authorID)
}

func (s *commentStore) Get(ctx context.Context, id string) (*models.Comment, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, apperrors.ErrCommentNotFound
	}
	comments, err := s.aggregate(ctx, joinedPipeline(bson.D{{Key: "_id", Value: oid}}, nil, 1))
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return nil, apperrors.ErrCommentNotFound
	}
	return &comments[0], nil
}

func (s *commentStore) Create(ctx context.Context, c *models.Comment) error {
	author, ok := objectID(c.AuthorID)
	if !ok {
		return apperrors.Reference(apperrors.ErrUserNotFound)
	}
	post, ok := objectID(c.PostID)
	if !ok {
		return apperrors.Reference(apperrors.ErrPostNotFound)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	res, err := s.coll.InsertOne(ctx, commentDoc{
		Content:          c.Content,
		Author:           author,
		Post:             post,
		CreationTime:     c.CreatedAt,
		ModificationTime: c.UpdatedAt,
	})
	if err != nil {
		return wrap("create comment", err)
	}
	c.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return nil
}

func (s *commentStore) Update(ctx context.Context, id, expectedAuthor, content string) error {
	return updateContent(ctx, s.coll, id, expectedAuthor, content, apperrors.ErrCommentNotFound)
}

func (s *commentStore) Delete(ctx context.Context, id, expectedAuthor string) error {
	return deleteScoped(ctx, s.coll, id, expectedAuthor, apperrors.ErrCommentNotFound)
}

func (s *commentStore) DeleteByPost(ctx context.Context, postID string) (int64, error) {
	oid, ok := objectID(postID)
	if !ok {
		return 0, nil
	}
	return deleteMany(ctx, s.coll, bson.D{{Key: "post", Value: oid}})
}

func (s *commentStore) DeleteByPosts(ctx context.Context, postIDs []string) (int64, error) {
	ids := objectIDs(postIDs)
	if len(ids) == 0 {
		return 0, nil
	}
	return deleteMany(ctx, s.coll, bson.D{{Key: "post", Value: bson.D{{Key: "$in", Value: ids}}}})
}

func (s *commentStore) DeleteByAuthor(ctx context.Context, authorID string) (int64, error) {
	oid, ok := objectID(authorID)
	if !ok {
		return 0, nil
	}
	return deleteMany(ctx, s.coll, bson.D{{Key: "author", Value: oid}})
}

func (s *commentStore) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	return n, wrap("count comments", err)
}
