package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cppla/chamran/models"
)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	commentsCollection = "comments"
)

type userDoc struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty"`
	Name       string               `bson:"name"`
	Email      string               `bson:"email"`
	Credential string               `bson:"credential"`
	Role       string               `bson:"role"`
	Followings []primitive.ObjectID `bson:"followings"`
	CreatedAt  time.Time            `bson:"creation_time"`
}

func (d userDoc) model() models.User {
	followings := make([]string, 0, len(d.Followings))
	for _, id := range d.Followings {
		followings = append(followings, id.Hex())
	}
	role := models.Role(d.Role)
	if role == "" {
		role = models.RoleMember
	}
	return models.User{
		ID:         d.ID.Hex(),
		Name:       d.Name,
		Email:      d.Email,
		Credential: d.Credential,
		Role:       role,
		Followings: followings,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.CreatedAt,
	}
}

type postDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Content          string             `bson:"content"`
	CreationTime     time.Time          `bson:"creation_time"`
	ModificationTime time.Time          `bson:"modification_time"`
	Author           primitive.ObjectID `bson:"author"`
}

// joinedPostDoc is a post after the author lookup has replaced the reference.
type joinedPostDoc struct {
	ID               primitive.ObjectID `bson:"_id"`
	Content          string             `bson:"content"`
	CreationTime     time.Time          `bson:"creation_time"`
	ModificationTime time.Time          `bson:"modification_time"`
	Author           userDoc            `bson:"author"`
}

func (d joinedPostDoc) model() models.Post {
	author := d.Author.model()
	return models.Post{
		ID:        d.ID.Hex(),
		Content:   d.Content,
		AuthorID:  author.ID,
		Author:    &author,
		CreatedAt: d.CreationTime,
		UpdatedAt: d.ModificationTime,
	}
}

type commentDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Content          string             `bson:"content"`
	Author           primitive.ObjectID `bson:"author"`
	Post             primitive.ObjectID `bson:"post"`
	CreationTime     time.Time          `bson:"creation_time"`
	ModificationTime time.Time          `bson:"modification_time"`
}

type joinedCommentDoc struct {
	ID               primitive.ObjectID `bson:"_id"`
	Content          string             `bson:"content"`
	Author           userDoc            `bson:"author"`
	Post             primitive.ObjectID `bson:"post"`
	CreationTime     time.Time          `bson:"creation_time"`
	ModificationTime time.Time          `bson:"modification_time"`
}

func (d joinedCommentDoc) model() models.Comment {
	author := d.Author.model()
	return models.Comment{
		ID:        d.ID.Hex(),
		PostID:    d.Post.Hex(),
		AuthorID:  author.ID,
		Author:    &author,
		Content:   d.Content,
		CreatedAt: d.CreationTime,
		UpdatedAt: d.ModificationTime,
	}
}

// objectID parses a hex id. Ids that are not valid ObjectIDs can never match a document.
func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}

// objectIDs parses ids, silently dropping the invalid ones.
func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, ok := objectID(id); ok {
			out = append(out, oid)
		}
	}
	return out
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
