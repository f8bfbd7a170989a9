package mongostore

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/cppla/chamran/models"
)

// authorJoin replaces the author reference with the author document. The unwind drops
// documents whose author no longer exists.
func authorJoin() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: usersCollection},
			{Key: "localField", Value: "author"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "author"},
		}}},
		{{Key: "$unwind", Value: bson.D{{Key: "path", Value: "$author"}}}},
	}
}

// joinedPipeline matches, joins the author and sorts.
func joinedPipeline(match bson.D, sort bson.D, limit int64) mongo.Pipeline {
	pipeline := mongo.Pipeline{}
	if len(match) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	pipeline = append(pipeline, authorJoin()...)
	if len(sort) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sort}})
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	return pipeline
}

var (
	postSort    = bson.D{{Key: "creation_time", Value: -1}, {Key: "_id", Value: -1}}
	commentSort = bson.D{{Key: "creation_time", Value: 1}, {Key: "_id", Value: 1}}
	userSort    = bson.D{{Key: "creation_time", Value: 1}, {Key: "_id", Value: 1}}
)

// byID matches one document and optionally its author.
func byID(id primitive.ObjectID, author string) (bson.D, bool) {
	filter := bson.D{{Key: "_id", Value: id}}
	if author == "" {
		return filter, true
	}
	aid, ok := objectID(author)
	if !ok {
		return nil, false
	}
	return append(filter, bson.E{Key: "author", Value: aid}), true
}

// notAdmin excludes the protected accounts from ordinary writes.
func notAdmin(id primitive.ObjectID) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "role", Value: bson.D{{Key: "$ne", Value: string(models.RoleAdmin)}}},
	}
}

func containsInsensitive(q string) bson.D {
	return bson.D{
		{Key: "$regex", Value: regexp.QuoteMeta(q)},
		{Key: "$options", Value: "i"},
	}
}
