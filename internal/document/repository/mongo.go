package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docflow/docflow/internal/document"
)

// mongoRecord is the persisted shape: one Mongo document per workflow
// document, with history and critiques embedded. Keeping everything in a
// single record makes the version-guarded UpdateOne an atomic commit;
// there is no partial-history-write state visible to concurrent readers.
type mongoRecord struct {
	Doc       document.Document       `bson:"doc"`
	History   []document.HistoryEntry `bson:"history"`
	Critiques []document.Critique     `bson:"critiques,omitempty"`
}

// MongoRepo implements Store on a MongoDB collection.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	// ensure a unique index on the document id for fast lookups
	idxModel := mongo.IndexModel{Keys: bson.D{{Key: "doc.id", Value: 1}}, Options: options.Index().SetUnique(true)}
	col.Indexes().CreateOne(context.Background(), idxModel)
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Create(ctx context.Context, doc *document.Document, entry document.HistoryEntry) error {
	if doc.ID == "" {
		doc.ID = "doc_" + time.Now().Format("20060102T150405.000000000")
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Version = 1
	entry.DocumentID = doc.ID
	rec := mongoRecord{Doc: *doc, History: []document.HistoryEntry{entry}}
	_, err := m.col.InsertOne(ctx, rec)
	return err
}

func (m *MongoRepo) Load(ctx context.Context, id string, includeDeleted bool) (*document.Document, []document.HistoryEntry, error) {
	var rec mongoRecord
	err := m.col.FindOne(ctx, bson.M{"doc.id": id}).Decode(&rec)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil, document.ErrNotFound
		}
		return nil, nil, err
	}
	if rec.Doc.Deleted && !includeDeleted {
		return nil, nil, document.ErrGone
	}
	d := rec.Doc
	return &d, rec.History, nil
}

func (m *MongoRepo) Commit(ctx context.Context, doc *document.Document, entry document.HistoryEntry, critique *document.Critique) error {
	prev := doc.Version
	next := *doc
	next.Version = prev + 1
	next.UpdatedAt = time.Now().UTC()
	entry.DocumentID = doc.ID

	push := bson.M{"history": entry}
	if critique != nil {
		c := *critique
		c.DocumentID = doc.ID
		push["critiques"] = c
	}
	filter := bson.M{"doc.id": doc.ID, "doc.version": prev}
	update := bson.M{"$set": bson.M{"doc": next}, "$push": push}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// distinguish a lost race from a missing document
		n, err := m.col.CountDocuments(ctx, bson.M{"doc.id": doc.ID})
		if err != nil {
			return err
		}
		if n == 0 {
			return document.ErrNotFound
		}
		return document.ErrConflict
	}
	*doc = next
	return nil
}

// listFilter builds the role-scoped query for List. The owner filter may
// only narrow the scope, never replace it: a citizen asking for another
// owner's documents gets nothing, same as the memory store's visible and
// matches checks. A nil return means the result is empty without a query.
func listFilter(actor document.Actor, f Filter) bson.M {
	filter := bson.M{"doc.deleted": false}
	switch actor.Role {
	case document.RoleCitizen:
		filter["doc.owner"] = actor.ID
	case document.RoleReviewer:
		filter["doc.assignees"] = actor.ID
	case document.RoleSecretary, document.RoleChairman:
		// full visibility
	default:
		return nil
	}
	if f.Owner != "" {
		if scoped, ok := filter["doc.owner"]; ok && scoped != f.Owner {
			return nil
		}
		filter["doc.owner"] = f.Owner
	}
	if len(f.States) > 0 {
		filter["doc.state"] = bson.M{"$in": f.States}
	}
	return filter
}

func (m *MongoRepo) List(ctx context.Context, actor document.Actor, f Filter) ([]*document.Document, error) {
	filter := listFilter(actor, f)
	if filter == nil {
		return []*document.Document{}, nil
	}

	cur, err := m.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	for cur.Next(ctx) {
		var rec mongoRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		d := rec.Doc
		out = append(out, &d)
	}
	return out, cur.Err()
}

func (m *MongoRepo) Critiques(ctx context.Context, docID string, cycle int) ([]document.Critique, error) {
	var rec mongoRecord
	err := m.col.FindOne(ctx, bson.M{"doc.id": docID}).Decode(&rec)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, document.ErrNotFound
		}
		return nil, err
	}
	out := []document.Critique{}
	for _, c := range rec.Critiques {
		if cycle < 0 || c.Cycle == cycle {
			out = append(out, c)
		}
	}
	return out, nil
}
