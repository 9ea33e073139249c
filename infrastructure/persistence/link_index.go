package persistence

import (
	"context"
	"fmt"

	"coursegraph-backend/infrastructure/store"
)

// ActivityLink is a non-owning edge placing an activity into a pathway. An
// activity may be linked into any number of pathways independently of the
// parent that owns it.
type ActivityLink struct {
	ActivityID string `dynamodbav:"activityId"`
	PathwayID  string `dynamodbav:"pathwayId"`
}

const (
	viewByActivity = "by_activity"
	viewByPathway  = "by_pathway"
)

// LinkIndex stores activity links in both directions.
type LinkIndex struct {
	relation *Relation[ActivityLink]
}

// NewLinkIndex creates a link index
func NewLinkIndex(session *store.Session) (*LinkIndex, error) {
	relation, err := NewRelation(session, "link",
		View[ActivityLink]{
			Name: viewByActivity,
			Key: func(l ActivityLink) store.Key {
				return store.Key{PK: partition(prefixLinkedPathways, l.ActivityID), SK: l.PathwayID}
			},
		},
		View[ActivityLink]{
			Name: viewByPathway,
			Key: func(l ActivityLink) store.Key {
				return store.Key{PK: partition(prefixLinkedActivities, l.PathwayID), SK: l.ActivityID}
			},
		},
	)
	if err != nil {
		return nil, err
	}
	return &LinkIndex{relation: relation}, nil
}

func (l *LinkIndex) Link(ctx context.Context, link ActivityLink) error {
	return l.relation.Put(ctx, link)
}

// Unlink removes the link; unlinking an absent link is a no-op.
func (l *LinkIndex) Unlink(ctx context.Context, link ActivityLink) error {
	return l.relation.Delete(ctx, link)
}

func (l *LinkIndex) UnlinkStatements(link ActivityLink) []store.Statement {
	return l.relation.DeleteStatements(link)
}

// FindByActivity returns the links of an activity, ordered by pathway id.
func (l *LinkIndex) FindByActivity(ctx context.Context, activityID string) ([]ActivityLink, error) {
	links, err := l.relation.Query(ctx, viewByActivity, partition(prefixLinkedPathways, activityID), "")
	if err != nil {
		return nil, fmt.Errorf("failed to find links of activity %s: %w", activityID, err)
	}
	return links, nil
}

// FindByPathway returns the activities linked into a pathway, ordered by activity id.
func (l *LinkIndex) FindByPathway(ctx context.Context, pathwayID string) ([]ActivityLink, error) {
	links, err := l.relation.Query(ctx, viewByPathway, partition(prefixLinkedActivities, pathwayID), "")
	if err != nil {
		return nil, fmt.Errorf("failed to find links of pathway %s: %w", pathwayID, err)
	}
	return links, nil
}
