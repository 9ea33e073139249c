package gateway

import (
	"context"
	"fmt"

	"coursegraph-backend/domain/courseware"
	"coursegraph-backend/infrastructure/persistence"
	"coursegraph-backend/infrastructure/store"
	apperrors "coursegraph-backend/pkg/errors"
	"coursegraph-backend/pkg/observability"
	"coursegraph-backend/pkg/validation"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CoursewareGateway maintains the authoring tree: element records, parent
// edges, pathway child order, activity links and the bindings that hang off
// an element.
type CoursewareGateway struct {
	base
	session  *store.Session
	elements *persistence.Elements
	parents  *persistence.ParentIndex
	order    *persistence.OrderedList
	links    *persistence.LinkIndex
	tags     *persistence.TagIndex
	scopes   *persistence.ScopeRegistry
	logger   *zap.Logger
}

// NewCoursewareGateway creates a new courseware gateway
func NewCoursewareGateway(
	session *store.Session,
	elements *persistence.Elements,
	parents *persistence.ParentIndex,
	order *persistence.OrderedList,
	links *persistence.LinkIndex,
	tags *persistence.TagIndex,
	scopes *persistence.ScopeRegistry,
) *CoursewareGateway {
	return &CoursewareGateway{
		base:     newBase(),
		session:  session,
		elements: elements,
		parents:  parents,
		order:    order,
		links:    links,
		tags:     tags,
		scopes:   scopes,
		logger:   session.Logger(),
	}
}

// CreateActivity writes a new activity. A missing id or creation time is generated.
func (g *CoursewareGateway) CreateActivity(ctx context.Context, a courseware.Activity) (courseware.Activity, error) {
	a.ID, a.CreatedAt = g.stamp(a.ID, a.CreatedAt)
	if err := g.createElement(ctx, &a); err != nil {
		return courseware.Activity{}, err
	}
	return a, nil
}

func (g *CoursewareGateway) CreatePathway(ctx context.Context, p courseware.Pathway) (courseware.Pathway, error) {
	p.ID, p.CreatedAt = g.stamp(p.ID, p.CreatedAt)
	if err := g.createElement(ctx, &p); err != nil {
		return courseware.Pathway{}, err
	}
	return p, nil
}

func (g *CoursewareGateway) CreateInteractive(ctx context.Context, i courseware.Interactive) (courseware.Interactive, error) {
	i.ID, i.CreatedAt = g.stamp(i.ID, i.CreatedAt)
	if err := g.createElement(ctx, &i); err != nil {
		return courseware.Interactive{}, err
	}
	return i, nil
}

func (g *CoursewareGateway) CreateComponent(ctx context.Context, c courseware.Component) (courseware.Component, error) {
	c.ID, c.CreatedAt = g.stamp(c.ID, c.CreatedAt)
	if err := g.createElement(ctx, &c); err != nil {
		return courseware.Component{}, err
	}
	return c, nil
}

func (g *CoursewareGateway) CreateFeedback(ctx context.Context, f courseware.Feedback) (courseware.Feedback, error) {
	f.ID, f.CreatedAt = g.stamp(f.ID, f.CreatedAt)
	if err := g.createElement(ctx, &f); err != nil {
		return courseware.Feedback{}, err
	}
	return f, nil
}

func (g *CoursewareGateway) CreateScenario(ctx context.Context, s courseware.Scenario) (courseware.Scenario, error) {
	s.ID, s.CreatedAt = g.stamp(s.ID, s.CreatedAt)
	if err := g.createElement(ctx, &s); err != nil {
		return courseware.Scenario{}, err
	}
	return s, nil
}

// createElement writes the typed record and the generic record of el in one batch.
func (g *CoursewareGateway) createElement(ctx context.Context, el courseware.Element) (err error) {
	ref := courseware.RefOf(el)
	ctx, span := g.start(ctx, "gateway.CreateElement",
		attribute.String("element.id", ref.ID),
		attribute.String("element.type", ref.Type.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.Struct(el); err != nil {
		return err
	}
	stmts, err := g.elements.PutStatements(el)
	if err != nil {
		return err
	}
	if err := g.session.ExecBatch(ctx, "courseware.create", stmts); err != nil {
		return fmt.Errorf("failed to create %s %s: %w", ref.Type, ref.ID, err)
	}

	g.logger.Debug("Element created",
		zap.String("elementId", ref.ID),
		zap.String("elementType", ref.Type.String()),
	)
	return nil
}

// FindElement resolves id through the generic record and reads the typed
// record it names.
func (g *CoursewareGateway) FindElement(ctx context.Context, id string) (el courseware.Element, found bool, err error) {
	ctx, span := g.start(ctx, "gateway.FindElement", attribute.String("element.id", id))
	defer func() { observability.EndSpan(span, err) }()

	ref, ok, err := g.elements.Directory.Find(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	return g.elements.Get(ctx, ref)
}

func (g *CoursewareGateway) FindActivity(ctx context.Context, id string) (courseware.Activity, bool, error) {
	return g.elements.Activities.Get(ctx, id)
}

func (g *CoursewareGateway) FindPathway(ctx context.Context, id string) (courseware.Pathway, bool, error) {
	return g.elements.Pathways.Get(ctx, id)
}

func (g *CoursewareGateway) FindInteractive(ctx context.Context, id string) (courseware.Interactive, bool, error) {
	return g.elements.Interactives.Get(ctx, id)
}

func (g *CoursewareGateway) FindComponent(ctx context.Context, id string) (courseware.Component, bool, error) {
	return g.elements.Components.Get(ctx, id)
}

func (g *CoursewareGateway) FindFeedback(ctx context.Context, id string) (courseware.Feedback, bool, error) {
	return g.elements.Feedback.Get(ctx, id)
}

func (g *CoursewareGateway) FindScenario(ctx context.Context, id string) (courseware.Scenario, bool, error) {
	return g.elements.Scenarios.Get(ctx, id)
}

// resolveEdge checks that both ends exist with the expected types and that
// the parent may own the child.
func (g *CoursewareGateway) resolveEdge(ctx context.Context, parentID, childID string, childType courseware.ElementType) (persistence.ParentEdge, error) {
	if parentID == "" || childID == "" {
		return persistence.ParentEdge{}, apperrors.NewValidation("parent and child ids are required")
	}
	if parentID == childID {
		return persistence.ParentEdge{}, apperrors.NewValidationf("element %s cannot contain itself", childID)
	}
	if !childType.IsValid() {
		return persistence.ParentEdge{}, apperrors.NewValidationf("unknown child type %q", childType)
	}

	parentType, err := g.requireType(ctx, parentID, "")
	if err != nil {
		return persistence.ParentEdge{}, err
	}
	if _, err := g.requireType(ctx, childID, childType); err != nil {
		return persistence.ParentEdge{}, err
	}
	if !courseware.CanContain(parentType, childType) {
		return persistence.ParentEdge{}, apperrors.NewValidationf("%s cannot contain %s, allowed child types: %v",
			parentType, childType, courseware.ChildTypes(parentType))
	}

	return persistence.ParentEdge{
		ChildID:    childID,
		ChildType:  childType,
		ParentID:   parentID,
		ParentType: parentType,
	}, nil
}

// requireType resolves the type of id. A missing element is a not-found
// error; when want is set, any other type is a validation error.
func (g *CoursewareGateway) requireType(ctx context.Context, id string, want courseware.ElementType) (courseware.ElementType, error) {
	t, ok, err := g.elements.Directory.ResolveType(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperrors.NewNotFound(fmt.Sprintf("element %s not found", id))
	}
	if want != "" && t != want {
		return "", apperrors.NewValidationf("element %s is a %s, not a %s", id, t, want)
	}
	return t, nil
}

// AttachChild makes parentID the owner of childID. Children of a pathway are
// also appended to its ordered child list in the same batch, unless the list
// already holds them, so a retried attach converges. Attaching a
// child that already has a parent moves its forward pointer without
// removing it from the previous parent.
func (g *CoursewareGateway) AttachChild(ctx context.Context, parentID, childID string, childType courseware.ElementType) (err error) {
	ctx, span := g.start(ctx, "gateway.AttachChild",
		attribute.String("parent.id", parentID),
		attribute.String("child.id", childID),
		attribute.String("child.type", childType.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	edge, err := g.resolveEdge(ctx, parentID, childID, childType)
	if err != nil {
		return err
	}
	return g.attach(ctx, edge, persistence.Append, "courseware.attach")
}

// InsertChildAt attaches childID to the pathway pathwayID at position in its
// ordered child list. Replaying an insert adds the child again.
func (g *CoursewareGateway) InsertChildAt(ctx context.Context, pathwayID, childID string, childType courseware.ElementType, position int) (err error) {
	ctx, span := g.start(ctx, "gateway.InsertChildAt",
		attribute.String("parent.id", pathwayID),
		attribute.String("child.id", childID),
		attribute.Int("position", position),
	)
	defer func() { observability.EndSpan(span, err) }()

	edge, err := g.resolveEdge(ctx, pathwayID, childID, childType)
	if err != nil {
		return err
	}
	if !courseware.Ordered(edge.ParentType) {
		return apperrors.NewValidationf("%s %s does not keep ordered children", edge.ParentType, pathwayID)
	}
	return g.attach(ctx, edge, position, "courseware.insert")
}

func (g *CoursewareGateway) attach(ctx context.Context, edge persistence.ParentEdge, position int, operation string) error {
	stmts, err := g.parents.AttachStatements(edge)
	if err != nil {
		return err
	}
	if courseware.Ordered(edge.ParentType) {
		child := persistence.Child{ID: edge.ChildID, Type: edge.ChildType}
		var (
			insert []store.Statement
			err    error
		)
		if position == persistence.Append {
			insert, err = g.order.AppendStatements(ctx, edge.ParentID, child)
		} else {
			insert, err = g.order.InsertStatements(ctx, edge.ParentID, child, position)
		}
		if err != nil {
			return err
		}
		stmts = append(stmts, insert...)
	}
	if err := g.session.ExecBatch(ctx, operation, stmts); err != nil {
		return fmt.Errorf("failed to attach %s to %s: %w", edge.ChildID, edge.ParentID, err)
	}
	return nil
}

// DetachChild removes childID from its parent: the forward pointer, the
// reverse row and, for a pathway parent, the ordered list entry. The child
// record is untouched. Detaching a child without a parent is a no-op.
func (g *CoursewareGateway) DetachChild(ctx context.Context, childID string) (err error) {
	ctx, span := g.start(ctx, "gateway.DetachChild", attribute.String("child.id", childID))
	defer func() { observability.EndSpan(span, err) }()

	edge, ok, err := g.parents.FindParent(ctx, childID)
	if err != nil || !ok {
		return err
	}
	stmts := g.parents.DetachStatements(edge)
	if courseware.Ordered(edge.ParentType) {
		stmts = append(stmts, g.order.RemoveStatements(edge.ParentID, childID)...)
	}
	if err := g.session.ExecBatch(ctx, "courseware.detach", stmts); err != nil {
		return fmt.Errorf("failed to detach %s from %s: %w", childID, edge.ParentID, err)
	}
	return nil
}

// RemoveChild removes childID from the pathway's ordered list and its
// reverse row. The forward pointer is removed only when it names this
// pathway.
func (g *CoursewareGateway) RemoveChild(ctx context.Context, pathwayID, childID string) (err error) {
	ctx, span := g.start(ctx, "gateway.RemoveChild",
		attribute.String("parent.id", pathwayID),
		attribute.String("child.id", childID),
	)
	defer func() { observability.EndSpan(span, err) }()

	current, err := g.order.Fetch(ctx, pathwayID)
	if err != nil {
		return err
	}
	forward, hasParent, err := g.parents.FindParent(ctx, childID)
	if err != nil {
		return err
	}

	stmts := g.order.RemoveStatements(pathwayID, childID)
	switch childType := current.Types[childID]; {
	case hasParent && forward.ParentID == pathwayID:
		stmts = append(stmts, g.parents.DetachStatements(forward)...)
	case childType != "":
		reverse, err := g.parents.ReverseDeleteStatement(persistence.ParentEdge{
			ChildID:    childID,
			ChildType:  childType,
			ParentID:   pathwayID,
			ParentType: courseware.ElementTypePathway,
		})
		if err != nil {
			return err
		}
		stmts = append(stmts, reverse)
	}
	return g.session.ExecBatch(ctx, "courseware.remove", stmts)
}

// Reorder rewrites the pathway's child sequence. orderedIDs must list each
// current child exactly once. Types come from the stored type map, falling
// back to the generic record for entries that lost theirs.
func (g *CoursewareGateway) Reorder(ctx context.Context, pathwayID string, orderedIDs []string) (err error) {
	ctx, span := g.start(ctx, "gateway.Reorder",
		attribute.String("parent.id", pathwayID),
		attribute.Int("children", len(orderedIDs)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if _, err := g.requireType(ctx, pathwayID, courseware.ElementTypePathway); err != nil {
		return err
	}
	current, err := g.order.Fetch(ctx, pathwayID)
	if err != nil {
		return err
	}
	members := make(map[string]bool, len(current.IDs))
	for _, id := range current.IDs {
		members[id] = true
	}
	if len(orderedIDs) != len(members) {
		return apperrors.NewValidationf("reorder of %s lists %d children, the pathway has %d", pathwayID, len(orderedIDs), len(members))
	}

	children := make([]persistence.Child, 0, len(orderedIDs))
	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if seen[id] {
			return apperrors.NewValidationf("child %s is listed twice", id)
		}
		if !members[id] {
			return apperrors.NewValidationf("%s is not a child of %s", id, pathwayID)
		}
		seen[id] = true

		t, ok := current.Types[id]
		if !ok {
			t, ok, err = g.elements.Directory.ResolveType(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.NewValidationf("child %s has no known type", id)
			}
		}
		children = append(children, persistence.Child{ID: id, Type: t})
	}
	return g.order.ReplaceAll(ctx, pathwayID, children)
}

// FindParent returns the owner of childID.
func (g *CoursewareGateway) FindParent(ctx context.Context, childID string) (courseware.ElementRef, bool, error) {
	edge, ok, err := g.parents.FindParent(ctx, childID)
	if err != nil || !ok {
		return courseware.ElementRef{}, false, err
	}
	return courseware.ElementRef{ID: edge.ParentID, Type: edge.ParentType}, true, nil
}

// FindChildren returns the children of parentID. A pathway's children come
// in list order; other parents list their children by type, then id.
func (g *CoursewareGateway) FindChildren(ctx context.Context, parentID string) (refs []courseware.ElementRef, err error) {
	ctx, span := g.start(ctx, "gateway.FindChildren", attribute.String("parent.id", parentID))
	defer func() { observability.EndSpan(span, err) }()

	parentType, ok, err := g.elements.Directory.ResolveType(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if ok && courseware.Ordered(parentType) {
		children, err := g.order.Fetch(ctx, parentID)
		if err != nil {
			return nil, err
		}
		refs = make([]courseware.ElementRef, 0, len(children.IDs))
		for _, c := range children.Ordered() {
			refs = append(refs, courseware.ElementRef{ID: c.ID, Type: c.Type})
		}
		return refs, nil
	}
	return g.FindChildrenByType(ctx, parentID, "")
}

// FindChildrenByType returns the reverse rows of parentID, restricted to
// childType when it is set.
func (g *CoursewareGateway) FindChildrenByType(ctx context.Context, parentID string, childType courseware.ElementType) ([]courseware.ElementRef, error) {
	edges, err := g.parents.FindChildren(ctx, parentID, childType)
	if err != nil {
		return nil, err
	}
	refs := make([]courseware.ElementRef, 0, len(edges))
	for _, e := range edges {
		refs = append(refs, courseware.ElementRef{ID: e.ChildID, Type: e.ChildType})
	}
	return refs, nil
}

// LinkActivity places an activity into a pathway it does not own.
func (g *CoursewareGateway) LinkActivity(ctx context.Context, activityID, pathwayID string) (err error) {
	ctx, span := g.start(ctx, "gateway.LinkActivity",
		attribute.String("activity.id", activityID),
		attribute.String("pathway.id", pathwayID),
	)
	defer func() { observability.EndSpan(span, err) }()

	if _, err := g.requireType(ctx, activityID, courseware.ElementTypeActivity); err != nil {
		return err
	}
	if _, err := g.requireType(ctx, pathwayID, courseware.ElementTypePathway); err != nil {
		return err
	}
	return g.links.Link(ctx, persistence.ActivityLink{ActivityID: activityID, PathwayID: pathwayID})
}

// UnlinkActivity removes a link; an absent link is a no-op.
func (g *CoursewareGateway) UnlinkActivity(ctx context.Context, activityID, pathwayID string) error {
	return g.links.Unlink(ctx, persistence.ActivityLink{ActivityID: activityID, PathwayID: pathwayID})
}

func (g *CoursewareGateway) FindLinkedPathways(ctx context.Context, activityID string) ([]string, error) {
	links, err := g.links.FindByActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.PathwayID)
	}
	return ids, nil
}

func (g *CoursewareGateway) FindLinkedActivities(ctx context.Context, pathwayID string) ([]string, error) {
	links, err := g.links.FindByPathway(ctx, pathwayID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ActivityID)
	}
	return ids, nil
}

// DeleteElement removes an element and every index row that refers to it:
// its parent edge and list entry, the edges to its own children, its own
// child list, its links, tags and scope bindings, and its generic record.
// The typed record is deleted or tombstoned by the policy of its kind.
// Children survive as parentless elements. Deleting an unknown id is a no-op.
func (g *CoursewareGateway) DeleteElement(ctx context.Context, id string) (err error) {
	ctx, span := g.start(ctx, "gateway.DeleteElement", attribute.String("element.id", id))
	defer func() { observability.EndSpan(span, err) }()

	ref, ok, err := g.elements.Directory.Find(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		g.logger.Debug("Delete of unknown element ignored", zap.String("elementId", id))
		return nil
	}

	var stmts []store.Statement

	if edge, ok, err := g.parents.FindParent(ctx, id); err != nil {
		return err
	} else if ok {
		stmts = append(stmts, g.parents.DetachStatements(edge)...)
		if courseware.Ordered(edge.ParentType) {
			stmts = append(stmts, g.order.RemoveStatements(edge.ParentID, id)...)
		}
	}

	childStmts, err := g.childEdgeDeletes(ctx, id)
	if err != nil {
		return err
	}
	stmts = append(stmts, childStmts...)
	if courseware.Ordered(ref.Type) {
		stmts = append(stmts, g.order.DeleteStatement(id))
	}

	linkStmts, err := g.linkDeletes(ctx, ref)
	if err != nil {
		return err
	}
	stmts = append(stmts, linkStmts...)

	tags, err := g.tags.FindByElement(ctx, id)
	if err != nil {
		return err
	}
	for _, t := range tags {
		stmts = append(stmts, g.tags.UntagStatements(t)...)
	}

	bindings, err := g.scopes.FindScopesOfElement(ctx, id)
	if err != nil {
		return err
	}
	for _, b := range bindings {
		stmts = append(stmts, g.scopes.UnregisterStatements(b.ScopeURN, id)...)
	}

	own, err := g.elements.DeleteStatements(ref)
	if err != nil {
		return err
	}
	stmts = append(stmts, own...)

	if err := g.session.ExecBatch(ctx, "courseware.delete", stmts); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", ref.Type, id, err)
	}
	g.logger.Info("Element deleted",
		zap.String("elementId", id),
		zap.String("elementType", ref.Type.String()),
		zap.Int("statements", len(stmts)),
	)
	return nil
}

// childEdgeDeletes returns the deletes of the edges from parentID to its
// children. A child whose forward pointer has moved to another parent keeps
// it; only the reverse row is removed.
func (g *CoursewareGateway) childEdgeDeletes(ctx context.Context, parentID string) ([]store.Statement, error) {
	children, err := g.parents.FindChildren(ctx, parentID, "")
	if err != nil {
		return nil, err
	}
	var stmts []store.Statement
	for _, child := range children {
		forward, ok, err := g.parents.FindParent(ctx, child.ChildID)
		if err != nil {
			return nil, err
		}
		if ok && forward.ParentID == parentID {
			stmts = append(stmts, g.parents.DetachStatements(child)...)
			continue
		}
		reverse, err := g.parents.ReverseDeleteStatement(child)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, reverse)
	}
	return stmts, nil
}

func (g *CoursewareGateway) linkDeletes(ctx context.Context, ref courseware.ElementRef) ([]store.Statement, error) {
	var (
		links []persistence.ActivityLink
		err   error
	)
	switch ref.Type {
	case courseware.ElementTypeActivity:
		links, err = g.links.FindByActivity(ctx, ref.ID)
	case courseware.ElementTypePathway:
		links, err = g.links.FindByPathway(ctx, ref.ID)
	}
	if err != nil {
		return nil, err
	}
	var stmts []store.Statement
	for _, l := range links {
		stmts = append(stmts, g.links.UnlinkStatements(l)...)
	}
	return stmts, nil
}

// VerifyPathway compares the pathway's child sequence with its type map.
func (g *CoursewareGateway) VerifyPathway(ctx context.Context, pathwayID string) (persistence.Divergence, error) {
	return g.order.Verify(ctx, pathwayID)
}

// RepairPathway rewrites a diverged child list, resolving missing types
// through the generic records.
func (g *CoursewareGateway) RepairPathway(ctx context.Context, pathwayID string) (d persistence.Divergence, err error) {
	ctx, span := g.start(ctx, "gateway.RepairPathway", attribute.String("pathway.id", pathwayID))
	defer func() { observability.EndSpan(span, err) }()

	return g.order.Repair(ctx, pathwayID, g.elements.Directory)
}

// VerifyParent reads both rows of the edge between childID and parentID.
func (g *CoursewareGateway) VerifyParent(ctx context.Context, childID, parentID string) (persistence.EdgeState, error) {
	return g.parents.Verify(ctx, childID, parentID)
}

// RepairParent makes both rows of the edge between childID and parentID agree.
func (g *CoursewareGateway) RepairParent(ctx context.Context, childID, parentID string) (s persistence.EdgeState, err error) {
	ctx, span := g.start(ctx, "gateway.RepairParent",
		attribute.String("child.id", childID),
		attribute.String("parent.id", parentID),
	)
	defer func() { observability.EndSpan(span, err) }()

	return g.parents.Repair(ctx, childID, parentID)
}
