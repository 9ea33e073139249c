// Package competency defines competency-framework documents, their items, the
// typed associations between items and the tags that link items to
// courseware elements.
package competency

import (
	"fmt"
	"strings"
	"time"

	"coursegraph-backend/domain/courseware"
)

// Document is a competency framework.
type Document struct {
	ID          string    `dynamodbav:"id" validate:"required"`
	Title       string    `dynamodbav:"title" validate:"required,max=500"`
	WorkspaceID string    `dynamodbav:"workspaceId,omitempty"`
	CreatedAt   time.Time `dynamodbav:"createdAt"`
	CreatedBy   string    `dynamodbav:"createdBy,omitempty"`
}

// DocumentItem is one competency statement within a document.
type DocumentItem struct {
	ID                   string    `dynamodbav:"id" validate:"required"`
	DocumentID           string    `dynamodbav:"documentId" validate:"required"`
	FullStatement        string    `dynamodbav:"fullStatement,omitempty"`
	AbbreviatedStatement string    `dynamodbav:"abbreviatedStatement,omitempty"`
	HumanCodingScheme    string    `dynamodbav:"humanCodingScheme,omitempty"`
	CreatedAt            time.Time `dynamodbav:"createdAt"`
	CreatedBy            string    `dynamodbav:"createdBy,omitempty"`
}

// AssociationType is the kind of a directed edge between two items
type AssociationType string

const (
	AssociationIsChildOf     AssociationType = "IS_CHILD_OF"
	AssociationIsPeerOf      AssociationType = "IS_PEER_OF"
	AssociationPrecedes      AssociationType = "PRECEDES"
	AssociationIsRelatedTo   AssociationType = "IS_RELATED_TO"
	AssociationReplacedBy    AssociationType = "REPLACED_BY"
	AssociationExactMatchOf  AssociationType = "EXACT_MATCH_OF"
	AssociationIsPartOf      AssociationType = "IS_PART_OF"
	AssociationExemplar      AssociationType = "EXEMPLAR"
	AssociationHasSkillLevel AssociationType = "HAS_SKILL_LEVEL"
)

// IsValid checks if the association type is known
func (t AssociationType) IsValid() bool {
	switch t {
	case AssociationIsChildOf, AssociationIsPeerOf, AssociationPrecedes,
		AssociationIsRelatedTo, AssociationReplacedBy, AssociationExactMatchOf,
		AssociationIsPartOf, AssociationExemplar, AssociationHasSkillLevel:
		return true
	default:
		return false
	}
}

func (t AssociationType) String() string {
	return string(t)
}

// ParseAssociationType parses a case-insensitive association type name.
func ParseAssociationType(s string) (AssociationType, error) {
	t := AssociationType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown association type %q", s)
	}
	return t, nil
}

// ItemAssociation is a directed, typed edge from one item to another.
type ItemAssociation struct {
	ID                string          `dynamodbav:"id" validate:"required"`
	DocumentID        string          `dynamodbav:"documentId" validate:"required"`
	OriginItemID      string          `dynamodbav:"originItemId" validate:"required"`
	DestinationItemID string          `dynamodbav:"destinationItemId" validate:"required,nefield=OriginItemID"`
	Type              AssociationType `dynamodbav:"associationType" validate:"required,enum"`
	CreatedAt         time.Time       `dynamodbav:"createdAt"`
	CreatedBy         string          `dynamodbav:"createdBy,omitempty"`
}

// Direction selects which end of an association a lookup is anchored at
type Direction string

const (
	DirectionOrigin      Direction = "ORIGIN"
	DirectionDestination Direction = "DESTINATION"
)

// IsValid checks if the direction is known
func (d Direction) IsValid() bool {
	return d == DirectionOrigin || d == DirectionDestination
}

// DocumentItemTag links a document item to a courseware element.
type DocumentItemTag struct {
	DocumentID     string                 `dynamodbav:"documentId" validate:"required"`
	DocumentItemID string                 `dynamodbav:"documentItemId" validate:"required"`
	ElementID      string                 `dynamodbav:"elementId" validate:"required"`
	ElementType    courseware.ElementType `dynamodbav:"elementType" validate:"required,enum"`
}
