// Package courseware defines the authoring-tree elements and the rules that
// decide which kinds of element may contain which.
package courseware

import (
	"fmt"
	"strings"
	"time"
)

// ElementType identifies the kind of a courseware element
type ElementType string

const (
	ElementTypeActivity    ElementType = "ACTIVITY"
	ElementTypePathway     ElementType = "PATHWAY"
	ElementTypeInteractive ElementType = "INTERACTIVE"
	ElementTypeComponent   ElementType = "COMPONENT"
	ElementTypeFeedback    ElementType = "FEEDBACK"
	ElementTypeScenario    ElementType = "SCENARIO"
)

// IsValid checks if the element type is known
func (t ElementType) IsValid() bool {
	switch t {
	case ElementTypeActivity, ElementTypePathway, ElementTypeInteractive,
		ElementTypeComponent, ElementTypeFeedback, ElementTypeScenario:
		return true
	default:
		return false
	}
}

// Walkable reports whether elements of this type can be direct members of a
// pathway's ordered sequence.
func (t ElementType) Walkable() bool {
	return t == ElementTypeActivity || t == ElementTypeInteractive
}

// String returns the string representation of the element type
func (t ElementType) String() string {
	return string(t)
}

// ParseElementType parses a case-insensitive element type name.
func ParseElementType(s string) (ElementType, error) {
	t := ElementType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown element type %q", s)
	}
	return t, nil
}

// ElementRef is the generic record of an element: enough to answer what kind
// of thing an id is without knowing the caller's context.
type ElementRef struct {
	ID   string      `dynamodbav:"id" validate:"required"`
	Type ElementType `dynamodbav:"elementType" validate:"required,enum"`
}

// Element is one of the concrete element kinds below. The set is closed.
type Element interface {
	isElement()
}

// Activity is the root authoring unit. It owns pathways, components and
// scenarios and may also be linked into pathways it does not own.
type Activity struct {
	ID              string    `dynamodbav:"id" validate:"required"`
	PluginID        string    `dynamodbav:"pluginId" validate:"required"`
	PluginVersion   string    `dynamodbav:"pluginVersion" validate:"required"`
	Config          string    `dynamodbav:"config,omitempty"`
	Theme           string    `dynamodbav:"theme,omitempty"`
	StudentScopeURN string    `dynamodbav:"studentScopeUrn,omitempty"`
	CreatorID       string    `dynamodbav:"creatorId,omitempty"`
	CreatedAt       time.Time `dynamodbav:"createdAt"`
}

// PathwayType controls how learners walk a pathway's children
type PathwayType string

const (
	PathwayTypeLinear PathwayType = "LINEAR"
	PathwayTypeFree   PathwayType = "FREE"
	PathwayTypeGraph  PathwayType = "GRAPH"
	PathwayTypeRandom PathwayType = "RANDOM"
)

// IsValid checks if the pathway type is known
func (t PathwayType) IsValid() bool {
	switch t {
	case PathwayTypeLinear, PathwayTypeFree, PathwayTypeGraph, PathwayTypeRandom:
		return true
	default:
		return false
	}
}

// Pathway holds an ordered sequence of walkable children.
type Pathway struct {
	ID             string      `dynamodbav:"id" validate:"required"`
	Type           PathwayType `dynamodbav:"pathwayType" validate:"required,enum"`
	Config         string      `dynamodbav:"config,omitempty"`
	PreloadPathway string      `dynamodbav:"preloadPathway,omitempty"`
	CreatedAt      time.Time   `dynamodbav:"createdAt"`
}

type Interactive struct {
	ID              string    `dynamodbav:"id" validate:"required"`
	PluginID        string    `dynamodbav:"pluginId" validate:"required"`
	PluginVersion   string    `dynamodbav:"pluginVersion" validate:"required"`
	Config          string    `dynamodbav:"config,omitempty"`
	StudentScopeURN string    `dynamodbav:"studentScopeUrn,omitempty"`
	CreatedAt       time.Time `dynamodbav:"createdAt"`
}

type Component struct {
	ID            string    `dynamodbav:"id" validate:"required"`
	PluginID      string    `dynamodbav:"pluginId" validate:"required"`
	PluginVersion string    `dynamodbav:"pluginVersion" validate:"required"`
	Config        string    `dynamodbav:"config,omitempty"`
	CreatedAt     time.Time `dynamodbav:"createdAt"`
}

type Feedback struct {
	ID            string    `dynamodbav:"id" validate:"required"`
	PluginID      string    `dynamodbav:"pluginId" validate:"required"`
	PluginVersion string    `dynamodbav:"pluginVersion" validate:"required"`
	Config        string    `dynamodbav:"config,omitempty"`
	CreatedAt     time.Time `dynamodbav:"createdAt"`
}

// ScenarioLifecycle is the moment at which a scenario is evaluated
type ScenarioLifecycle string

const (
	ScenarioLifecycleActivityStarted      ScenarioLifecycle = "ACTIVITY_STARTED"
	ScenarioLifecycleActivityEvaluate     ScenarioLifecycle = "ACTIVITY_EVALUATE"
	ScenarioLifecycleInteractiveEvaluate  ScenarioLifecycle = "INTERACTIVE_EVALUATE"
	ScenarioLifecycleInteractiveCompleted ScenarioLifecycle = "INTERACTIVE_COMPLETED"
)

// IsValid checks if the lifecycle is known
func (l ScenarioLifecycle) IsValid() bool {
	switch l {
	case ScenarioLifecycleActivityStarted, ScenarioLifecycleActivityEvaluate,
		ScenarioLifecycleInteractiveEvaluate, ScenarioLifecycleInteractiveCompleted:
		return true
	default:
		return false
	}
}

// Scenario carries an opaque condition and action pair evaluated at a
// lifecycle point of its parent.
type Scenario struct {
	ID          string            `dynamodbav:"id" validate:"required"`
	Name        string            `dynamodbav:"name" validate:"required,max=200"`
	Description string            `dynamodbav:"description,omitempty"`
	Lifecycle   ScenarioLifecycle `dynamodbav:"lifecycle" validate:"required,enum"`
	Condition   string            `dynamodbav:"condition,omitempty"`
	Actions     string            `dynamodbav:"actions,omitempty"`
	CreatedAt   time.Time         `dynamodbav:"createdAt"`
}

func (*Activity) isElement()    {}
func (*Pathway) isElement()     {}
func (*Interactive) isElement() {}
func (*Component) isElement()   {}
func (*Feedback) isElement()    {}
func (*Scenario) isElement()    {}

// IDOf returns the id of any element.
func IDOf(e Element) string {
	switch v := e.(type) {
	case *Activity:
		return v.ID
	case *Pathway:
		return v.ID
	case *Interactive:
		return v.ID
	case *Component:
		return v.ID
	case *Feedback:
		return v.ID
	case *Scenario:
		return v.ID
	}
	return ""
}

// TypeOf returns the element type of any element.
func TypeOf(e Element) ElementType {
	switch e.(type) {
	case *Activity:
		return ElementTypeActivity
	case *Pathway:
		return ElementTypePathway
	case *Interactive:
		return ElementTypeInteractive
	case *Component:
		return ElementTypeComponent
	case *Feedback:
		return ElementTypeFeedback
	case *Scenario:
		return ElementTypeScenario
	}
	return ""
}

// RefOf returns the generic record of an element.
func RefOf(e Element) ElementRef {
	return ElementRef{ID: IDOf(e), Type: TypeOf(e)}
}
