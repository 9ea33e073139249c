package courseware

// ScopeReference binds an element to a student scope, recording the plugin
// that produced the element so scoped variables can be resolved at runtime.
type ScopeReference struct {
	ScopeURN      string      `dynamodbav:"scopeUrn" validate:"required"`
	ElementID     string      `dynamodbav:"elementId" validate:"required"`
	ElementType   ElementType `dynamodbav:"elementType" validate:"required,enum"`
	PluginID      string      `dynamodbav:"pluginId,omitempty"`
	PluginVersion string      `dynamodbav:"pluginVersion,omitempty"`
}
