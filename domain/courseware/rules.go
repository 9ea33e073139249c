package courseware

// containment lists the child types each parent type may own.
var containment = map[ElementType][]ElementType{
	ElementTypeActivity:    {ElementTypePathway, ElementTypeComponent, ElementTypeScenario},
	ElementTypePathway:     {ElementTypeActivity, ElementTypeInteractive},
	ElementTypeInteractive: {ElementTypeComponent, ElementTypeFeedback, ElementTypeScenario},
}

// CanContain reports whether a parent of type parent may own a child of type child.
func CanContain(parent, child ElementType) bool {
	for _, t := range containment[parent] {
		if t == child {
			return true
		}
	}
	return false
}

// ChildTypes returns the child types a parent type may own, in a stable order.
func ChildTypes(parent ElementType) []ElementType {
	out := make([]ElementType, len(containment[parent]))
	copy(out, containment[parent])
	return out
}

// Ordered reports whether children of this parent type are kept in an
// ordered sequence rather than an unordered set.
func Ordered(parent ElementType) bool {
	return parent == ElementTypePathway
}
