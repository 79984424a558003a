package asyncrt

// WorkGroupPriority orders scheduling classes. Priority and weight together
// determine how many overflow-queue slices a group receives per draining round.
type WorkGroupPriority int

const (
	WorkGroupPriorityLow WorkGroupPriority = iota
	WorkGroupPriorityMedium
	WorkGroupPriorityHigh
)

// MainWorkGroup is the reserved group every runtime carries. It cannot be
// redefined by configuration.
const MainWorkGroup = "main"

// MaxWorkGroupsCount bounds the number of configured groups per runtime.
const MaxWorkGroupsCount = 16

// WorkGroupOption declares a named scheduling class.
type WorkGroupOption struct {
	Name string

	// WeightCap scales the group's share of overflow-queue draining. Values
	// are clamped to [0.25, 4.0]; the main group uses 1.0.
	WeightCap float64

	// ReservedShare is the share of capacity the group may always claim.
	// It is recorded for introspection; draining derives from weight and
	// priority only.
	ReservedShare float64

	Priority WorkGroupPriority
}

// buildWorkGroups prepends the reserved main group and validates the user
// configuration: redefining "main" and exceeding MaxWorkGroupsCount are
// configuration errors, fatal at Setup.
func buildWorkGroups(user []WorkGroupOption) ([]WorkGroupOption, error) {
	groups := make([]WorkGroupOption, 0, len(user)+1)
	groups = append(groups, WorkGroupOption{
		Name:          MainWorkGroup,
		WeightCap:     1.0,
		ReservedShare: 1.0,
		Priority:      WorkGroupPriorityMedium,
	})

	for _, g := range user {
		if g.Name == MainWorkGroup {
			return nil, ErrWorkGroupExists
		}
		groups = append(groups, g)
	}

	if len(groups) > MaxWorkGroupsCount {
		return nil, ErrInvalidConfig
	}
	return groups, nil
}

// groupCredits converts a group's priority and weight into the number of
// consecutive overflow tasks it may drain per weighted round-robin turn.
func groupCredits(g WorkGroupOption) int {
	var base float64
	switch g.Priority {
	case WorkGroupPriorityHigh:
		base = 4
	case WorkGroupPriorityMedium:
		base = 2
	default:
		base = 1
	}

	weight := g.WeightCap
	if weight < 0.25 {
		weight = 0.25
	}
	if weight > 4.0 {
		weight = 4.0
	}

	credits := int(base * weight)
	if credits < 1 {
		credits = 1
	}
	return credits
}
