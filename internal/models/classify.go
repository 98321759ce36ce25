package models

import "strings"

// Decision is the classifier outcome for an event type.
type Decision int

const (
	// DecisionHandled means the event maps to a known resource kind
	DecisionHandled Decision = iota
	// DecisionIgnored means the event type is on the ignore list
	DecisionIgnored
	// DecisionUnsupported means the event type is outside the taxonomy
	DecisionUnsupported
)

// KindHandler bundles everything the reduction pipeline needs for one
// resource kind: the kind tag, the spec variant constructor, and the
// kind-specific ignore predicate.
type KindHandler struct {
	Kind           ResourceKind
	NewSpec        func(Traits) (Spec, error)
	IsEventIgnored func(*Event) bool
}

var instanceHandler = &KindHandler{
	Kind:           KindInstance,
	NewSpec:        NewInstanceSpecFromTraits,
	IsEventIgnored: isInstanceEventIgnored,
}

var volumeHandler = &KindHandler{
	Kind:           KindVolume,
	NewSpec:        NewVolumeSpecFromTraits,
	IsEventIgnored: isVolumeEventIgnored,
}

// classifierRule matches an event type by prefix (or exactly) and carries the
// handler for it. A nil handler means the event type is ignored.
type classifierRule struct {
	prefix  string
	exact   bool
	handler *KindHandler
}

// classifierRules is evaluated in order: the specific compute.instance.
// prefix must win over the general compute. ignore entry, and the exact
// volume.usage entry over the volume. handler. Adding a resource kind is one
// table entry.
var classifierRules = []classifierRule{
	{prefix: "compute.instance.", handler: instanceHandler},
	{prefix: "aggregate."},
	{prefix: "compute_task."},
	{prefix: "compute."},
	{prefix: "flavor."},
	{prefix: "keypair."},
	{prefix: "libvirt."},
	{prefix: "metrics."},
	{prefix: "scheduler."},
	{prefix: "server_group."},
	{prefix: "service."},
	{prefix: "volume.usage", exact: true},
	{prefix: "volume.", handler: volumeHandler},
}

// Classify maps an event type to a handled resource kind, the ignore list,
// or unsupported.
func Classify(eventType string) (Decision, *KindHandler) {
	for _, rule := range classifierRules {
		if rule.exact {
			if eventType != rule.prefix {
				continue
			}
		} else if !strings.HasPrefix(eventType, rule.prefix) {
			continue
		}
		if rule.handler == nil {
			return DecisionIgnored, nil
		}
		return DecisionHandled, rule.handler
	}
	return DecisionUnsupported, nil
}

// isInstanceEventIgnored skips deletion announcements that lack the
// authoritative deleted_at timestamp (the event carrying it follows), and
// events that cannot bootstrap a period because both created_at and
// launched_at are missing.
func isInstanceEventIgnored(e *Event) bool {
	if e.Traits.String(TraitState) == "deleted" && !e.Traits.Has(TraitDeletedAt) {
		return true
	}
	if !e.Traits.Has(TraitCreatedAt) && !e.Traits.Has(TraitLaunchedAt) {
		return true
	}
	return false
}

// isVolumeEventIgnored skips transient volume states without definitive timing.
func isVolumeEventIgnored(e *Event) bool {
	switch e.Traits.String(TraitState) {
	case "creating", "deleting":
		return true
	}
	return false
}
