package models

// Spec is an immutable, deduplicated bundle of configuration attributes
// describing the shape of a resource during a period. Its identity is the
// full attribute tuple; two periods with equal tuples share one spec row.
type Spec interface {
	// Kind returns the resource kind this spec variant belongs to.
	Kind() ResourceKind

	// Attributes returns the full identity tuple keyed by column name.
	Attributes() map[string]interface{}

	// Equal reports whether two specs carry the same attribute tuple.
	Equal(other Spec) bool
}

// InstanceSpec describes a compute instance: its flavor and state.
type InstanceSpec struct {
	InstanceType string
	State        string
}

// NewInstanceSpecFromTraits projects the instance spec attributes out of
// normalized event traits.
func NewInstanceSpecFromTraits(traits Traits) (Spec, error) {
	if !traits.Has(TraitInstanceType) {
		return nil, NewValidationError("instance event is missing the instance_type trait")
	}
	if !traits.Has(TraitState) {
		return nil, NewValidationError("instance event is missing the state trait")
	}
	return InstanceSpec{
		InstanceType: traits.String(TraitInstanceType),
		State:        traits.String(TraitState),
	}, nil
}

func (s InstanceSpec) Kind() ResourceKind { return KindInstance }

func (s InstanceSpec) Attributes() map[string]interface{} {
	return map[string]interface{}{
		"instance_type": s.InstanceType,
		"state":         s.State,
	}
}

func (s InstanceSpec) Equal(other Spec) bool {
	o, ok := other.(InstanceSpec)
	return ok && o == s
}

// VolumeSpec describes a block storage volume: its type, size and state.
type VolumeSpec struct {
	VolumeType string
	VolumeSize int64
	State      string
}

// NewVolumeSpecFromTraits projects the volume spec attributes out of
// normalized event traits.
func NewVolumeSpecFromTraits(traits Traits) (Spec, error) {
	if !traits.Has(TraitVolumeType) {
		return nil, NewValidationError("volume event is missing the volume_type trait")
	}
	if !traits.Has(TraitVolumeSize) {
		return nil, NewValidationError("volume event is missing the volume_size trait")
	}
	if !traits.Has(TraitState) {
		return nil, NewValidationError("volume event is missing the state trait")
	}
	return VolumeSpec{
		VolumeType: traits.String(TraitVolumeType),
		VolumeSize: traits.Int(TraitVolumeSize),
		State:      traits.String(TraitState),
	}, nil
}

func (s VolumeSpec) Kind() ResourceKind { return KindVolume }

func (s VolumeSpec) Attributes() map[string]interface{} {
	return map[string]interface{}{
		"volume_type": s.VolumeType,
		"volume_size": s.VolumeSize,
		"state":       s.State,
	}
}

func (s VolumeSpec) Equal(other Spec) bool {
	o, ok := other.(VolumeSpec)
	return ok && o == s
}
