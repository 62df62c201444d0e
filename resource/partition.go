package resource

import "fmt"

// PartitionSpec declares a secondary index projected from one field.
// MaxLength, when non-zero, truncates a string-valued field to its
// first MaxLength characters before it becomes part of the partition
// key — the typical use is projecting an ISO timestamp's date prefix.
type PartitionSpec struct {
	Name      string
	Field     string
	MaxLength int
}

// value computes this partition's key component for record data. A
// missing source field partitions under the literal string "_none".
func (p PartitionSpec) value(data map[string]any) string {
	v, ok := data[p.Field]
	if !ok || v == nil {
		return "_none"
	}
	s := fmt.Sprintf("%v", v)
	if p.MaxLength > 0 && len(s) > p.MaxLength {
		s = s[:p.MaxLength]
	}
	return s
}

// key returns the auxiliary object path this partition value maps to.
func (p PartitionSpec) key(resourceName, id string, data map[string]any) string {
	return fmt.Sprintf("%s/_partitions/%s/%s/%s", resourceName, p.Name, p.value(data), id)
}
