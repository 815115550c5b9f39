package utils

// Ptr returns a pointer to v. It is a generic convenience helper for wire
// structs that distinguish "absent" from "zero" via pointer fields.
//
// Example:
//
//	request.Temperature = utils.Ptr(0.7)
func Ptr[T any](v T) *T {
	return &v
}
