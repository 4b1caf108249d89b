package enums

import "fmt"

// ProductState tags the lifecycle of a catalog product. Soft deletion moves a
// product to StateDeleted; the row and its inventory record stay in place.
type ProductState string

const (
	ProductStateActive  ProductState = "active"
	ProductStateDeleted ProductState = "deleted"
)

var validProductStates = []ProductState{
	ProductStateActive,
	ProductStateDeleted,
}

func (s ProductState) String() string {
	return string(s)
}

func (s ProductState) IsValid() bool {
	for _, candidate := range validProductStates {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseProductState(value string) (ProductState, error) {
	for _, candidate := range validProductStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product state %q", value)
}
