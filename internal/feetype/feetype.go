package feetype

import (
	"errors"
	"sort"
	"strings"
)

// FeeType identifies a billable fee dimension of a waybill.
type FeeType string

const (
	PerShipment      FeeType = "per_shipment"
	FirstLeg         FeeType = "first_leg"
	LastLeg          FeeType = "last_leg"
	DifferentialLine FeeType = "differential_line"
)

var ErrInvalidFeeType = errors.New("invalid_fee_type")

// All lists fee types in billing order.
var All = []FeeType{PerShipment, FirstLeg, LastLeg, DifferentialLine}

func Parse(value string) (FeeType, error) {
	switch FeeType(strings.ToLower(strings.TrimSpace(value))) {
	case PerShipment:
		return PerShipment, nil
	case FirstLeg:
		return FirstLeg, nil
	case LastLeg:
		return LastLeg, nil
	case DifferentialLine:
		return DifferentialLine, nil
	default:
		return "", ErrInvalidFeeType
	}
}

func (t FeeType) Valid() bool {
	_, err := Parse(string(t))
	return err == nil
}

// RequiresProducts reports whether schedules of this type are scoped to products.
func (t FeeType) RequiresProducts() bool {
	return t != PerShipment
}

func (t FeeType) bit() Set {
	switch t {
	case PerShipment:
		return 1 << 0
	case FirstLeg:
		return 1 << 1
	case LastLeg:
		return 1 << 2
	case DifferentialLine:
		return 1 << 3
	default:
		return 0
	}
}

// Set is a bitmask of fee types. Customers carry it as category tags and
// products as the fee types they participate in.
type Set int

func NewSet(types ...FeeType) Set {
	var s Set
	for _, t := range types {
		s |= t.bit()
	}
	return s
}

func ParseSet(values []string) (Set, error) {
	var s Set
	for _, v := range values {
		t, err := Parse(v)
		if err != nil {
			return 0, err
		}
		s |= t.bit()
	}
	return s, nil
}

func (s Set) Has(t FeeType) bool {
	b := t.bit()
	return b != 0 && s&b == b
}

func (s Set) With(t FeeType) Set {
	return s | t.bit()
}

func (s Set) Types() []FeeType {
	out := make([]FeeType, 0, len(All))
	for _, t := range All {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s Set) Strings() []string {
	types := s.Types()
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}
