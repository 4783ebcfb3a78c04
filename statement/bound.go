package statement

import (
	"database/sql/driver"
	"math"
)

// ParameterMode is the direction of a bound parameter.
type ParameterMode int

const (
	ModeIn ParameterMode = iota
	ModeOut
	ModeInOut
)

// ParameterMapping binds one placeholder to a property of the parameter object.
// An empty Property binds the parameter object itself.
type ParameterMapping struct {
	Property string
	Mode     ParameterMode
}

// In returns an input mapping for property.
func In(property string) ParameterMapping { return ParameterMapping{Property: property} }

// Out returns an output mapping for property.
func Out(property string) ParameterMapping {
	return ParameterMapping{Property: property, Mode: ModeOut}
}

// BoundSQL is the SQL text produced for one call plus its parameter mappings.
type BoundSQL struct {
	SQL               string
	ParameterMappings []ParameterMapping
	Parameter         any
	additional        map[string]any
}

// NewBoundSQL creates a BoundSQL.
func NewBoundSQL(sql string, mappings []ParameterMapping, param any) *BoundSQL {
	return &BoundSQL{SQL: sql, ParameterMappings: mappings, Parameter: param}
}

// SetAdditionalParameter registers a value produced while building the SQL.
// Additional parameters take precedence over properties of the parameter object.
func (b *BoundSQL) SetAdditionalParameter(name string, value any) {
	if b.additional == nil {
		b.additional = make(map[string]any)
	}
	b.additional[name] = value
}

// AdditionalParameter returns an additional parameter by name.
func (b *BoundSQL) AdditionalParameter(name string) (any, bool) {
	v, ok := b.additional[name]
	return v, ok
}

// Value resolves the value bound to m.
func (b *BoundSQL) Value(m ParameterMapping) (any, error) {
	if v, ok := b.AdditionalParameter(m.Property); ok {
		return v, nil
	}
	if b.Parameter == nil {
		return nil, nil
	}
	if IsSimpleValue(b.Parameter) {
		return b.Parameter, nil
	}
	return PropertyValue(b.Parameter, m.Property)
}

// Args resolves every non-OUT mapping into ordinal driver arguments.
func (b *BoundSQL) Args() ([]driver.NamedValue, error) {
	args := make([]driver.NamedValue, 0, len(b.ParameterMappings))
	for i, m := range b.ParameterMappings {
		if m.Mode == ModeOut {
			continue
		}
		v, err := b.Value(m)
		if err != nil {
			return nil, err
		}
		args = append(args, driver.NamedValue{Ordinal: i + 1, Value: v})
	}
	return args, nil
}

// HasOutParameters reports whether any mapping writes back to the parameter object.
func (b *BoundSQL) HasOutParameters() bool {
	for _, m := range b.ParameterMappings {
		if m.Mode != ModeIn {
			return true
		}
	}
	return false
}

// NoRowLimit is the limit of DefaultRowBounds.
const NoRowLimit = math.MaxInt32

// RowBounds selects a window of the result rows.
type RowBounds struct {
	Offset int
	Limit  int
}

// DefaultRowBounds returns every row.
func DefaultRowBounds() RowBounds { return RowBounds{Offset: 0, Limit: NoRowLimit} }

// IsDefault reports whether b selects every row.
func (b RowBounds) IsDefault() bool { return b.Offset == 0 && b.Limit == NoRowLimit }
