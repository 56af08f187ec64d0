package repository

import (
	"fmt"
	"strings"
)

// Filter accumulates field-op-value conditions and explicit joins, rendering
// them as a parameterised SQL fragment. Conditions are ANDed. Field names are
// caller-supplied identifiers, never user input.
type Filter struct {
	conds []string
	args  []interface{}
	joins []string
}

// NewFilter returns an empty filter that matches everything.
func NewFilter() *Filter {
	return &Filter{}
}

func (f *Filter) placeholder(v interface{}) string {
	f.args = append(f.args, v)
	return fmt.Sprintf("$%d", len(f.args))
}

func (f *Filter) binary(field, op string, v interface{}) *Filter {
	f.conds = append(f.conds, fmt.Sprintf("%s %s %s", field, op, f.placeholder(v)))
	return f
}

// Equal adds field = value.
func (f *Filter) Equal(field string, v interface{}) *Filter { return f.binary(field, "=", v) }

// NotEqual adds field <> value.
func (f *Filter) NotEqual(field string, v interface{}) *Filter { return f.binary(field, "<>", v) }

// Less adds field < value.
func (f *Filter) Less(field string, v interface{}) *Filter { return f.binary(field, "<", v) }

// LessOrEqual adds field <= value.
func (f *Filter) LessOrEqual(field string, v interface{}) *Filter { return f.binary(field, "<=", v) }

// Greater adds field > value.
func (f *Filter) Greater(field string, v interface{}) *Filter { return f.binary(field, ">", v) }

// GreaterOrEqual adds field >= value.
func (f *Filter) GreaterOrEqual(field string, v interface{}) *Filter {
	return f.binary(field, ">=", v)
}

// In adds field IN (values). An empty value list renders FALSE so the filter
// stays well-formed.
func (f *Filter) In(field string, values ...interface{}) *Filter {
	return f.membership(field, "IN", values)
}

// NotIn adds field NOT IN (values). An empty value list renders TRUE.
func (f *Filter) NotIn(field string, values ...interface{}) *Filter {
	return f.membership(field, "NOT IN", values)
}

func (f *Filter) membership(field, op string, values []interface{}) *Filter {
	if len(values) == 0 {
		if op == "IN" {
			f.conds = append(f.conds, "FALSE")
		} else {
			f.conds = append(f.conds, "TRUE")
		}
		return f
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = f.placeholder(v)
	}
	f.conds = append(f.conds, fmt.Sprintf("%s %s (%s)", field, op, strings.Join(placeholders, ", ")))
	return f
}

// Like adds a contains match.
func (f *Filter) Like(field, pattern string) *Filter {
	return f.binary(field, "LIKE", "%"+pattern+"%")
}

// StartsWith adds a prefix match.
func (f *Filter) StartsWith(field, prefix string) *Filter {
	return f.binary(field, "LIKE", prefix+"%")
}

// EndsWith adds a suffix match.
func (f *Filter) EndsWith(field, suffix string) *Filter {
	return f.binary(field, "LIKE", "%"+suffix)
}

// IsNull adds field IS NULL.
func (f *Filter) IsNull(field string) *Filter {
	f.conds = append(f.conds, field+" IS NULL")
	return f
}

// NotNull adds field IS NOT NULL.
func (f *Filter) NotNull(field string) *Filter {
	f.conds = append(f.conds, field+" IS NOT NULL")
	return f
}

// Join adds an inner join with an alias, for queries mixing core fields with
// metadata side-table fields.
func (f *Filter) Join(table, alias, on string) *Filter {
	f.joins = append(f.joins, fmt.Sprintf("JOIN %s %s ON %s", table, alias, on))
	return f
}

// MetaEqual joins the kind's meta side table under the given alias and
// constrains one name/value pair. parentField is the qualified parent id
// column, e.g. "e.id".
func (f *Filter) MetaEqual(metaTable, alias, parentField, name, value string) *Filter {
	f.Join(metaTable, alias, fmt.Sprintf("%s.parent_id = %s", alias, parentField))
	f.Equal(alias+".name", name)
	return f.Equal(alias+".value", value)
}

// Empty reports whether the filter has no conditions and no joins.
func (f *Filter) Empty() bool {
	return len(f.conds) == 0 && len(f.joins) == 0
}

// JoinClause renders accumulated joins, or "".
func (f *Filter) JoinClause() string {
	if len(f.joins) == 0 {
		return ""
	}
	return " " + strings.Join(f.joins, " ")
}

// WhereClause renders the WHERE fragment, or "".
func (f *Filter) WhereClause() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// Args returns the positional arguments in placeholder order.
func (f *Filter) Args() []interface{} {
	return f.args
}
