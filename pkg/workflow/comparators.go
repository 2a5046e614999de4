// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workflow

var numericComparators = []string{"eq", "neq", "lt", "lte", "gt", "gte", "within_range"}

// comparatorsByType partitions the comparator vocabulary by variable type.
var comparatorsByType = map[VariableType][]string{
	TypeInt:    numericComparators,
	TypeFloat:  numericComparators,
	TypeNumber: numericComparators,
	TypeBool:   {"is_true", "is_false"},
	TypeString: {"str_eq", "str_neq", "str_contains", "str_starts_with", "str_ends_with"},
	TypeDate:   {"date_eq", "date_before", "date_after", "date_between"},
	TypeEnum:   {"enum_eq", "enum_neq"},
}

// ComparatorsFor returns the valid comparator set for a variable type.
func ComparatorsFor(t VariableType) []string {
	return comparatorsByType[t]
}

// ComparatorValid reports whether cmp is allowed for variables of type t.
func ComparatorValid(t VariableType, cmp string) bool {
	for _, c := range comparatorsByType[t] {
		if c == cmp {
			return true
		}
	}
	return false
}

// ComparatorNeedsSecondValue reports whether cmp requires value2.
func ComparatorNeedsSecondValue(cmp string) bool {
	return cmp == "within_range" || cmp == "date_between"
}

// ComparatorTakesValue reports whether cmp compares against an operand at
// all. Bool comparators are self-contained.
func ComparatorTakesValue(cmp string) bool {
	return cmp != "is_true" && cmp != "is_false"
}
