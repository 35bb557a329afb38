package toolcaller

import "testing"

func TestFilterEmptyAllowsEverything(t *testing.T) {
	f := ParseFilter("")
	if !f.Allows("search__web_search") {
		t.Fatal("empty filter should allow everything")
	}
}

func TestFilterDenyShortCircuitsOnContains(t *testing.T) {
	f := ParseFilter("!scary")
	if f.Allows("scary__exec") {
		t.Error("a tool name containing the deny clause should be denied")
	}
	if !f.Allows("search__web_search") {
		t.Error("a deny clause should not affect unrelated tool names")
	}
}

func TestFilterExactAllow(t *testing.T) {
	f := ParseFilter("=fs__read_file")
	if !f.Allows("fs__read_file") {
		t.Error("exact match should be allowed")
	}
	if f.Allows("fs__read_file_other") {
		t.Error("=x must match the full name, not merely a prefix")
	}
}

func TestFilterPrefixAllow(t *testing.T) {
	f := ParseFilter("@fs__")
	if !f.Allows("fs__read_file") {
		t.Error("@x should allow names starting with x")
	}
	if f.Allows("other__fs__read_file") {
		t.Error("@x must not match when x is not a prefix")
	}
}

func TestFilterSubstringAllow(t *testing.T) {
	f := ParseFilter("*read")
	if !f.Allows("fs__read_file") {
		t.Error("*x should allow names containing x anywhere")
	}
	if f.Allows("fs__write_file") {
		t.Error("*x should not allow names that don't contain x")
	}
}

func TestFilterFirstMatchWins(t *testing.T) {
	f := ParseFilter("!fs =fs__read_file")
	if f.Allows("fs__read_file") {
		t.Error("the earlier !fs clause should deny before =fs__read_file is ever checked")
	}
	if f.Allows("fs__write_file") {
		t.Error("fs__write_file should be denied by !fs")
	}
}

func TestFilterNoMatchDeniesWhenNonEmpty(t *testing.T) {
	f := ParseFilter("@search")
	if f.Allows("fs__read_file") {
		t.Error("a non-matching name should be denied when the filter list is non-empty")
	}
	if !f.Allows("search__web_search") {
		t.Error("search tools should be allowed")
	}
}

func TestFilterMalformedClauseIgnored(t *testing.T) {
	f := ParseFilter("@ !  =  *")
	if !f.Allows("anything__tool") {
		t.Error("a filter with only malformed clauses should behave like an empty filter")
	}
}
