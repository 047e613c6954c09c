// Package hostlist parses and renders compact node range-list notation such
// as "nid[001-010,015]". Expansion preserves the order of the source
// expression and removes duplicates; compression produces the shortest
// equivalent range list for the same set.
package hostlist

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseError reports a range-list grammar violation.
type ParseError struct {
	Expr   string
	Detail string
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing hostlist %q: %s", e.Expr, e.Detail)
}

func parseErrorf(expr, format string, args ...any) *ParseError {
	return &ParseError{Expr: expr, Detail: fmt.Sprintf(format, args...)}
}

// Expand parses a range-list expression into the ordered, deduplicated host
// names it denotes. Expressions are comma-separated terms; each term is
// either a literal host name or prefix[ranges]suffix where ranges is a
// comma-separated list of zero-padded numbers or ascending number pairs.
func Expand(expr string) ([]string, error) {
	terms, err := splitTerms(expr)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, parseErrorf(expr, "empty expression")
	}

	var hosts []string
	seen := make(map[string]struct{})
	for _, term := range terms {
		expanded, err := expandTerm(expr, term)
		if err != nil {
			return nil, err
		}
		for _, host := range expanded {
			if _, dup := seen[host]; dup {
				continue
			}
			seen[host] = struct{}{}
			hosts = append(hosts, host)
		}
	}
	return hosts, nil
}

// splitTerms splits on commas outside brackets and validates bracket
// balance up front so a malformed tail fails before any term expands.
func splitTerms(expr string) ([]string, error) {
	var terms []string
	depth := 0
	start := 0
	for i, r := range expr {
		switch r {
		case '[':
			depth++
			if depth > 1 {
				return nil, parseErrorf(expr, "nested '[' at offset %d", i)
			}
		case ']':
			depth--
			if depth < 0 {
				return nil, parseErrorf(expr, "unmatched ']' at offset %d", i)
			}
		case ',':
			if depth == 0 {
				terms = append(terms, expr[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, parseErrorf(expr, "unbalanced brackets")
	}
	terms = append(terms, expr[start:])

	cleaned := terms[:0]
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		cleaned = append(cleaned, term)
	}
	return cleaned, nil
}

func expandTerm(expr, term string) ([]string, error) {
	open := strings.IndexByte(term, '[')
	if open < 0 {
		return []string{term}, nil
	}
	close := strings.IndexByte(term, ']')
	prefix := term[:open]
	ranges := term[open+1 : close]
	suffix := term[close+1:]
	if strings.ContainsAny(suffix, "[]") {
		return nil, parseErrorf(expr, "multiple bracket groups in term %q", term)
	}
	if ranges == "" {
		return nil, parseErrorf(expr, "empty range in term %q", term)
	}

	var hosts []string
	for _, part := range strings.Split(ranges, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, parseErrorf(expr, "empty range element in term %q", term)
		}
		lo, hi, width, err := parseRange(expr, term, part)
		if err != nil {
			return nil, err
		}
		for n := lo; n <= hi; n++ {
			hosts = append(hosts, fmt.Sprintf("%s%0*d%s", prefix, width, n, suffix))
		}
	}
	return hosts, nil
}

func parseRange(expr, term, part string) (lo, hi int64, width int, err error) {
	bounds := strings.SplitN(part, "-", 2)
	lo, width, err = parseBound(expr, term, bounds[0])
	if err != nil {
		return 0, 0, 0, err
	}
	if len(bounds) == 1 {
		return lo, lo, width, nil
	}
	hi, hiWidth, err := parseBound(expr, term, bounds[1])
	if err != nil {
		return 0, 0, 0, err
	}
	if hi < lo {
		return 0, 0, 0, parseErrorf(expr, "descending range %q in term %q", part, term)
	}
	// "09-11" keeps the padding, "9-11" does not.
	if hiWidth > width {
		width = 1
		if len(strings.TrimLeft(bounds[0], "0")) < len(bounds[0]) {
			width = len(bounds[0])
		}
	}
	return lo, hi, width, nil
}

func parseBound(expr, term, bound string) (int64, int, error) {
	if bound == "" {
		return 0, 0, parseErrorf(expr, "missing range bound in term %q", term)
	}
	n, err := strconv.ParseInt(bound, 10, 64)
	if err != nil || n < 0 {
		return 0, 0, parseErrorf(expr, "non-numeric range bound %q in term %q", bound, term)
	}
	return n, len(bound), nil
}

// Compress renders a set of host names as a range-list expression. The
// result need not reproduce the source expression that produced the set, but
// expanding it yields the same set. Hosts that do not end in a number are
// emitted literally.
func Compress(hosts []string) string {
	type numbered struct {
		num   int64
		width int
	}
	groups := make(map[string][]numbered)
	var order []string
	var literals []string

	seen := make(map[string]struct{})
	for _, host := range hosts {
		if _, dup := seen[host]; dup {
			continue
		}
		seen[host] = struct{}{}

		prefix, digits := splitNumericSuffix(host)
		if digits == "" {
			literals = append(literals, host)
			continue
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			literals = append(literals, host)
			continue
		}
		if _, ok := groups[prefix]; !ok {
			order = append(order, prefix)
		}
		groups[prefix] = append(groups[prefix], numbered{num: n, width: len(digits)})
	}

	var terms []string
	terms = append(terms, literals...)
	for _, prefix := range order {
		nums := groups[prefix]
		sort.Slice(nums, func(i, j int) bool { return nums[i].num < nums[j].num })

		var ranges []string
		for i := 0; i < len(nums); {
			j := i
			for j+1 < len(nums) &&
				nums[j+1].num == nums[j].num+1 &&
				nums[j+1].width == nums[i].width {
				j++
			}
			lo := fmt.Sprintf("%0*d", nums[i].width, nums[i].num)
			if j == i {
				ranges = append(ranges, lo)
			} else {
				ranges = append(ranges, fmt.Sprintf("%s-%0*d", lo, nums[j].width, nums[j].num))
			}
			i = j + 1
		}
		if len(ranges) == 1 && !strings.Contains(ranges[0], "-") {
			terms = append(terms, prefix+ranges[0])
		} else {
			terms = append(terms, prefix+"["+strings.Join(ranges, ",")+"]")
		}
	}
	return strings.Join(terms, ",")
}

func splitNumericSuffix(host string) (prefix, digits string) {
	i := len(host)
	for i > 0 && host[i-1] >= '0' && host[i-1] <= '9' {
		i--
	}
	return host[:i], host[i:]
}
