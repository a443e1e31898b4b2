package keyspace

import "strconv"

// SortArgs configures SORT: weight lookups, projections, range limiting
// and ordering. The zero value sorts numerically ascending.
type SortArgs struct {
	by       string
	gets     []string
	offset   int64
	count    int64
	hasLimit bool
	order    string
	alpha    bool
}

// NewSortArgs creates empty SortArgs
func NewSortArgs() *SortArgs {
	return &SortArgs{}
}

// By sorts by the values at the keys obtained from pattern instead of
// the elements themselves
func (a *SortArgs) By(pattern string) *SortArgs {
	a.by = pattern
	return a
}

// Get projects each element through pattern; may be repeated
func (a *SortArgs) Get(pattern string) *SortArgs {
	a.gets = append(a.gets, pattern)
	return a
}

// Limit returns count elements starting at offset of the sorted result
func (a *SortArgs) Limit(offset, count int64) *SortArgs {
	a.offset = offset
	a.count = count
	a.hasLimit = true
	return a
}

// Asc sorts ascending (the default)
func (a *SortArgs) Asc() *SortArgs {
	a.order = "ASC"
	return a
}

// Desc sorts descending
func (a *SortArgs) Desc() *SortArgs {
	a.order = "DESC"
	return a
}

// Alpha sorts lexicographically instead of numerically
func (a *SortArgs) Alpha() *SortArgs {
	a.alpha = true
	return a
}

func (a *SortArgs) appendArgs(dst [][]byte) [][]byte {
	if a == nil {
		return dst
	}
	if a.by != "" {
		dst = append(dst, []byte("BY"), []byte(a.by))
	}
	if a.hasLimit {
		dst = append(dst, []byte("LIMIT"),
			[]byte(strconv.FormatInt(a.offset, 10)),
			[]byte(strconv.FormatInt(a.count, 10)))
	}
	for _, get := range a.gets {
		dst = append(dst, []byte("GET"), []byte(get))
	}
	if a.order != "" {
		dst = append(dst, []byte(a.order))
	}
	if a.alpha {
		dst = append(dst, []byte("ALPHA"))
	}
	return dst
}
