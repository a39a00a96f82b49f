package memtable

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	errFamilyNotFound = errors.New("column family does not exist")
	errRowNotFound    = errors.New("row not found")
)

type version struct {
	value     []byte
	timestamp int64
}

// qualifiers maps a qualifier to its versions, oldest first.
type qualifiers map[string][]version

// store is the in-memory table: rowKey -> family -> qualifier -> versions.
type store struct {
	mu       sync.RWMutex
	families map[string]struct{}
	rows     map[string]map[string]qualifiers
	lastTS   int64
}

func newStore() *store {
	return &store{
		families: make(map[string]struct{}),
		rows:     make(map[string]map[string]qualifiers),
	}
}

// tick returns a strictly increasing Unix nanosecond timestamp. Callers hold the write lock.
func (s *store) tick() int64 {
	ts := time.Now().UnixNano()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	return ts
}

func (s *store) createFamilies(families []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range families {
		s.families[f] = struct{}{}
	}
}

type cell struct {
	qualifier string
	value     []byte
}

// write appends a new version of every cell and returns the versions it wrote.
func (s *store) write(rowKey, family string, cells []cell) (qualifiers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.families[family]; !ok {
		return nil, fmt.Errorf("%w: %s", errFamilyNotFound, family)
	}

	row, ok := s.rows[rowKey]
	if !ok {
		row = make(map[string]qualifiers)
		s.rows[rowKey] = row
	}
	fam, ok := row[family]
	if !ok {
		fam = make(qualifiers)
		row[family] = fam
	}

	ts := s.tick()
	written := make(qualifiers, len(cells))
	for _, c := range cells {
		v := version{value: append([]byte(nil), c.value...), timestamp: ts}
		fam[c.qualifier] = append(fam[c.qualifier], v)
		written[c.qualifier] = []version{v}
	}
	return written, nil
}

type selector int

const (
	selectExact selector = iota
	selectPrefix
	selectRegex
)

type readQuery struct {
	family     string
	key        string
	selector   selector
	qualifiers []string
	latest     int
}

// read returns the matching rows restricted to one family, newest version first.
func (s *store) read(q readQuery) (map[string]qualifiers, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.families[q.family]; !ok {
		return nil, fmt.Errorf("%w: %s", errFamilyNotFound, q.family)
	}

	var match func(string) bool
	switch q.selector {
	case selectPrefix:
		match = func(k string) bool { return strings.HasPrefix(k, q.key) }
	case selectRegex:
		re, err := regexp.Compile(q.key)
		if err != nil {
			return nil, fmt.Errorf("invalid row key regex: %w", err)
		}
		match = re.MatchString
	default:
		match = func(k string) bool { return k == q.key }
	}

	out := make(map[string]qualifiers)
	for key, row := range s.rows {
		if !match(key) {
			continue
		}
		fam := filter(row[q.family], q.qualifiers, q.latest)
		if len(fam) > 0 {
			out[key] = fam
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", errRowNotFound, q.key)
	}
	return out, nil
}

func filter(fam qualifiers, names []string, latest int) qualifiers {
	if len(names) == 0 {
		names = make([]string, 0, len(fam))
		for name := range fam {
			names = append(names, name)
		}
	}

	out := make(qualifiers)
	for _, name := range names {
		versions := fam[name]
		if len(versions) == 0 {
			continue
		}
		newest := make([]version, len(versions))
		copy(newest, versions)
		sort.SliceStable(newest, func(i, j int) bool {
			return newest[i].timestamp > newest[j].timestamp
		})
		if latest > 0 && len(newest) > latest {
			newest = newest[:latest]
		}
		out[name] = newest
	}
	return out
}

// remove drops the versions written at or before ts, or at or before now when ts is zero, and
// returns the cutoff it applied. An empty qualifier list removes the whole family.
func (s *store) remove(rowKey, family string, names []string, ts int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.families[family]; !ok {
		return 0, fmt.Errorf("%w: %s", errFamilyNotFound, family)
	}
	if ts == 0 {
		ts = s.tick()
	}

	row, ok := s.rows[rowKey]
	if !ok {
		return ts, nil
	}
	fam := row[family]
	targets := names
	if len(targets) == 0 {
		for name := range fam {
			targets = append(targets, name)
		}
	}

	for _, name := range targets {
		kept := fam[name][:0]
		for _, v := range fam[name] {
			if v.timestamp > ts {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			delete(fam, name)
		} else {
			fam[name] = kept
		}
	}

	if len(fam) == 0 {
		delete(row, family)
	}
	if len(row) == 0 {
		delete(s.rows, rowKey)
	}
	return ts, nil
}
