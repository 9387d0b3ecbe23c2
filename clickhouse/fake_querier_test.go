package clickhouse

import (
	"context"
	"errors"
	"strings"
	"sync"
)

type response struct {
	match  string
	values []string
	err    error
}

// fakeQuerier answers queries with the first response whose match is a substring of the query
type fakeQuerier struct {
	sync.Mutex
	responses []response
	queries   []string
	execs     []string
	execErr   error
}

func (f *fakeQuerier) on(match string, values ...string) *fakeQuerier {
	f.responses = append(f.responses, response{match: match, values: values})
	return f
}

func (f *fakeQuerier) fail(match string) *fakeQuerier {
	f.responses = append(f.responses, response{match: match, err: errors.New("Code: 60. DB::Exception: Table does not exist")})
	return f
}

func (f *fakeQuerier) QueryColumn(_ context.Context, query string) ([]string, error) {
	f.Lock()
	defer f.Unlock()
	f.queries = append(f.queries, query)
	for i, r := range f.responses {
		if strings.Contains(query, r.match) {
			// sequential responses for the same match are consumed in order
			if next := f.nextSame(i); next > i {
				f.responses = append(f.responses[:i], f.responses[i+1:]...)
			}
			return r.values, r.err
		}
	}
	return nil, nil
}

func (f *fakeQuerier) nextSame(i int) int {
	for j := i + 1; j < len(f.responses); j++ {
		if f.responses[j].match == f.responses[i].match {
			return j
		}
	}
	return -1
}

func (f *fakeQuerier) Exec(_ context.Context, query string) error {
	f.Lock()
	defer f.Unlock()
	f.execs = append(f.execs, query)
	return f.execErr
}

func (f *fakeQuerier) Close() error { return nil }
