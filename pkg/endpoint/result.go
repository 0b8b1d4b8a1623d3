package endpoint

import (
	"github.com/fresh-schedules/apiframework/pkg/httputil"
)

type resultKind int

const (
	kindValue resultKind = iota
	kindRaw
)

// Result is what a handler returns: either a value to wrap in the success
// envelope or a response to write as is. The zero Result is Value(nil).
type Result struct {
	kind       resultKind
	value      any
	pagination *httputil.PaginationMeta
	raw        *httputil.Response
}

// Value wraps v as {data, meta} with status 200.
func Value(v any) Result {
	return Result{kind: kindValue, value: v}
}

// Paged wraps items like Value and adds top-level pagination.
func Paged(items any, page *httputil.PaginationMeta) Result {
	return Result{kind: kindValue, value: items, pagination: page}
}

// Raw passes resp through untouched apart from the request ID and duration
// headers.
func Raw(resp *httputil.Response) Result {
	return Result{kind: kindRaw, raw: resp}
}

// IsRaw reports whether r was built with Raw.
func (r Result) IsRaw() bool { return r.kind == kindRaw }
