package models

import (
	"fmt"
	"strconv"
	"strings"
)

// PageRange is a 1-based inclusive interval of pages.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ParsePageRange 从表单字符串解析页码范围
func ParsePageRange(start, end string) (PageRange, error) {
	s, err := strconv.Atoi(strings.TrimSpace(start))
	if err != nil {
		return PageRange{}, fmt.Errorf("%w: start %q", ErrInvalidPageRange, start)
	}
	e, err := strconv.Atoi(strings.TrimSpace(end))
	if err != nil {
		return PageRange{}, fmt.Errorf("%w: end %q", ErrInvalidPageRange, end)
	}
	return PageRange{Start: s, End: e}, nil
}

// Validate checks 1 <= start <= end <= pageCount.
func (r PageRange) Validate(pageCount int) error {
	if r.Start < 1 || r.End > pageCount || r.Start > r.End {
		return fmt.Errorf("%w: %d-%d of %d pages", ErrInvalidPageRange, r.Start, r.End, pageCount)
	}
	return nil
}

// Len 范围内的页数
func (r PageRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Selection renders the range in pdfcpu page selection syntax.
func (r PageRange) Selection() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

func (r PageRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}
