// Package query translates list query strings into repository filters.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pystore/catalog/internal/repository"
)

// Paging bounds for list endpoints.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ParseFilter builds a repository.ProductFilter from list query parameters.
// Parsing is permissive: malformed numeric values are ignored and the
// defaults kept, so a bad client parameter degrades to an unfiltered listing
// instead of an error.
func ParseFilter(values url.Values) repository.ProductFilter {
	filter := repository.ProductFilter{
		Limit: DefaultLimit,
		Skip:  0,
	}

	if v := values.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}

	if v := values.Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Skip = n
		}
	}

	if v := values.Get("category"); v != "" {
		filter.Category = &v
	}

	if v := values.Get("q"); v != "" {
		filter.Search = &v
	}

	if v := values.Get("price_min"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.PriceMin = &f
		}
	}

	if v := values.Get("price_max"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.PriceMax = &f
		}
	}

	if v := values.Get("tags"); v != "" {
		for _, tag := range strings.Split(v, ",") {
			tag = strings.TrimSpace(tag)
			if tag != "" {
				filter.Tags = append(filter.Tags, tag)
			}
		}
	}

	return filter
}
