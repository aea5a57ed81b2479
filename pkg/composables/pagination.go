package composables

import (
	"net/http"
	"strconv"

	"github.com/meridianhq/meridian-sdk/pkg/configuration"
)

type PaginationParams struct {
	Limit  int
	Offset int
	Page   int
}

// UsePaginated reads page and limit query parameters, applying the
// configured defaults and the hard page size cap.
func UsePaginated(r *http.Request) PaginationParams {
	conf := configuration.Use()

	limit, err := strconv.Atoi(GetLastQueryParam(r, "limit"))
	if err != nil || limit <= 0 {
		limit = conf.PageSize
	}
	if limit > conf.MaxPageSize {
		limit = conf.MaxPageSize
	}

	page, err := strconv.Atoi(GetLastQueryParam(r, "page"))
	if err != nil || page < 1 {
		page = 1
	}

	return PaginationParams{
		Limit:  limit,
		Offset: (page - 1) * limit,
		Page:   page,
	}
}
