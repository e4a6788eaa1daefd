package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const DefaultPage = 1

// Bounds sets the default and maximum page size of one listing.
type Bounds struct {
	DefaultLimit int
	MaxLimit     int
}

var (
	Standard = Bounds{DefaultLimit: 20, MaxLimit: 100}
	Requests = Bounds{DefaultLimit: 50, MaxLimit: 200}
)

type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse reads page and limit with the Standard bounds.
func Parse(c *gin.Context) Params {
	return ParseWith(c, Standard)
}

// ParseWith reads page and limit from the query, clamping them into b.
func ParseWith(c *gin.Context, b Bounds) Params {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return New(page, limit, b)
}

func New(page, limit int, b Bounds) Params {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = b.DefaultLimit
	}
	if limit > b.MaxLimit {
		limit = b.MaxLimit
	}
	return Params{Page: page, Limit: limit, Offset: (page - 1) * limit}
}
