package service

import "math"

// maxOffset mantiene el offset dentro de lo que aceptan OFFSET y skip.
const maxOffset = math.MaxInt32

// Pagination normaliza page/limit y calcula el offset.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

func NewPagination(page, limit, defaultLimit, maxLimit int) Pagination {
	if limit <= 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	if page <= 0 {
		page = 1
	}
	if maxPage := maxOffset/limit + 1; page > maxPage {
		page = maxPage
	}
	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Pages devuelve la cantidad de páginas para total elementos.
func (p Pagination) Pages(total int64) int {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}
