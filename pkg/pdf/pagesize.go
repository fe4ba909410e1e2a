package pdf

import (
	"math"
	"sort"
	"strings"

	"github.com/matzehuels/pageshot/pkg/errors"
)

// PageSize is a page size in PDF points (1/72 inch).
type PageSize struct {
	Name   string
	Width  float64
	Height float64
}

// Standard page sizes.
var (
	A4     = PageSize{Name: "a4", Width: 595.28, Height: 841.89}
	Letter = PageSize{Name: "letter", Width: 612, Height: 792}
)

// DefaultPageSize is used when no size is requested.
var DefaultPageSize = A4

var pageSizes = map[string]PageSize{
	A4.Name:     A4,
	Letter.Name: Letter,
}

// LookupPageSize resolves a page size by case-insensitive name. An empty
// name yields [DefaultPageSize].
func LookupPageSize(name string) (PageSize, error) {
	if name == "" {
		return DefaultPageSize, nil
	}
	if s, ok := pageSizes[strings.ToLower(name)]; ok {
		return s, nil
	}
	return PageSize{}, errors.New(errors.ErrCodeInvalidPageSize, "unknown page size %q (available: %s)", name, strings.Join(PageSizeNames(), ", "))
}

// PageSizeNames returns the known page size names, sorted.
func PageSizeNames() []string {
	names := make([]string, 0, len(pageSizes))
	for n := range pageSizes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate rejects non-positive and non-finite dimensions.
func (s PageSize) Validate() error {
	if !finitePositive(s.Width) || !finitePositive(s.Height) {
		return errors.New(errors.ErrCodeInvalidPageSize, "page size must be positive, got %gx%g", s.Width, s.Height)
	}
	return nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
