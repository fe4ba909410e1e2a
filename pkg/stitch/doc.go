// Package stitch composes captured viewport tiles into one full-page image.
//
// The canvas is sized from the measured page geometry and the first tile.
// The first tile's pixel height divided by the viewport's client height
// gives the scale between page coordinates and captured pixels, which
// absorbs any device pixel ratio mismatch. Every tile is drawn left-aligned
// at its scaled vertical offset, top to bottom. Where tiles overlap (the
// final tile of a page whose height is not a multiple of the viewport) the
// later tile wins.
//
// Stitch takes ownership of the tiles: each tile's bitmap is released as
// soon as it has been drawn, so peak memory is one canvas plus one tile.
package stitch
