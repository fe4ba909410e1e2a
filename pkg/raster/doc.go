// Package raster loads and encodes page bitmaps as PNG or JPEG.
//
// A [Source] keeps both the decoded bitmap and, when it came from a file or
// a capture record, the original encoded bytes. PNG export of a PNG source
// passes those bytes through untouched; everything else is re-encoded with
// the standard library encoders. JPEG quality is given on a 0–100 scale and
// normalized to [0, 1] before being mapped onto the encoder's range.
//
// Decoding accepts PNG, JPEG, WebP, BMP and TIFF input.
package raster
