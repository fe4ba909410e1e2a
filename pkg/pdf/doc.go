// Package pdf writes multi-page PDF 1.4 documents from a single tall bitmap.
//
// The document is assembled byte by byte; no PDF library is involved. A
// stitched page image is first cut into page-height bands by [Paginate],
// each band JPEG-encoded, and then [Assemble] lays out the objects:
//
//	1        Catalog
//	2        Pages tree
//	3+3i     image XObject of page i (DCTDecode)
//	4+3i     content stream of page i
//	5+3i     Page dictionary of page i
//
// followed by the cross-reference table and trailer. Assembly runs in two
// passes: every object is serialized first, then offsets are accumulated
// and the xref table is emitted. Each xref entry is exactly 20 bytes.
//
// Both stages are pure; independent documents may be rendered concurrently.
//
// # Usage
//
//	size, _ := pdf.LookupPageSize("a4")
//	data, err := pdf.Render(img, size)
package pdf
