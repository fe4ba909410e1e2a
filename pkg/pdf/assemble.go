package pdf

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/pageshot/pkg/errors"
)

const header = "%PDF-1.4\n"

type object struct {
	id   int
	data []byte
}

// ObjectCount returns the number of indirect objects for n pages.
func ObjectCount(n int) int {
	return 2 + 3*n
}

// Assemble builds a complete PDF document with one page per band.
func Assemble(pages []Page, size PageSize) ([]byte, error) {
	if len(pages) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyDocument, "document has no pages")
	}
	if err := size.Validate(); err != nil {
		return nil, err
	}
	for i, p := range pages {
		if len(p.JPEG) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidPageContent, "page %d has no image data", i+1)
		}
	}

	objects := serialize(pages, size)

	// Offsets are computed only after every object is serialized.
	offsets := make([]int, len(objects))
	pos := len(header)
	for i, obj := range objects {
		offsets[i] = pos
		pos += len(obj.data)
	}
	xrefOffset := pos

	var buf bytes.Buffer
	buf.Grow(xrefOffset + 20*(len(objects)+1) + 128)
	buf.WriteString(header)
	for _, obj := range objects {
		buf.Write(obj.data)
	}
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefOffset)
	return buf.Bytes(), nil
}

// serialize returns all objects in id order.
func serialize(pages []Page, size PageSize) []object {
	objects := make([]object, 0, ObjectCount(len(pages)))
	objects = append(objects, object{id: 1, data: indirect(1, []byte("<< /Type /Catalog /Pages 2 0 R >>"))})

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+3*i)
	}
	tree := fmt.Sprintf("<< /Type /Pages /Count %d /Kids [%s] >>", len(pages), strings.Join(kids, " "))
	objects = append(objects, object{id: 2, data: indirect(2, []byte(tree))})

	for i, p := range pages {
		imageID, contentID, pageID := 3+3*i, 4+3*i, 5+3*i

		imageDict := fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>",
			p.WidthPx, p.HeightPx, len(p.JPEG))
		objects = append(objects, object{id: imageID, data: stream(imageID, imageDict, p.JPEG)})

		content := []byte(fmt.Sprintf("q %s 0 0 %s 0 %s cm /Im0 Do Q",
			Real(p.DrawWidthPt), Real(p.DrawHeightPt), Real(size.Height-p.DrawHeightPt)))
		objects = append(objects, object{id: contentID, data: stream(contentID, fmt.Sprintf("<< /Length %d >>", len(content)), content)})

		pageDict := fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << /XObject << /Im0 %d 0 R >> >> /MediaBox [0 0 %s %s] /Contents %d 0 R >>",
			imageID, Real(size.Width), Real(size.Height), contentID)
		objects = append(objects, object{id: pageID, data: indirect(pageID, []byte(pageDict))})
	}
	return objects
}

func indirect(id int, body []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d 0 obj\n", id)
	b.Write(body)
	b.WriteString("\nendobj\n")
	return b.Bytes()
}

func stream(id int, dict string, data []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(dict) + len(data) + 48)
	fmt.Fprintf(&b, "%d 0 obj\n%s\nstream\n", id, dict)
	b.Write(data)
	b.WriteString("\nendstream\nendobj\n")
	return b.Bytes()
}

// Real formats a PDF real number: rounded to two decimals, no trailing
// zeros, no exponent.
func Real(v float64) string {
	r := math.Round(v*100) / 100
	if r == 0 {
		return "0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// Render paginates img and assembles the resulting pages.
func Render(img image.Image, size PageSize) ([]byte, error) {
	pages, err := Paginate(img, size)
	if err != nil {
		return nil, err
	}
	return Assemble(pages, size)
}
