package assembler

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"bananaslides/internal/domain"
)

// TableGrid decomposes a table element into cells. Sources, in order of preference:
// an HTML table in the element's content, the positions of its child regions, then
// tab or pipe separated lines of plain content. A table with none of these becomes
// a single cell.
func TableGrid(el *domain.LayoutElement) *domain.TableGrid {
	if g := fromHTML(el.Content); g != nil {
		attachChildBoxes(g, el.Children)
		return g
	}
	if g := fromChildren(el.Children); g != nil {
		return g
	}
	return fromText(el.Content)
}

// PlainText renders the grid as one line per row with tab separated cells.
func PlainText(g *domain.TableGrid) string {
	rows := make([][]string, g.Rows)
	for i := range rows {
		rows[i] = make([]string, g.Cols)
	}
	for _, c := range g.Cells {
		if c.Row < g.Rows && c.Col < g.Cols {
			rows[c.Row][c.Col] = c.Text
		}
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = strings.Join(r, "\t")
	}
	return strings.Join(lines, "\n")
}

func fromHTML(content string) *domain.TableGrid {
	if !strings.Contains(strings.ToLower(content), "<table") {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil
	}
	table := findFirst(doc, atom.Table)
	if table == nil {
		return nil
	}

	var rows []*html.Node
	collectRows(table, &rows)
	if len(rows) == 0 {
		return nil
	}

	g := &domain.TableGrid{}
	occupied := map[[2]int]bool{}
	for r, tr := range rows {
		col := 0
		for td := tr.FirstChild; td != nil; td = td.NextSibling {
			if td.Type != html.ElementNode || (td.DataAtom != atom.Td && td.DataAtom != atom.Th) {
				continue
			}
			for occupied[[2]int{r, col}] {
				col++
			}
			rs, cs := span(td, "rowspan"), span(td, "colspan")
			for dr := 0; dr < rs; dr++ {
				for dc := 0; dc < cs; dc++ {
					occupied[[2]int{r + dr, col + dc}] = true
				}
			}
			g.Cells = append(g.Cells, domain.TableCell{
				Row: r, Col: col, RowSpan: rs, ColSpan: cs,
				Text: strings.Join(strings.Fields(textOf(td)), " "),
			})
			if col+cs > g.Cols {
				g.Cols = col + cs
			}
			if r+rs > g.Rows {
				g.Rows = r + rs
			}
			col += cs
		}
	}
	if len(g.Cells) == 0 {
		return nil
	}
	return g
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// collectRows gathers tr elements of table without descending into nested tables.
func collectRows(n *html.Node, rows *[]*html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			*rows = append(*rows, c)
		case atom.Table:
		default:
			collectRows(c, rows)
		}
	}
}

func span(n *html.Node, key string) int {
	for _, a := range n.Attr {
		if a.Key == key {
			if v, err := strconv.Atoi(strings.TrimSpace(a.Val)); err == nil && v > 0 {
				return v
			}
		}
	}
	return 1
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Br {
			sb.WriteString(" ")
			continue
		}
		sb.WriteString(textOf(c))
	}
	return sb.String()
}

// attachChildBoxes gives HTML cells the boxes of the table's child regions when
// the recognizer reported exactly one child per cell.
func attachChildBoxes(g *domain.TableGrid, children []domain.LayoutElement) {
	if len(children) != len(g.Cells) {
		return
	}
	for i := range g.Cells {
		b := children[i].BBox
		g.Cells[i].BBox = &b
	}
}

func fromChildren(children []domain.LayoutElement) *domain.TableGrid {
	var cells []domain.LayoutElement
	for _, c := range children {
		if !c.BBox.Empty() {
			cells = append(cells, c)
		}
	}
	if len(cells) == 0 {
		return nil
	}

	rowOf := cluster(cells, func(b domain.BBox) float64 { return (b.Y0 + b.Y1) / 2 }, domain.BBox.Height)
	colOf := cluster(cells, func(b domain.BBox) float64 { return (b.X0 + b.X1) / 2 }, domain.BBox.Width)

	g := &domain.TableGrid{}
	byPos := map[[2]int]int{}
	for i, c := range cells {
		r, col := rowOf[i], colOf[i]
		if j, ok := byPos[[2]int{r, col}]; ok {
			cell := &g.Cells[j]
			cell.Text = strings.TrimSpace(cell.Text + " " + c.Content)
			merged := union(*cell.BBox, c.BBox)
			cell.BBox = &merged
			continue
		}
		b := c.BBox
		byPos[[2]int{r, col}] = len(g.Cells)
		g.Cells = append(g.Cells, domain.TableCell{Row: r, Col: col, RowSpan: 1, ColSpan: 1, Text: c.Content, BBox: &b})
		if r+1 > g.Rows {
			g.Rows = r + 1
		}
		if col+1 > g.Cols {
			g.Cols = col + 1
		}
	}
	sort.SliceStable(g.Cells, func(i, j int) bool {
		if g.Cells[i].Row != g.Cells[j].Row {
			return g.Cells[i].Row < g.Cells[j].Row
		}
		return g.Cells[i].Col < g.Cells[j].Col
	})
	return g
}

// cluster assigns each element a band index along one axis. Centers closer than
// half the median extent to the running band mean share a band.
func cluster(els []domain.LayoutElement, center, extent func(domain.BBox) float64) []int {
	exts := make([]float64, len(els))
	order := make([]int, len(els))
	for i, el := range els {
		exts[i] = extent(el.BBox)
		order[i] = i
	}
	sort.Float64s(exts)
	tol := exts[len(exts)/2] / 2

	sort.SliceStable(order, func(a, b int) bool {
		return center(els[order[a]].BBox) < center(els[order[b]].BBox)
	})

	bands := make([]int, len(els))
	band, sum, n := 0, 0.0, 0
	for _, i := range order {
		c := center(els[i].BBox)
		if n > 0 && c-sum/float64(n) > tol {
			band++
			sum, n = 0, 0
		}
		bands[i] = band
		sum += c
		n++
	}
	return bands
}

func union(a, b domain.BBox) domain.BBox {
	return domain.BBox{
		X0: minf(a.X0, b.X0), Y0: minf(a.Y0, b.Y0),
		X1: maxf(a.X1, b.X1), Y1: maxf(a.Y1, b.Y1),
	}
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func fromText(content string) *domain.TableGrid {
	content = strings.TrimSpace(content)
	g := &domain.TableGrid{}
	if content == "" {
		g.Rows, g.Cols = 1, 1
		g.Cells = []domain.TableCell{{RowSpan: 1, ColSpan: 1}}
		return g
	}
	for r, line := range strings.Split(content, "\n") {
		for c, text := range splitRow(line) {
			g.Cells = append(g.Cells, domain.TableCell{Row: r, Col: c, RowSpan: 1, ColSpan: 1, Text: text})
			if c+1 > g.Cols {
				g.Cols = c + 1
			}
		}
		g.Rows = r + 1
	}
	return g
}

func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	var parts []string
	switch {
	case strings.Contains(line, "\t"):
		parts = strings.Split(line, "\t")
	case strings.Contains(line, "|"):
		parts = strings.Split(strings.Trim(line, "|"), "|")
	default:
		parts = []string{line}
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
