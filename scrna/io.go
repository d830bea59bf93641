package scrna

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteCoordinates serializes coordinates as "cell_id\tc1\tc2\t...\tcD".
func WriteCoordinates(w io.Writer, coords []CellCoordinate) error {
	bw := bufio.NewWriter(w)
	if len(coords) == 0 {
		return bw.Flush()
	}
	dim := len(coords[0].Coords)
	header := make([]string, dim+1)
	header[0] = "cell_id"
	for d := 0; d < dim; d++ {
		header[d+1] = fmt.Sprintf("c%d", d+1)
	}
	if _, err := fmt.Fprintln(bw, strings.Join(header, "\t")); err != nil {
		return err
	}
	for _, c := range coords {
		fields := make([]string, dim+1)
		fields[0] = strconv.Itoa(c.CellIdx)
		for d, v := range c.Coords {
			fields[d+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if _, err := fmt.Fprintln(bw, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return bw.Flush()
}
