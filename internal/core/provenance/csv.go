package provenance

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/exsitu/internal/core/domain"
)

var csvHeader = []string{
	"ID",
	"Title",
	"Inventory Number",
	"From Place",
	"From City",
	"From Country",
	"To Institution",
	"To Place",
	"To City",
	"To Country",
	"Longitude",
	"Latitude",
	"Institution Longitude",
	"Institution Latitude",
}

// CSVFilename is the download name for an export made at t.
func CSVFilename(t time.Time) string {
	return fmt.Sprintf("ex-situ-objects-%s.csv", t.UTC().Format("2006-01-02"))
}

// WriteCSV writes one row per object. Text fields are always quoted with
// embedded quotes doubled; missing coordinates are left empty.
func WriteCSV(w io.Writer, objects []domain.MuseumObject) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(csvHeader, ",")); err != nil {
		return err
	}

	for i := range objects {
		o := &objects[i]
		fields := []string{
			o.ID,
			quote(o.Title),
			quote(o.InventoryNumber),
			quote(o.PlaceName),
			quote(o.City),
			quote(o.Country),
			quote(o.Institution.Name),
			quote(o.Institution.Place),
			quote(o.Institution.City),
			quote(o.Institution.Country),
			coord(o.Longitude),
			coord(o.Latitude),
			coord(o.Institution.Longitude),
			coord(o.Institution.Latitude),
		}
		if _, err := bw.WriteString("\n" + strings.Join(fields, ",")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func coord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
