package geo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

var (
	latColumns  = []string{"lat", "latitude", "y"}
	lonColumns  = []string{"lon", "lng", "long", "longitude", "x"}
	nameColumns = []string{"name", "title", "label"}
)

// DecodeCSV reads a point dataset with a header row. Latitude and longitude
// columns are found by name; every other column is kept as a property.
// Rows with missing or out-of-range coordinates are skipped.
func DecodeCSV(r io.Reader) (*Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv: empty file")
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}
	latIdx := columnIndex(header, latColumns)
	lonIdx := columnIndex(header, lonColumns)
	if latIdx < 0 || lonIdx < 0 {
		return nil, fmt.Errorf("csv: header needs latitude and longitude columns")
	}
	nameIdx := columnIndex(header, nameColumns)

	doc := &Document{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		if latIdx >= len(rec) || lonIdx >= len(rec) {
			continue
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(rec[latIdx]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(rec[lonIdx]), 64)
		if err1 != nil || err2 != nil || !ValidLonLat(lon, lat) {
			continue
		}
		f := Feature{Geometry: orb.Point{lon, lat}, Properties: map[string]string{}}
		for i, v := range rec {
			if i == latIdx || i == lonIdx || i >= len(header) {
				continue
			}
			if i == nameIdx {
				f.Name = strings.TrimSpace(v)
				continue
			}
			f.Properties[header[i]] = strings.TrimSpace(v)
		}
		doc.Features = append(doc.Features, f)
	}
	return doc, nil
}

func columnIndex(header []string, names []string) int {
	for _, n := range names {
		for i, h := range header {
			if h == n {
				return i
			}
		}
	}
	return -1
}
