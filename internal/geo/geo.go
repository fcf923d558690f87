// Package geo decodes uploaded overlay files (KML, KMZ, CSV) into orb geometries.
package geo

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is one placemark or CSV row.
type Feature struct {
	Name        string
	Description string
	Geometry    orb.Geometry
	Properties  map[string]string
}

// Document is the decoded content of one overlay file.
type Document struct {
	Name     string
	Features []Feature
}

// Collection returns every feature geometry in document order.
func (d *Document) Collection() orb.Collection {
	c := make(orb.Collection, 0, len(d.Features))
	for _, f := range d.Features {
		c = append(c, f.Geometry)
	}
	return c
}

// Bound is empty (IsEmpty() == true) when the document has no geometry.
func (d *Document) Bound() orb.Bound {
	return d.Collection().Bound()
}

// FeatureCollection converts the document to GeoJSON for map clients.
func (d *Document) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range d.Features {
		gf := geojson.NewFeature(f.Geometry)
		if f.Name != "" {
			gf.Properties["name"] = f.Name
		}
		if f.Description != "" {
			gf.Properties["description"] = f.Description
		}
		for k, v := range f.Properties {
			gf.Properties[k] = v
		}
		fc.Append(gf)
	}
	return fc
}

// Decode picks a decoder from the file extension.
func Decode(name string, data []byte) (*Document, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".kml":
		return DecodeKML(data)
	case ".kmz":
		return DecodeKMZ(data)
	case ".csv":
		return DecodeCSV(strings.NewReader(string(data)))
	}
	return nil, fmt.Errorf("unsupported overlay format: %s", name)
}

// ValidLonLat reports whether lon/lat is a finite WGS84 position.
func ValidLonLat(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
