package geo

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// KML XML structures

type kmlRoot struct {
	XMLName    xml.Name       `xml:"kml"`
	Document   kmlContainer   `xml:"Document"`
	Folder     *kmlContainer  `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

// kmlContainer covers both Document and Folder, which nest the same way.
type kmlContainer struct {
	Name       string         `xml:"name"`
	Folders    []kmlContainer `xml:"Folder"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name        string        `xml:"name"`
	Description string        `xml:"description"`
	Point       *kmlCoords    `xml:"Point"`
	LineString  *kmlCoords    `xml:"LineString"`
	LinearRing  *kmlCoords    `xml:"LinearRing"`
	Polygon     *kmlPolygon   `xml:"Polygon"`
	MultiGeom   *kmlMultiGeom `xml:"MultiGeometry"`
}

type kmlCoords struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	OuterBoundaryIs kmlBoundary   `xml:"outerBoundaryIs"`
	InnerBoundaryIs []kmlBoundary `xml:"innerBoundaryIs"`
}

type kmlBoundary struct {
	LinearRing kmlCoords `xml:"LinearRing"`
}

type kmlMultiGeom struct {
	Points      []kmlCoords    `xml:"Point"`
	LineStrings []kmlCoords    `xml:"LineString"`
	Polygons    []kmlPolygon   `xml:"Polygon"`
	Multi       []kmlMultiGeom `xml:"MultiGeometry"`
}

// DecodeKML parses KML 2.2 placemarks. A document without placemarks is
// valid and yields no features.
func DecodeKML(data []byte) (*Document, error) {
	var root kmlRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse KML: %w", err)
	}

	doc := &Document{Name: strings.TrimSpace(root.Document.Name)}

	var placemarks []kmlPlacemark
	placemarks = append(placemarks, root.Placemarks...)
	placemarks = append(placemarks, collectPlacemarks(root.Document)...)
	if root.Folder != nil {
		if doc.Name == "" {
			doc.Name = strings.TrimSpace(root.Folder.Name)
		}
		placemarks = append(placemarks, collectPlacemarks(*root.Folder)...)
	}

	for _, pm := range placemarks {
		doc.Features = append(doc.Features, placemarkFeatures(pm)...)
	}
	return doc, nil
}

// DecodeKMZ reads doc.kml (or the first .kml entry) from a zipped KMZ.
func DecodeKMZ(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open KMZ: %w", err)
	}

	var kmlFile *zip.File
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		if name == "doc.kml" {
			kmlFile = f
			break
		}
		if strings.HasSuffix(name, ".kml") && kmlFile == nil {
			kmlFile = f
		}
	}
	if kmlFile == nil {
		return nil, fmt.Errorf("no KML file found in KMZ archive")
	}

	rc, err := kmlFile.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open KML in KMZ: %w", err)
	}
	defer rc.Close()

	kml, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read KML from KMZ: %w", err)
	}
	return DecodeKML(kml)
}

func collectPlacemarks(c kmlContainer) []kmlPlacemark {
	result := append([]kmlPlacemark(nil), c.Placemarks...)
	for _, sub := range c.Folders {
		result = append(result, collectPlacemarks(sub)...)
	}
	return result
}

func placemarkFeatures(pm kmlPlacemark) []Feature {
	var geoms []orb.Geometry

	if pm.Point != nil {
		if pts := parseCoordinates(pm.Point.Coordinates); len(pts) > 0 {
			geoms = append(geoms, pts[0])
		}
	}
	if pm.LineString != nil {
		if pts := parseCoordinates(pm.LineString.Coordinates); len(pts) > 1 {
			geoms = append(geoms, orb.LineString(pts))
		}
	}
	if pm.LinearRing != nil {
		if pts := parseCoordinates(pm.LinearRing.Coordinates); len(pts) > 2 {
			geoms = append(geoms, orb.Polygon{closeRing(pts)})
		}
	}
	if pm.Polygon != nil {
		if p, ok := polygon(*pm.Polygon); ok {
			geoms = append(geoms, p)
		}
	}
	if pm.MultiGeom != nil {
		geoms = append(geoms, multiGeometries(*pm.MultiGeom)...)
	}

	features := make([]Feature, 0, len(geoms))
	for _, g := range geoms {
		features = append(features, Feature{
			Name:        strings.TrimSpace(pm.Name),
			Description: strings.TrimSpace(pm.Description),
			Geometry:    g,
		})
	}
	return features
}

func multiGeometries(mg kmlMultiGeom) []orb.Geometry {
	var out []orb.Geometry
	for _, pt := range mg.Points {
		if pts := parseCoordinates(pt.Coordinates); len(pts) > 0 {
			out = append(out, pts[0])
		}
	}
	for _, ls := range mg.LineStrings {
		if pts := parseCoordinates(ls.Coordinates); len(pts) > 1 {
			out = append(out, orb.LineString(pts))
		}
	}
	for _, poly := range mg.Polygons {
		if p, ok := polygon(poly); ok {
			out = append(out, p)
		}
	}
	for _, nested := range mg.Multi {
		out = append(out, multiGeometries(nested)...)
	}
	return out
}

// polygon keeps inner rings as holes; the outer ring needs at least 3 points.
func polygon(p kmlPolygon) (orb.Polygon, bool) {
	outer := parseCoordinates(p.OuterBoundaryIs.LinearRing.Coordinates)
	if len(outer) < 3 {
		return nil, false
	}
	poly := orb.Polygon{closeRing(outer)}
	for _, inner := range p.InnerBoundaryIs {
		if pts := parseCoordinates(inner.LinearRing.Coordinates); len(pts) > 2 {
			poly = append(poly, closeRing(pts))
		}
	}
	return poly, true
}

func closeRing(pts []orb.Point) orb.Ring {
	r := orb.Ring(pts)
	if !r.Closed() {
		r = append(r, r[0])
	}
	return r
}

// parseCoordinates parses "lon,lat[,alt]" tuples separated by whitespace.
// Malformed tuples are skipped.
func parseCoordinates(s string) []orb.Point {
	var points []orb.Point
	for _, tuple := range strings.Fields(s) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			continue
		}
		lon, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if !ValidLonLat(lon, lat) {
			continue
		}
		points = append(points, orb.Point{lon, lat})
	}
	return points
}
