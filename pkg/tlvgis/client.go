// Package tlvgis provides a client for the Tel Aviv municipal ArcGIS REST
// server, exposing the building-permit and land-use-rights layers as typed
// point queries in ITM (EPSG:2039) coordinates.
package tlvgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Layer ids on the municipal MapServer.
const (
	layerPermits = 772
	layerRights  = 529
)

// Client defines the GIS layer queries.
type Client interface {
	// QueryPermits returns building permits within radiusM meters of the
	// point. An empty slice means no permits, not failure.
	QueryPermits(ctx context.Context, x, y float64, radiusM int) ([]Permit, error)

	// QueryRights returns the land-use rights of the parcel containing the
	// point, or nil when no parcel covers it.
	QueryRights(ctx context.Context, x, y float64) (*Rights, error)
}

// Permit is one building permit feature.
type Permit struct {
	RequestNumber string  `json:"request_number"`
	Address       string  `json:"address"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	IssuedAt      string  `json:"issued_at,omitempty"`
	AreaSqm       float64 `json:"area_sqm,omitempty"`
	URL           string  `json:"url,omitempty"`
}

// Rights is the land-use rights summary of one parcel.
type Rights struct {
	Block              string  `json:"block"`
	Plot               string  `json:"plot"`
	PlanNumber         string  `json:"plan_number"`
	LandUse            string  `json:"land_use"`
	MainRightsSqm      float64 `json:"main_rights_sqm"`
	ServiceRightsSqm   float64 `json:"service_rights_sqm"`
	RemainingRightsSqm float64 `json:"remaining_rights_sqm"`
	ParcelAreaSqm      float64 `json:"parcel_area_sqm"`
	CentroidX          float64 `json:"centroid_x"`
	CentroidY          float64 `json:"centroid_y"`
}

// Option configures the tlvgis client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new Tel Aviv GIS client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://gisn.tel-aviv.gov.il/arcgis",
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type arcgisResponse struct {
	Features []struct {
		Attributes map[string]any `json:"attributes"`
		Geometry   *struct {
			Rings [][][]float64 `json:"rings"`
		} `json:"geometry"`
	} `json:"features"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *httpClient) QueryPermits(ctx context.Context, x, y float64, radiusM int) ([]Permit, error) {
	if radiusM <= 0 {
		radiusM = 30
	}
	resp, err := c.query(ctx, layerPermits, x, y, radiusM)
	if err != nil {
		return nil, err
	}

	permits := make([]Permit, 0, len(resp.Features))
	for _, f := range resp.Features {
		a := f.Attributes
		p := Permit{
			RequestNumber: attrString(a, "ms_bakasha"),
			Address:       attrString(a, "addresses"),
			Description:   attrString(a, "building_stage"),
			Status:        attrString(a, "request_status"),
			IssuedAt:      attrString(a, "permission_date"),
			AreaSqm:       attrFloat(a, "permission_area"),
			URL:           attrString(a, "url_hadmaya"),
		}
		permits = append(permits, p)
	}
	return permits, nil
}

func (c *httpClient) QueryRights(ctx context.Context, x, y float64) (*Rights, error) {
	resp, err := c.query(ctx, layerRights, x, y, 0)
	if err != nil {
		return nil, err
	}
	if len(resp.Features) == 0 {
		return nil, nil
	}

	f := resp.Features[0]
	a := f.Attributes
	r := &Rights{
		Block:              attrString(a, "ms_gush"),
		Plot:               attrString(a, "ms_chelka"),
		PlanNumber:         attrString(a, "mspr_tochnit"),
		LandUse:            attrString(a, "land_use"),
		MainRightsSqm:      attrFloat(a, "main_rights_sqm"),
		ServiceRightsSqm:   attrFloat(a, "service_rights_sqm"),
		RemainingRightsSqm: attrFloat(a, "remaining_rights_sqm"),
	}

	if f.Geometry != nil && len(f.Geometry.Rings) > 0 {
		poly, err := ringsToPolygon(f.Geometry.Rings)
		if err != nil {
			return nil, eris.Wrap(err, "tlvgis: parse parcel geometry")
		}
		r.ParcelAreaSqm = poly.Area()
		centroid, err := xy.Centroid(poly)
		if err == nil && len(centroid) >= 2 {
			r.CentroidX = centroid[0]
			r.CentroidY = centroid[1]
		}
	}
	return r, nil
}

func (c *httpClient) query(ctx context.Context, layer int, x, y float64, distanceM int) (*arcgisResponse, error) {
	params := url.Values{}
	params.Set("f", "json")
	params.Set("outFields", "*")
	params.Set("geometry", fmt.Sprintf("%f,%f", x, y))
	params.Set("geometryType", "esriGeometryPoint")
	params.Set("inSR", "2039")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("returnGeometry", "true")
	if distanceM > 0 {
		params.Set("distance", fmt.Sprintf("%d", distanceM))
		params.Set("units", "esriSRUnit_Meter")
	}

	endpoint := fmt.Sprintf("%s/rest/services/IView2/MapServer/%d/query?%s", c.baseURL, layer, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "tlvgis: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "tlvgis: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "tlvgis: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("tlvgis: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed arcgisResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "tlvgis: unmarshal response")
	}
	// ArcGIS reports errors in-band with a 200 status.
	if parsed.Error != nil {
		return nil, eris.Errorf("tlvgis: arcgis error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	return &parsed, nil
}

// ringsToPolygon converts ESRI ring arrays into a go-geom polygon. Only the
// exterior ring matters for area and centroid here.
func ringsToPolygon(rings [][][]float64) (*geom.Polygon, error) {
	poly := geom.NewPolygon(geom.XY)
	for _, ring := range rings {
		coords := make([]geom.Coord, 0, len(ring))
		for _, pt := range ring {
			if len(pt) < 2 {
				return nil, eris.New("ring vertex with fewer than 2 ordinates")
			}
			coords = append(coords, geom.Coord{pt[0], pt[1]})
		}
		if err := poly.Push(geom.NewLinearRing(geom.XY).MustSetCoords(coords)); err != nil {
			return nil, eris.Wrap(err, "push ring")
		}
	}
	return poly, nil
}

func attrString(attrs map[string]any, key string) string {
	switch v := attrs[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

func attrFloat(attrs map[string]any, key string) float64 {
	if v, ok := attrs[key].(float64); ok {
		return v
	}
	return 0
}
