package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"civic-issue-portal/internal/service"
)

// NominatimGeocoder 调用 Nominatim 风格的地理编码服务。
// 实现 service.Geocoder。
type NominatimGeocoder struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNominatimGeocoder 创建 NominatimGeocoder 实例。
// 公共 Nominatim 实例要求设置可识别的 User-Agent。
func NewNominatimGeocoder(baseURL, userAgent string) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	if userAgent == "" {
		userAgent = "civic-issue-portal"
	}
	return &NominatimGeocoder{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode 正向地理编码: 地址转坐标, 取第一个匹配结果。
func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) (*service.GeoPoint, error) {
	query := url.Values{}
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")

	var results []nominatimResult
	if err := g.get(ctx, "/search", query, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("geo: no results for %q", address)
	}
	return toGeoPoint(results[0])
}

// Reverse 逆向地理编码: 坐标转地址。
func (g *NominatimGeocoder) Reverse(ctx context.Context, latitude, longitude float64) (*service.GeoPoint, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(longitude, 'f', -1, 64))
	query.Set("format", "json")

	var result nominatimResult
	if err := g.get(ctx, "/reverse", query, &result); err != nil {
		return nil, err
	}
	if result.DisplayName == "" {
		return nil, fmt.Errorf("geo: no address for %f,%f", latitude, longitude)
	}
	return &service.GeoPoint{Latitude: latitude, Longitude: longitude, Address: result.DisplayName}, nil
}

// get 执行一次 GET 请求并解码 JSON 响应
func (g *NominatimGeocoder) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("geo: build request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("geo: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geo: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("geo: decode response: %w", err)
	}
	return nil
}

// toGeoPoint 把 Nominatim 的字符串坐标转换成 GeoPoint
func toGeoPoint(r nominatimResult) (*service.GeoPoint, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geo: parse lat %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geo: parse lon %q: %w", r.Lon, err)
	}
	return &service.GeoPoint{Latitude: lat, Longitude: lon, Address: r.DisplayName}, nil
}
