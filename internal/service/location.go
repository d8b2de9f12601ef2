package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// GeoPoint 是一次地理编码的结果。
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// Geocoder 是外部地理编码/逆编码服务的边界。
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeoPoint, error)
	Reverse(ctx context.Context, latitude, longitude float64) (*GeoPoint, error)
}

// LocationService 把地理查询透传给外部服务。
type LocationService struct {
	geocoder Geocoder
}

func NewLocationService(geocoder Geocoder) *LocationService {
	if geocoder == nil {
		panic("Geocoder cannot be nil for LocationService")
	}
	return &LocationService{geocoder: geocoder}
}

// Search 正向地理编码。
func (s *LocationService) Search(ctx context.Context, address string) (*GeoPoint, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrValidation
	}
	point, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		logrus.WithError(err).WithField("address", address).Warn("Geocode lookup failed")
		return nil, ErrInternalServer
	}
	return point, nil
}

// Reverse 逆向地理编码。
func (s *LocationService) Reverse(ctx context.Context, latitude, longitude float64) (*GeoPoint, error) {
	point, err := s.geocoder.Reverse(ctx, latitude, longitude)
	if err != nil {
		logrus.WithError(err).Warn("Reverse geocode lookup failed")
		return nil, ErrInternalServer
	}
	return point, nil
}
