package client

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"
)

type Farm struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Location  string          `json:"location"`
	AreaAcres decimal.Decimal `json:"areaAcres"`
	SoilType  string          `json:"soilType,omitempty"`
	Irrigated bool            `json:"irrigated"`
}

type Crop struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	Variety         string `json:"variety,omitempty"`
	SowingDate      string `json:"sowingDate,omitempty"`
	ExpectedHarvest string `json:"expectedHarvest,omitempty"`
	Status          string `json:"status,omitempty"`
}

// DashboardAnalytics is the farmer summary computed by the farm service.
type DashboardAnalytics struct {
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	TotalOrders    int             `json:"totalOrders"`
	PendingOrders  int             `json:"pendingOrders"`
	ActiveListings int             `json:"activeListings"`
	TotalFarms     int             `json:"totalFarms"`
	ActiveCrops    int             `json:"activeCrops"`
}

type HarvestGuidance struct {
	CropName        string `json:"cropName"`
	Recommendation  string `json:"recommendation"`
	OptimalWindow   string `json:"optimalWindow,omitempty"`
	WeatherAdvisory string `json:"weatherAdvisory,omitempty"`
}

// FarmClient talks to the farm service.
type FarmClient struct {
	c *Client
}

// NewFarmClient wraps c.
func NewFarmClient(c *Client) *FarmClient {
	return &FarmClient{c: c}
}

func (f *FarmClient) Farms(ctx context.Context) ([]Farm, error) {
	var out []Farm
	if err := f.c.Get(ctx, "/farms", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *FarmClient) CreateFarm(ctx context.Context, farm Farm) (*Farm, error) {
	var out Farm
	if err := f.c.Post(ctx, "/farms", farm, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *FarmClient) UpdateFarm(ctx context.Context, farm Farm) (*Farm, error) {
	var out Farm
	if err := f.c.Put(ctx, "/farms/"+url.PathEscape(farm.ID), farm, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *FarmClient) DeleteFarm(ctx context.Context, id string) error {
	return f.c.Delete(ctx, "/farms/"+url.PathEscape(id), nil)
}

func (f *FarmClient) Crops(ctx context.Context, farmID string) ([]Crop, error) {
	var out []Crop
	if err := f.c.Get(ctx, "/farms/"+url.PathEscape(farmID)+"/crops", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *FarmClient) AddCrop(ctx context.Context, farmID string, crop Crop) (*Crop, error) {
	var out Crop
	if err := f.c.Post(ctx, "/farms/"+url.PathEscape(farmID)+"/crops", crop, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *FarmClient) Dashboard(ctx context.Context) (*DashboardAnalytics, error) {
	var out DashboardAnalytics
	if err := f.c.Get(ctx, "/analytics/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *FarmClient) HarvestGuidance(ctx context.Context, farmID string) ([]HarvestGuidance, error) {
	q := url.Values{}
	if farmID != "" {
		q.Set("farmId", farmID)
	}
	var out []HarvestGuidance
	if err := f.c.Get(ctx, "/farms/harvest-guidance", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
