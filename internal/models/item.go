package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Допустимые значения характеристик вещи
var (
	ItemCategories = []string{"shirts", "pants", "dresses", "shoes", "accessories", "outerwear", "other"}
	ItemSizes      = []string{"XS", "S", "M", "L", "XL", "XXL", "One Size"}
	ItemConditions = []string{"new", "like-new", "good", "fair", "poor"}
)

// Item представляет вещь в каталоге
type Item struct {
	ID           uuid.UUID    `json:"id"`
	OwnerID      uuid.UUID    `json:"owner_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Category     string       `json:"category"`
	Size         string       `json:"size"`
	Condition    string       `json:"condition"`
	Brand        string       `json:"brand,omitempty"`
	Images       []ItemImage  `json:"images"`
	ExchangeType ExchangeKind `json:"exchange_type"`
	PointsValue  int64        `json:"points_value"`
	IsAvailable  bool         `json:"is_available"`
	IsApproved   bool         `json:"is_approved"`
	ApprovedBy   *uuid.UUID   `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time   `json:"approved_at,omitempty"`
	Location     string       `json:"location,omitempty"`
	Tags         []string     `json:"tags"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// AcceptsPoints сообщает, можно ли получить вещь за баллы
func (i *Item) AcceptsPoints() bool {
	return i.ExchangeType == KindPoints
}

// Summary возвращает краткую информацию о вещи для API
func (i *Item) Summary() *ItemSummary {
	summary := &ItemSummary{
		ID:           i.ID,
		OwnerID:      i.OwnerID,
		Title:        i.Title,
		Category:     i.Category,
		Size:         i.Size,
		Condition:    i.Condition,
		ExchangeType: i.ExchangeType,
		PointsValue:  i.PointsValue,
		IsAvailable:  i.IsAvailable,
	}
	for _, img := range i.Images {
		if img.IsMain || summary.ImageURL == "" {
			summary.ImageURL = img.URL
		}
	}
	return summary
}

// ItemSummary – краткая информация о вещи для отображения в обмене
type ItemSummary struct {
	ID           uuid.UUID    `json:"id"`
	OwnerID      uuid.UUID    `json:"owner_id"`
	Title        string       `json:"title"`
	Category     string       `json:"category"`
	Size         string       `json:"size"`
	Condition    string       `json:"condition"`
	ExchangeType ExchangeKind `json:"exchange_type"`
	PointsValue  int64        `json:"points_value"`
	IsAvailable  bool         `json:"is_available"`
	ImageURL     string       `json:"image_url,omitempty"`
}

// ItemFilter – фильтр публичного каталога. В выборку попадают только одобренные
// и доступные вещи; пустые поля выборку не ограничивают.
type ItemFilter struct {
	Category     string
	Size         string
	Condition    string
	ExchangeType ExchangeKind
	Search       string // подстрока названия, описания или бренда без учёта регистра
	OwnerID      *uuid.UUID
	Limit        int
	Offset       int
}

// Matches проверяет вещь на соответствие фильтру
func (f ItemFilter) Matches(item *Item) bool {
	if !item.IsApproved || !item.IsAvailable {
		return false
	}
	if f.OwnerID != nil && item.OwnerID != *f.OwnerID {
		return false
	}
	if f.Category != "" && item.Category != f.Category {
		return false
	}
	if f.Size != "" && item.Size != f.Size {
		return false
	}
	if f.Condition != "" && item.Condition != f.Condition {
		return false
	}
	if f.ExchangeType != "" && item.ExchangeType != f.ExchangeType {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		for _, field := range []string{item.Title, item.Description, item.Brand} {
			if strings.Contains(strings.ToLower(field), needle) {
				return true
			}
		}
		return false
	}
	return true
}

// ItemUpdate – изменение вещи владельцем. nil-поля не меняются.
// Доступность, модерация и изображения этим путём не меняются.
type ItemUpdate struct {
	Title        *string       `json:"title"`
	Description  *string       `json:"description"`
	Category     *string       `json:"category"`
	Size         *string       `json:"size"`
	Condition    *string       `json:"condition"`
	Brand        *string       `json:"brand"`
	ExchangeType *ExchangeKind `json:"exchange_type"`
	PointsValue  *int64        `json:"points_value"`
	Location     *string       `json:"location"`
	Tags         *[]string     `json:"tags"`
}

// Apply применяет изменение к вещи и обновляет UpdatedAt
func (u ItemUpdate) Apply(item *Item, now time.Time) {
	if u.Title != nil {
		item.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		item.Description = *u.Description
	}
	if u.Category != nil {
		item.Category = *u.Category
	}
	if u.Size != nil {
		item.Size = *u.Size
	}
	if u.Condition != nil {
		item.Condition = *u.Condition
	}
	if u.Brand != nil {
		item.Brand = *u.Brand
	}
	if u.ExchangeType != nil {
		item.ExchangeType = *u.ExchangeType
	}
	if u.PointsValue != nil {
		item.PointsValue = *u.PointsValue
	}
	if u.Location != nil {
		item.Location = *u.Location
	}
	if u.Tags != nil {
		item.Tags = append([]string{}, (*u.Tags)...)
	}
	item.UpdatedAt = now
}

// ItemImage представляет изображение вещи
type ItemImage struct {
	URL        string        `json:"url"`
	PreviewURL string        `json:"preview_url,omitempty"`
	PublicID   string        `json:"public_id"`
	IsMain     bool          `json:"is_main"`
	Position   int           `json:"position"`
	Metadata   ImageMetadata `json:"metadata,omitempty"`
}

// ImageMetadata содержит ключевые метаданные изображения из Cloudinary
type ImageMetadata struct {
	AssetID  string `json:"asset_id,omitempty"`
	PublicID string `json:"public_id,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Bytes    int    `json:"bytes,omitempty"`
}

// CloudinaryResponse представляет нужную часть ответа Cloudinary API
type CloudinaryResponse struct {
	AssetID   string  `json:"asset_id"`
	PublicID  string  `json:"public_id"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Bytes     int     `json:"bytes"`
	SecureURL string  `json:"secure_url"`
	Eager     []Eager `json:"eager"`
}

// Eager содержит информацию о трансформациях изображения
type Eager struct {
	Status    string `json:"status"`
	SecureURL string `json:"secure_url"`
}

// ExtractMetadata извлекает основные метаданные из ответа Cloudinary
func ExtractMetadata(cr CloudinaryResponse) ImageMetadata {
	return ImageMetadata{
		AssetID:  cr.AssetID,
		PublicID: cr.PublicID,
		Width:    cr.Width,
		Height:   cr.Height,
		Bytes:    cr.Bytes,
	}
}

// ExtractPreviewURL извлекает URL превью из ответа Cloudinary
func ExtractPreviewURL(cr CloudinaryResponse) string {
	for _, eager := range cr.Eager {
		if eager.Status == "processing" || eager.Status == "completed" {
			return eager.SecureURL
		}
	}
	return ""
}

// ParseCloudinaryResponse конвертирует JSON-ответ от Cloudinary в структуру
func ParseCloudinaryResponse(data []byte) (CloudinaryResponse, error) {
	var response CloudinaryResponse
	err := json.Unmarshal(data, &response)
	return response, err
}

// Contains проверяет вхождение значения в список допустимых
func Contains(values []string, v string) bool {
	for _, allowed := range values {
		if allowed == v {
			return true
		}
	}
	return false
}
