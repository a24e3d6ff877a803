package server

import (
	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/gacha"
)

type createBannerRequest struct {
	ID          string `json:"id" validate:"omitempty,max=64,excludesall=/?#"`
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
	StartTime   int64  `json:"start_time" validate:"gte=0"`
	EndTime     int64  `json:"end_time" validate:"gte=0"`
}

type createBannerResponse struct {
	Banner   *gacha.Banner `json:"banner"`
	Cap      admin.Cap     `json:"cap"`
	CapToken string        `json:"cap_token"`
}

type updateInfoRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1024"`
}

type windowRequest struct {
	StartTime int64 `json:"start_time" validate:"gte=0"`
	EndTime   int64 `json:"end_time" validate:"gte=0"`
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type addItemRequest struct {
	Item string     `json:"item" validate:"required,max=128"`
	Tier gacha.Tier `json:"tier"`
}

type rateRequest struct {
	Bps *uint32 `json:"bps" validate:"required,lte=10000"`
}

type boostRequest struct {
	Multiplier uint32 `json:"multiplier" validate:"required"`
}

type defaultTierRequest struct {
	Tier gacha.Tier `json:"tier"`
}

type drawRequest struct {
	Player string `json:"player" validate:"required,max=128"`
	Count  int    `json:"count" validate:"omitempty,min=1,max=10"`
}

type mintCapRequest struct {
	ForObject string `json:"for_object" validate:"required"`
}

type mintCapResponse struct {
	Cap   admin.Cap `json:"cap"`
	Token string    `json:"token"`
}

type eligibleRequest struct {
	Eligible *bool `json:"eligible" validate:"required"`
}

type limitsRequest struct {
	Min gacha.Tier `json:"min"`
	Max gacha.Tier `json:"max"`
}

type migrateRequest struct {
	To uint64 `json:"to" validate:"required"`
}

type depositRequest struct {
	Amount uint64 `json:"amount" validate:"required,gt=0"`
}

type balanceResponse struct {
	Player  string `json:"player"`
	Balance uint64 `json:"balance"`
}
