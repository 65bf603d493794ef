package models

import "time"

type Vehicle struct {
	ID        string    `bson:"id" json:"id"`
	OwnerID   string    `bson:"ownerId" json:"ownerId"`
	Make      string    `bson:"make" json:"make"`
	Model     string    `bson:"model" json:"model"`
	Year      int       `bson:"year" json:"year"`
	VIN       string    `bson:"vin,omitempty" json:"vin,omitempty"`
	Plate     string    `bson:"plate,omitempty" json:"plate,omitempty"`
	FuelType  string    `bson:"fuelType,omitempty" json:"fuelType,omitempty"`
	MileageKm int       `bson:"mileageKm" json:"mileageKm"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// VehicleInput is the create/update payload for a vehicle.
type VehicleInput struct {
	Make      string `json:"make" binding:"required"`
	Model     string `json:"model" binding:"required"`
	Year      int    `json:"year" binding:"required"`
	VIN       string `json:"vin"`
	Plate     string `json:"plate"`
	FuelType  string `json:"fuelType"`
	MileageKm int    `json:"mileageKm" binding:"gte=0"`
}
