package models

type Make struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(80);uniqueIndex;not null" json:"name"`
}

func (Make) TableName() string {
	return "makes"
}

type VehicleModel struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	MakeID uint   `gorm:"uniqueIndex:idx_models_make_name;not null" json:"make_id"`
	Name   string `gorm:"type:varchar(120);uniqueIndex:idx_models_make_name;not null" json:"name"`
}

func (VehicleModel) TableName() string {
	return "vehicle_models"
}

type Trim struct {
	ID      uint    `gorm:"primaryKey" json:"id"`
	ModelID uint    `gorm:"uniqueIndex:idx_trims_model_name;not null" json:"model_id"`
	Name    string  `gorm:"type:varchar(120);uniqueIndex:idx_trims_model_name;not null" json:"name"`
	Level   *string `gorm:"type:varchar(120)" json:"level,omitempty"`
}

func (Trim) TableName() string {
	return "trims"
}
