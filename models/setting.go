package models

var updatableSettingFields = []string{"message_template", "sos_enabled"}

// Setting holds the single row of user preferences the alert path reads.
type Setting struct {
	BaseModel
	MessageTemplate string `json:"message_template"`
	SosEnabled      bool   `json:"sos_enabled" gorm:"default:true"`
}

func FindSettings() (*Setting, error) {
	setting := Setting{}

	err := db.First(&setting).Error
	if err != nil {
		return nil, err
	}

	return &setting, nil
}

func UpdateSettings(data map[string]interface{}) error {
	setting, err := FindSettings()
	if err != nil {
		return err
	}

	return db.Model(&Setting{}).Where("id = ?", setting.ID).Select(updatableSettingFields).Updates(data).Error
}
