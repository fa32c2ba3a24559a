package models

import (
	"errors"
	"fmt"

	"github.com/airis-sh/airis/utils"
	"gorm.io/gorm"
)

var ErrContactNotFound = errors.New("contact not found")

var updatableContactFields = []string{"name", "phone", "email"}

// Contact is one emergency contact. At least one of Phone/Email has to be set
// for the contact to receive anything during an alert.
type Contact struct {
	BaseModel
	Name  string `json:"name" validate:"notblank"`
	Phone string `json:"phone" validate:"phonechars"`
	Email string `json:"email" validate:"looseemail"`
}

// HasPhone reports whether the contact can be called or texted.
func (contact Contact) HasPhone() bool {
	return !utils.IsBlank(contact.Phone)
}

// HasEmail reports whether the contact can be emailed.
func (contact Contact) HasEmail() bool {
	return !utils.IsBlank(contact.Email)
}

// Reachable reports whether at least one channel is configured.
func (contact Contact) Reachable() bool {
	return contact.HasPhone() || contact.HasEmail()
}

func (contact Contact) String() string {
	return fmt.Sprintf("%v (id=%v)", contact.Name, contact.ID)
}

// FetchContacts returns every contact in the order they were added
func FetchContacts() ([]Contact, error) {
	contacts := []Contact{}

	err := db.Order("id asc").Limit(500).Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

func FindContact(id interface{}) (*Contact, error) {
	contact := Contact{}

	err := db.First(&contact, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrContactNotFound
	}

	if err != nil {
		return nil, err
	}

	return &contact, nil
}

func CreateContact(contact *Contact) error {
	return db.Create(contact).Error
}

func UpdateContact(id interface{}, data map[string]interface{}) error {
	res := db.Model(&Contact{}).Where("id = ?", id).Select(updatableContactFields).Updates(data)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrContactNotFound
	}

	return nil
}

func DeleteContact(id interface{}) error {
	res := db.Delete(&Contact{}, id)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrContactNotFound
	}

	return nil
}
