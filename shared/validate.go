package shared

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator"
	"github.com/pkg/errors"
)

// Validate checks the config against its 'validate' struct tags
func (config AppConfig) Validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("bool", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.Bool
	})
	if err != nil {
		return err
	}

	validate.RegisterStructValidation(validateStorageConfig, StorageConfig{})

	err = validate.Struct(config)
	if err != nil {
		return errors.Errorf("invalid config:\n%v", strings.TrimSpace(err.Error()))
	}

	return nil
}

// validateStorageConfig requires the backup location only when backups are on.
// 'enableSqliteBackupAndSync: false' must not count as enabled.
func validateStorageConfig(sl validator.StructLevel) {
	storage := sl.Current().Interface().(StorageConfig)
	if !storage.BackupEnabled() {
		return
	}

	required := []struct {
		name  string
		value string
	}{
		{"Bucket", storage.Bucket},
		{"Prefix", storage.Prefix},
		{"SqliteBackupSchedule", storage.SqliteBackupSchedule},
	}

	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			sl.ReportError(field.value, field.name, field.name, "required_with_backup", "")
		}
	}
}
